package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"plate-service/internal/model"
	"plate-service/internal/plate"
	"plate-service/internal/repository"
)

// TextRecognizer is the external OCR engine.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image []byte, contentType string) ([]string, error)
}

type PlatePostStore interface {
	Create(ctx context.Context, post *model.PlatePost) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PlatePost, error)
	List(ctx context.Context, filter repository.PlatePostListFilter) ([]model.PlatePost, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const (
	// duplicatePostWindow rejects a repeat of the same plate by the same owner.
	duplicatePostWindow = time.Minute

	communityScanFactor = 5
	communityScanPages  = 10
)

type PlateService struct {
	posts          PlatePostStore
	ocr            TextRecognizer
	reader         *plate.Reader
	communityLimit int
	log            zerolog.Logger
	now            func() time.Time
}

func NewPlateService(
	posts PlatePostStore,
	ocr TextRecognizer,
	reader *plate.Reader,
	communityLimit int,
	log zerolog.Logger,
) *PlateService {
	if reader == nil {
		reader = plate.NewReader(nil)
	}
	if communityLimit <= 0 {
		communityLimit = 200
	}
	return &PlateService{
		posts:          posts,
		ocr:            ocr,
		reader:         reader,
		communityLimit: communityLimit,
		log:            log,
		now:            time.Now,
	}
}

// RecognitionResult is a selection pass plus the aligned candidate lists and
// the rules that fired for the winner.
type RecognitionResult struct {
	plate.Result
	DisplayCandidates   []string        `json:"display_candidates"`
	CanonicalCandidates []string        `json:"canonical_candidates"`
	Score               *int            `json:"score,omitempty"`
	Explanation         []plate.RuleHit `json:"explanation,omitempty"`
}

// Recognize runs the OCR engine on image and selects the best plate. An image
// with no legible plate is not an error; the result simply has no winner.
func (s *PlateService) Recognize(ctx context.Context, image []byte, contentType string) (*RecognitionResult, error) {
	if len(image) == 0 {
		return nil, ErrInvalidInput
	}

	texts, err := s.ocr.RecognizeText(ctx, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	result := s.ReadText(texts)
	s.log.Debug().
		Int("regions", len(texts)).
		Int("candidates", len(result.Candidates)).
		Bool("found", result.Found()).
		Msg("plate recognition finished")

	return result, nil
}

// ReadText selects the best plate from text already extracted by an OCR
// engine.
func (s *PlateService) ReadText(rawTexts []string) *RecognitionResult {
	result := s.reader.ReadBestPlate(rawTexts)

	out := &RecognitionResult{
		Result:              result,
		DisplayCandidates:   result.DisplayCandidates(),
		CanonicalCandidates: result.CanonicalCandidates(),
	}
	if result.BestCanonical != nil {
		scorer := s.reader.Scorer()
		score := scorer.Score(*result.BestCanonical)
		out.Score = &score
		out.Explanation = scorer.Explain(*result.BestCanonical)
	}
	return out
}

type CreatePostInput struct {
	Plate            string
	Tags             []string
	TagsText         string
	Image            []byte
	ImageContentType string
}

// CreatePost stores the plate the user confirmed. The plate is normalized
// again since the user may have edited the suggestion.
func (s *PlateService) CreatePost(ctx context.Context, principal model.Principal, input CreatePostInput) (*model.PlatePost, error) {
	if principal.UserID == uuid.Nil {
		return nil, ErrPermissionDenied
	}

	display := plate.SanitizeForDisplay(input.Plate)
	canonical := plate.Canonicalize(display)
	if canonical == "" {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(display) > model.PlateMaxLength {
		return nil, fmt.Errorf("%w: plate longer than %d characters", ErrInvalidInput, model.PlateMaxLength)
	}

	if err := s.checkDuplicate(ctx, principal.UserID, canonical); err != nil {
		return nil, err
	}

	tags := cleanTags(input.Tags)
	if input.TagsText != "" {
		tags = append(tags, ParseTags(input.TagsText)...)
	}

	post := &model.PlatePost{
		OwnerID:        principal.UserID,
		PlateDisplay:   display,
		PlateCanonical: canonical,
		Tags:           datatypes.JSONSlice[string](tags),
	}
	if len(input.Image) > 0 {
		post.ImageData = input.Image
		contentType := input.ImageContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		post.ImageContentType = &contentType
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("post_id", post.ID.String()).
		Str("plate", canonical).
		Int("tags", len(tags)).
		Msg("plate post created")

	return post, nil
}

// checkDuplicate catches a double submit: the owner posting the same plate
// again within duplicatePostWindow.
func (s *PlateService) checkDuplicate(ctx context.Context, ownerID uuid.UUID, canonical string) error {
	latest, err := s.posts.List(ctx, repository.PlatePostListFilter{
		OwnerID:   &ownerID,
		Canonical: &canonical,
		Limit:     1,
	})
	if err != nil {
		return err
	}
	if len(latest) > 0 && s.now().Sub(latest[0].CreatedAt) < duplicatePostWindow {
		return fmt.Errorf("%w: %s was posted less than %s ago", ErrConflict, canonical, duplicatePostWindow)
	}
	return nil
}

// ParseTags splits comma separated tag text, trimming and dropping empties.
func ParseTags(text string) []string {
	return cleanTags(strings.Split(text, ","))
}

func cleanTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (s *PlateService) GetPost(ctx context.Context, id string) (*model.PlatePost, error) {
	postID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrInvalidInput
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *PlateService) DeletePost(ctx context.Context, principal model.Principal, id string) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}

	if !principal.Owns(post) && !principal.IsAdmin() {
		return ErrPermissionDenied
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ListGarage returns the principal's own posts, newest first.
func (s *PlateService) ListGarage(ctx context.Context, principal model.Principal) ([]model.PlatePost, error) {
	if principal.UserID == uuid.Nil {
		return nil, ErrPermissionDenied
	}
	ownerID := principal.UserID
	return s.posts.List(ctx, repository.PlatePostListFilter{OwnerID: &ownerID})
}

// PlateHistory returns every post of one plate, whatever spacing the caller
// used.
func (s *PlateService) PlateHistory(ctx context.Context, rawPlate string) ([]model.PlatePost, error) {
	canonical := plate.Canonicalize(plate.SanitizeForDisplay(rawPlate))
	if canonical == "" {
		return nil, ErrInvalidInput
	}
	return s.posts.List(ctx, repository.PlatePostListFilter{Canonical: &canonical, Limit: s.communityLimit})
}

// Community lists everyone's posts, newest first. A query matches the
// canonical plate or any tag, ignoring case, spacing and punctuation.
func (s *PlateService) Community(ctx context.Context, query string, limit int) ([]model.PlatePost, error) {
	if limit <= 0 || limit > s.communityLimit {
		limit = s.communityLimit
	}

	q := plate.Canonicalize(plate.SanitizeForDisplay(strings.TrimSpace(query)))
	if q == "" {
		return s.posts.List(ctx, repository.PlatePostListFilter{Limit: limit})
	}

	// Tags are matched after normalization, which SQL cannot do, so the
	// newest posts are scanned page by page up to a fixed depth.
	batch := limit * communityScanFactor
	matched := make([]model.PlatePost, 0, limit)
	for page := 0; page < communityScanPages; page++ {
		posts, err := s.posts.List(ctx, repository.PlatePostListFilter{
			Limit:  batch,
			Offset: page * batch,
		})
		if err != nil {
			return nil, err
		}

		for _, post := range posts {
			if matchesQuery(post, q) {
				matched = append(matched, post)
				if len(matched) == limit {
					return matched, nil
				}
			}
		}

		if len(posts) < batch {
			break
		}
	}
	return matched, nil
}

func matchesQuery(post model.PlatePost, canonicalQuery string) bool {
	if strings.Contains(post.PlateCanonical, canonicalQuery) {
		return true
	}
	for _, tag := range post.Tags {
		if strings.Contains(plate.Canonicalize(plate.SanitizeForDisplay(tag)), canonicalQuery) {
			return true
		}
	}
	return false
}
