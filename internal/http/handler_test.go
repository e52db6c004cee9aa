package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"plate-service/internal/auth"
	"plate-service/internal/http/middleware"
	"plate-service/internal/model"
	"plate-service/internal/repository"
	"plate-service/internal/service"
)

type stubStore struct {
	posts []model.PlatePost
}

func (s *stubStore) Create(_ context.Context, post *model.PlatePost) error {
	post.ID = uuid.New()
	post.CreatedAt = time.Now()
	s.posts = append(s.posts, *post)
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (*model.PlatePost, error) {
	for i := range s.posts {
		if s.posts[i].ID == id {
			post := s.posts[i]
			return &post, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStore) List(_ context.Context, filter repository.PlatePostListFilter) ([]model.PlatePost, error) {
	var out []model.PlatePost
	for i := len(s.posts) - 1; i >= 0; i-- {
		if filter.OwnerID != nil && s.posts[i].OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Canonical != nil && s.posts[i].PlateCanonical != *filter.Canonical {
			continue
		}
		out = append(out, s.posts[i])
	}
	return out, nil
}

func (s *stubStore) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubOCR struct {
	texts []string
	err   error
}

func (s stubOCR) RecognizeText(context.Context, []byte, string) ([]string, error) {
	return s.texts, s.err
}

type testEnv struct {
	engine http.Handler
	token  string
	store  *stubStore
}

func newTestEnv(t *testing.T, ocr stubOCR) *testEnv {
	t.Helper()

	parser := auth.NewParser("secret")
	token, err := parser.Issue(uuid.New(), "", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	store := &stubStore{}
	svc := service.NewPlateService(store, ocr, nil, 100, zerolog.Nop())
	handler := NewHandler(svc, 1<<20, zerolog.Nop())

	return &testEnv{
		engine: NewRouter(handler, middleware.Auth(parser), "test"),
		token:  token,
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="plate.jpg"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, stubOCR{})
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthorized(t *testing.T) {
	env := newTestEnv(t, stubOCR{})
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/garage", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecognizeEndpoint(t *testing.T) {
	env := newTestEnv(t, stubOCR{texts: []string{"FS22 PET", "!!!", "AB11XYZ"}})

	body, contentType := multipartBody(t, nil, []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/plates/recognize", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		BestDisplay         *string  `json:"best_display"`
		BestCanonical       *string  `json:"best_canonical"`
		DisplayCandidates   []string `json:"display_candidates"`
		CanonicalCandidates []string `json:"canonical_candidates"`
	}
	decodeData(t, rec, &result)
	require.Equal(t, "FS22 PET", *result.BestDisplay)
	require.Equal(t, "FS22PET", *result.BestCanonical)
	require.Equal(t, []string{"FS22 PET", "AB11XYZ"}, result.DisplayCandidates)
	require.Equal(t, []string{"FS22PET", "AB11XYZ"}, result.CanonicalCandidates)
}

func TestRecognizeEndpointErrors(t *testing.T) {
	env := newTestEnv(t, stubOCR{err: context.DeadlineExceeded})

	body, contentType := multipartBody(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/plates/recognize", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusBadRequest, env.do(t, req).Code)

	body, contentType = multipartBody(t, nil, []byte("jpeg"))
	req = httptest.NewRequest(http.MethodPost, "/plates/recognize", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusBadGateway, env.do(t, req).Code)
}

func TestReadEndpoint(t *testing.T) {
	env := newTestEnv(t, stubOCR{})

	req := httptest.NewRequest(http.MethodPost, "/plates/read", bytes.NewBufferString(`{"texts":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		BestDisplay       *string  `json:"best_display"`
		DisplayCandidates []string `json:"display_candidates"`
	}
	decodeData(t, rec, &result)
	require.Nil(t, result.BestDisplay)
	require.Empty(t, result.DisplayCandidates)

	req = httptest.NewRequest(http.MethodPost, "/plates/read", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, env.do(t, req).Code)
}

func TestPostLifecycle(t *testing.T) {
	env := newTestEnv(t, stubOCR{})

	body, contentType := multipartBody(t, map[string]string{
		"plate": "fs22 pet",
		"tags":  "porsche, black",
	}, []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post model.PlatePost
	decodeData(t, rec, &post)
	require.Equal(t, "FS22 PET", post.PlateDisplay)
	require.Equal(t, "FS22PET", post.PlateCanonical)
	require.Equal(t, []string{"porsche", "black"}, []string(post.Tags))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/posts/"+post.ID.String()+"/image", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, "jpeg", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"plate":"K1 NGS","tags":["classic"]}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"plate":"!!"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, env.do(t, req).Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/garage", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var garage []model.PlatePost
	decodeData(t, rec, &garage)
	require.Len(t, garage, 2)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/community?q=porsche", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var community []model.PlatePost
	decodeData(t, rec, &community)
	require.Len(t, community, 1)

	require.Equal(t, http.StatusBadRequest, env.do(t, httptest.NewRequest(http.MethodGet, "/community?limit=x", nil)).Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/plates/fs22-pet/posts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.PlatePost
	decodeData(t, rec, &history)
	require.Len(t, history, 1)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/garage/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.GarageStats
	decodeData(t, rec, &stats)
	require.Equal(t, 2, stats.TotalPosts)
	require.Equal(t, 3, stats.TotalTags)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/garage/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.Bytes())

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/posts/"+post.ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/posts/"+post.ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/posts/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteForeignPost(t *testing.T) {
	env := newTestEnv(t, stubOCR{})
	post := model.PlatePost{ID: uuid.New(), OwnerID: uuid.New(), PlateDisplay: "AB11 XYZ", PlateCanonical: "AB11XYZ"}
	env.store.posts = append(env.store.posts, post)

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/posts/"+post.ID.String(), nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, env.store.posts, 1)
}

func TestCreatePostRejections(t *testing.T) {
	env := newTestEnv(t, stubOCR{})

	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"plate":"AB12 AB12 AB12 AB12 AB12 AB12 AB12 AB12"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"plate":"FS22 PET"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"plate":"fs22-pet"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusConflict, env.do(t, req).Code)
	require.Len(t, env.store.posts, 1)
}

func TestCORSAllowedOrigins(t *testing.T) {
	handler := NewHandler(service.NewPlateService(&stubStore{}, stubOCR{}, nil, 10, zerolog.Nop()), 1<<20, zerolog.Nop())
	engine := NewRouter(handler, func(c *gin.Context) { c.Next() }, "test", "https://plates.example")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://plates.example")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://plates.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
