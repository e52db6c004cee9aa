package plate

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ShapeRule awards Weight to candidates whose canonical form matches Pattern.
type ShapeRule struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  int
}

func NewShapeRule(name, pattern string, weight int) (ShapeRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ShapeRule{}, fmt.Errorf("shape %q: %w", name, err)
	}
	return ShapeRule{Name: name, Pattern: re, Weight: weight}, nil
}

// ParseShapeRules reads rules in the form "name:pattern:weight", separated by
// semicolons. The pattern is everything between the first and last colon.
func ParseShapeRules(raw string) ([]ShapeRule, error) {
	var rules []ShapeRule
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last == first {
			return nil, fmt.Errorf("shape rule %q: want name:pattern:weight", entry)
		}

		weight, err := strconv.Atoi(strings.TrimSpace(entry[last+1:]))
		if err != nil {
			return nil, fmt.Errorf("shape rule %q: invalid weight: %w", entry, err)
		}

		rule, err := NewShapeRule(strings.TrimSpace(entry[:first]), entry[first+1:last], weight)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ScoringConfig holds every weight used by the Scorer. Deltas are signed and
// simply added together.
type ScoringConfig struct {
	Shapes []ShapeRule

	PlateLike         *regexp.Regexp
	PlateLikeDelta    int
	NotPlateLikeDelta int

	MixedDelta       int
	LettersOnlyDelta int
	DigitsOnlyDelta  int

	// LengthDeltas is keyed by rune count; OtherLengthDelta covers the rest.
	LengthDeltas     map[int]int
	OtherLengthDelta int

	RepetitionRun   int
	RepetitionDelta int
}

// DefaultScoringConfig returns the rules for current UK-style registrations.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Shapes: []ShapeRule{
			{Name: "current", Pattern: regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{3}$`), Weight: 200},
			{Name: "prefix", Pattern: regexp.MustCompile(`^[A-Z][0-9]{1,3}[A-Z]{3}$`), Weight: 120},
			{Name: "suffix", Pattern: regexp.MustCompile(`^[A-Z]{3}[0-9]{1,3}[A-Z]$`), Weight: 120},
		},
		PlateLike:         regexp.MustCompile(`^[A-Z0-9]{2,8}$`),
		PlateLikeDelta:    40,
		NotPlateLikeDelta: -50,
		MixedDelta:        35,
		LettersOnlyDelta:  -10,
		DigitsOnlyDelta:   -10,
		LengthDeltas: map[int]int{
			7: 20,
			6: 15,
			5: 12,
			4: 4,
			3: 1,
			2: 0,
		},
		OtherLengthDelta: -20,
		RepetitionRun:    4,
		RepetitionDelta:  -15,
	}
}

// WithShapes returns a copy of cfg with extra shape rules appended.
func (cfg ScoringConfig) WithShapes(extra ...ShapeRule) ScoringConfig {
	cfg.Shapes = append(slices.Clip(cfg.Shapes), extra...)
	return cfg
}

// RuleHit records one rule that contributed to a score.
type RuleHit struct {
	Rule  string `json:"rule"`
	Delta int    `json:"delta"`
}

// Scorer ranks canonical candidates. It is read-only after construction and
// safe for concurrent use.
type Scorer struct {
	cfg ScoringConfig
}

func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Explain lists every rule that applies to candidate, in evaluation order.
func (s *Scorer) Explain(candidate string) []RuleHit {
	var hits []RuleHit

	for _, shape := range s.cfg.Shapes {
		if shape.Pattern.MatchString(candidate) {
			hits = append(hits, RuleHit{Rule: "shape:" + shape.Name, Delta: shape.Weight})
		}
	}

	if s.cfg.PlateLike != nil && s.cfg.PlateLike.MatchString(candidate) {
		hits = append(hits, RuleHit{Rule: "plate_like", Delta: s.cfg.PlateLikeDelta})
	} else {
		hits = append(hits, RuleHit{Rule: "not_plate_like", Delta: s.cfg.NotPlateLikeDelta})
	}

	hasLetter := strings.IndexFunc(candidate, unicode.IsLetter) >= 0
	hasDigit := strings.IndexFunc(candidate, unicode.IsNumber) >= 0
	switch {
	case hasLetter && hasDigit:
		hits = append(hits, RuleHit{Rule: "mixed", Delta: s.cfg.MixedDelta})
	case hasLetter:
		hits = append(hits, RuleHit{Rule: "letters_only", Delta: s.cfg.LettersOnlyDelta})
	case hasDigit:
		hits = append(hits, RuleHit{Rule: "digits_only", Delta: s.cfg.DigitsOnlyDelta})
	}

	length := utf8.RuneCountInString(candidate)
	delta, ok := s.cfg.LengthDeltas[length]
	if !ok {
		delta = s.cfg.OtherLengthDelta
	}
	hits = append(hits, RuleHit{Rule: "length:" + strconv.Itoa(length), Delta: delta})

	if s.cfg.RepetitionRun > 0 && longestRun(candidate) >= s.cfg.RepetitionRun {
		hits = append(hits, RuleHit{Rule: "repetition", Delta: s.cfg.RepetitionDelta})
	}

	return hits
}

func (s *Scorer) Score(candidate string) int {
	total := 0
	for _, hit := range s.Explain(candidate) {
		total += hit.Delta
	}
	return total
}

// PickBest returns the highest scoring candidate. Ties go to the candidate
// that appears first. The boolean is false only for an empty input.
func (s *Scorer) PickBest(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	type scored struct {
		value string
		score int
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{value: c, score: s.Score(c)})
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	return ranked[0].value, true
}

func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = r
	}
	return longest
}

var defaultScorer = NewScorer(DefaultScoringConfig())

// Score rates candidate with the default rules.
func Score(candidate string) int {
	return defaultScorer.Score(candidate)
}

// PickBest picks among candidates with the default rules.
func PickBest(candidates []string) (string, bool) {
	return defaultScorer.PickBest(candidates)
}
