package plate

// Candidate is one OCR text region after normalization. Display and
// Canonical are always computed together from the same raw string.
type Candidate struct {
	Display   string `json:"display"`
	Canonical string `json:"canonical"`
}

// Result is the outcome of one selection pass. BestDisplay and BestCanonical
// are nil when nothing legible was found.
type Result struct {
	BestDisplay   *string     `json:"best_display"`
	BestCanonical *string     `json:"best_canonical"`
	Candidates    []Candidate `json:"candidates"`
}

func (r Result) Found() bool {
	return r.BestCanonical != nil
}

// DisplayCandidates returns display forms in detection order, aligned with
// CanonicalCandidates.
func (r Result) DisplayCandidates() []string {
	out := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		out[i] = c.Display
	}
	return out
}

func (r Result) CanonicalCandidates() []string {
	out := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		out[i] = c.Canonical
	}
	return out
}

// Reader runs the normalize, score and select pipeline.
type Reader struct {
	scorer *Scorer
}

func NewReader(scorer *Scorer) *Reader {
	if scorer == nil {
		scorer = defaultScorer
	}
	return &Reader{scorer: scorer}
}

func (r *Reader) Scorer() *Scorer {
	return r.scorer
}

// Candidates normalizes raw texts, dropping entries with no letters or
// digits. Order is preserved.
func Candidates(rawTexts []string) []Candidate {
	out := make([]Candidate, 0, len(rawTexts))
	for _, raw := range rawTexts {
		display := SanitizeForDisplay(raw)
		if display == "" {
			continue
		}
		canonical := Canonicalize(display)
		if canonical == "" {
			continue
		}
		out = append(out, Candidate{Display: display, Canonical: canonical})
	}
	return out
}

// ReadBestPlate picks the most plausible plate among rawTexts. When several
// display forms share the winning canonical value, the first one is reported.
func (r *Reader) ReadBestPlate(rawTexts []string) Result {
	result := Result{Candidates: Candidates(rawTexts)}

	best, ok := r.scorer.PickBest(result.CanonicalCandidates())
	if !ok {
		return result
	}

	for _, c := range result.Candidates {
		if c.Canonical == best {
			display := c.Display
			result.BestDisplay = &display
			break
		}
	}
	result.BestCanonical = &best

	return result
}

var defaultReader = NewReader(nil)

// ReadBestPlate uses the default scoring rules.
func ReadBestPlate(rawTexts []string) Result {
	return defaultReader.ReadBestPlate(rawTexts)
}
