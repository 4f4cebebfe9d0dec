package content

import "time"

// Step identifies a phase of the suggestion chain. The chain moves linearly
// through the generating steps and ends in either StepComplete or StepError.
type Step string

const (
	StepInitializing    Step = "initializing"
	StepGeneratingIdeas Step = "generating-ideas"
	StepElaborating     Step = "elaborating-content"
	StepGeneratingSEO   Step = "generating-seo"
	StepScheduling      Step = "scheduling-posts"
	StepComplete        Step = "complete"
	StepError           Step = "error"
)

// Terminal reports whether the chain has finished, successfully or not.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepError
}

// Idea is the first shape of a content item: a concept pitched for a
// specific platform. The ID is assigned once and survives every later
// enrichment so items can be de-duplicated by identity.
type Idea struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Concept  string `json:"concept"`
}

// Elaborated carries the full drafted body for an idea. NeedsRetry marks
// items whose elaboration call failed and were filled with placeholder text.
type Elaborated struct {
	Idea
	Body       string   `json:"body"`
	Hashtags   []string `json:"hashtags,omitempty"`
	NeedsRetry bool     `json:"needs_retry,omitempty"`
}

// SEOAnnotation holds keyword analysis for one item. Confidence is in
// [0,1]; a degraded SEO step stamps items with a low-confidence placeholder.
type SEOAnnotation struct {
	Keywords   []string `json:"keywords,omitempty"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
}

// WithSEO is an elaborated item plus its SEO annotation.
type WithSEO struct {
	Elaborated
	SEO SEOAnnotation `json:"seo"`
}

// Scheduled is a fully enriched item placed on a concrete calendar slot.
type Scheduled struct {
	WithSEO
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Post is the finalized suggestion handed back to the caller and persisted.
type Post struct {
	Scheduled
	OrganizationID string `json:"organization_id"`
	Status         string `json:"status"`
}

// PostStatusSuggested is the only status the chain itself produces;
// downstream surfaces move posts to approved/published.
const PostStatusSuggested = "suggested"

// PartialResults accumulates whatever each step managed to produce, so a
// caller who only observes the terminal snapshot can still salvage output.
type PartialResults struct {
	Ideas      []Idea       `json:"ideas,omitempty"`
	Elaborated []Elaborated `json:"elaborated,omitempty"`
	WithSEO    []WithSEO    `json:"with_seo,omitempty"`
	Scheduled  []Scheduled  `json:"scheduled,omitempty"`
	Final      []Post       `json:"final,omitempty"`
}

// ChainState is the snapshot a chain publishes after every transition.
// It is written whole (copy-on-write) and never mutated in place, so
// readers can never observe a half-updated state.
type ChainState struct {
	ChainID      string         `json:"chain_id"`
	IsGenerating bool           `json:"is_generating"`
	Step         Step           `json:"step"`
	Progress     int            `json:"progress"`
	Error        string         `json:"error,omitempty"`
	Partial      PartialResults `json:"partial_results"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the state. Slices are copied so the clone
// shares no mutable memory with the original.
func (s ChainState) Clone() ChainState {
	out := s
	out.Partial = PartialResults{
		Ideas:      append([]Idea(nil), s.Partial.Ideas...),
		Elaborated: append([]Elaborated(nil), s.Partial.Elaborated...),
		WithSEO:    append([]WithSEO(nil), s.Partial.WithSEO...),
		Scheduled:  append([]Scheduled(nil), s.Partial.Scheduled...),
		Final:      append([]Post(nil), s.Partial.Final...),
	}
	return out
}
