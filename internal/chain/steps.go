package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

// PlatformRequest asks for Count content ideas aimed at Platform.
type PlatformRequest struct {
	Platform string `json:"platform"`
	Count    int    `json:"count"`
}

// FailedElaborationBody replaces the body of any item whose elaboration
// call failed. Clients key retry affordances off NeedsRetry, not this text.
const FailedElaborationBody = "Content generation failed for this idea. Regenerate this post to fill in the draft."

// placeholderSEO marks items the SEO step could not analyze. The low
// confidence tells consumers the annotation is a stand-in.
func placeholderSEO() content.SEOAnnotation {
	return content.SEOAnnotation{Score: 0, Confidence: 0.2}
}

type ideaPayload struct {
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Concept  string `json:"concept"`
}

// generateIdeas runs the first pipeline step. Any failure here is fatal:
// nothing downstream can proceed without at least one idea.
func generateIdeas(ctx context.Context, gen Generator, org content.Organization, reqs []PlatformRequest, customPrompt string, recentTitles []string) ([]content.Idea, error) {
	raw, err := gen.Generate(ctx, systemPrompt, buildIdeasPrompt(org, reqs, customPrompt, recentTitles))
	if err != nil {
		return nil, &StepError{Phase: PhaseIdeas, Err: err}
	}
	var decoded []ideaPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, &StepError{Phase: PhaseIdeas, Err: fmt.Errorf("decode ideas: %w", err)}
	}

	remaining := make(map[string]int, len(reqs))
	for _, r := range reqs {
		remaining[strings.ToLower(r.Platform)] += r.Count
	}
	var ideas []content.Idea
	for _, d := range decoded {
		platform := strings.ToLower(strings.TrimSpace(d.Platform))
		if remaining[platform] <= 0 {
			continue
		}
		remaining[platform]--
		ideas = append(ideas, content.Idea{
			ID:       uuid.NewString(),
			Platform: platform,
			Title:    strings.TrimSpace(d.Title),
			Concept:  strings.TrimSpace(d.Concept),
		})
	}
	if len(ideas) == 0 {
		return nil, &StepError{Phase: PhaseIdeas, Err: errors.New("collaborator returned no usable ideas")}
	}
	return ideas, nil
}

type elaborationPayload struct {
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags"`
}

// elaborate drafts the full body for every idea. Items are processed in
// fixed-size batches with one concurrent collaborator call per item, which
// bounds load on the collaborator while overlapping latency. A failing call
// degrades that one item to a placeholder body; the step as a whole only
// errors when every single call failed.
func elaborate(ctx context.Context, gen Generator, org content.Organization, ideas []content.Idea, batchSize int) ([]content.Elaborated, error) {
	if batchSize <= 0 {
		batchSize = 3
	}
	out := make([]content.Elaborated, len(ideas))
	for start := 0; start < len(ideas); start += batchSize {
		end := start + batchSize
		if end > len(ideas) {
			end = len(ideas)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = elaborateOne(ctx, gen, org, ideas[i])
			}(i)
		}
		wg.Wait()
	}

	failed := 0
	for _, it := range out {
		if it.NeedsRetry {
			failed++
		}
	}
	if len(out) > 0 && failed == len(out) {
		return out, &StepError{Phase: PhaseElaboration, Err: errors.New("all elaboration calls failed")}
	}
	return out, nil
}

func elaborateOne(ctx context.Context, gen Generator, org content.Organization, idea content.Idea) content.Elaborated {
	raw, err := gen.Generate(ctx, systemPrompt, buildElaborationPrompt(org, idea))
	if err != nil {
		return content.Elaborated{Idea: idea, Body: FailedElaborationBody, NeedsRetry: true}
	}
	var decoded elaborationPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil || strings.TrimSpace(decoded.Body) == "" {
		return content.Elaborated{Idea: idea, Body: FailedElaborationBody, NeedsRetry: true}
	}
	return content.Elaborated{Idea: idea, Body: strings.TrimSpace(decoded.Body), Hashtags: decoded.Hashtags}
}

// simplifyIdeas is the elaboration fallback: items built directly from the
// ideas, concept copied into the body, all flagged for retry.
func simplifyIdeas(ideas []content.Idea) []content.Elaborated {
	out := make([]content.Elaborated, len(ideas))
	for i, idea := range ideas {
		out[i] = content.Elaborated{Idea: idea, Body: idea.Concept, NeedsRetry: true}
	}
	return out
}

type seoPayload struct {
	ID         string   `json:"id"`
	Keywords   []string `json:"keywords"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
}

// analyzeSEO annotates every item in one collaborator call. On failure the
// controller carries elaborated items forward with placeholder annotations.
func analyzeSEO(ctx context.Context, gen Generator, items []content.Elaborated) ([]content.WithSEO, error) {
	raw, err := gen.Generate(ctx, systemPrompt, buildSEOPrompt(items))
	if err != nil {
		return nil, &StepError{Phase: PhaseSEO, Err: err}
	}
	var decoded []seoPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, &StepError{Phase: PhaseSEO, Err: fmt.Errorf("decode seo analysis: %w", err)}
	}
	byID := make(map[string]seoPayload, len(decoded))
	for _, d := range decoded {
		byID[d.ID] = d
	}
	out := make([]content.WithSEO, len(items))
	for i, it := range items {
		out[i] = content.WithSEO{Elaborated: it, SEO: placeholderSEO()}
		if d, ok := byID[it.ID]; ok {
			out[i].SEO = content.SEOAnnotation{Keywords: d.Keywords, Score: d.Score, Confidence: d.Confidence}
		}
	}
	return out, nil
}

// annotatePlaceholder is the SEO fallback: carry items forward unchanged
// apart from a low-confidence stand-in annotation.
func annotatePlaceholder(items []content.Elaborated) []content.WithSEO {
	out := make([]content.WithSEO, len(items))
	for i, it := range items {
		out[i] = content.WithSEO{Elaborated: it, SEO: placeholderSEO()}
	}
	return out
}
