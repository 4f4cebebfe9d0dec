package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/postwise/config"
	"github.com/mohammad-safakhou/postwise/internal/content"
	"github.com/mohammad-safakhou/postwise/internal/progress"
	"github.com/mohammad-safakhou/postwise/internal/schedule"
	"github.com/mohammad-safakhou/postwise/internal/telemetry"
)

// OrganizationDirectory looks up the organization a chain generates for and
// its recent publishing history.
type OrganizationDirectory interface {
	GetOrganization(ctx context.Context, id string) (content.Organization, error)
	RecentPostTitles(ctx context.Context, orgID string, limit int) ([]string, error)
}

// PostArchive persists the finalized suggestions of a completed chain.
type PostArchive interface {
	SavePosts(ctx context.Context, chainID string, posts []content.Post) error
}

// Params describes one chain run. AnchorDate and TimeFrame must already be
// validated by the caller; the controller derives the scheduling window
// from them.
type Params struct {
	ChainID        string
	OrganizationID string
	TimeFrame      string
	AnchorDate     time.Time
	Requests       []PlatformRequest
	CustomPrompt   string
}

// Progress checkpoints published before and after each step. Clients rely
// on these for UI smoothing; the sequence is non-decreasing by contract.
const (
	progressInit      = 5
	progressIdeas     = 15
	progressIdeasDone = 30
	progressElab      = 35
	progressElabDone  = 55
	progressSEO       = 60
	progressSEODone   = 75
	progressSched     = 80
	progressSchedDone = 95
	progressComplete  = 100
)

// Controller drives the four pipeline steps in sequence, publishing a full
// state snapshot to the progress store after every transition. One
// controller serves many concurrent chains; chains share no state.
type Controller struct {
	gen         Generator
	store       progress.Store
	orgs        OrganizationDirectory
	archive     PostArchive
	logger      *log.Logger
	batchSize   int
	stepTimeout time.Duration

	// newRand supplies the scheduler's randomness; swapped for a seeded
	// source in tests.
	newRand func() *rand.Rand
}

// New creates a chain controller.
func New(gen Generator, store progress.Store, orgs OrganizationDirectory, archive PostArchive, cfg config.ChainConfig) *Controller {
	batch := cfg.ElaborationBatchSize
	if batch <= 0 {
		batch = 3
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 90 * time.Second
	}
	return &Controller{
		gen:         gen,
		store:       store,
		orgs:        orgs,
		archive:     archive,
		logger:      log.New(log.Writer(), "[CHAIN] ", log.LstdFlags),
		batchSize:   batch,
		stepTimeout: stepTimeout,
		newRand:     func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
	}
}

// Start accepts a run and returns its chain identifier immediately; the
// pipeline executes as a detached background task. A caller-supplied
// ChainID is honored so the caller can open the progress stream before
// triggering the run.
func (c *Controller) Start(params Params) string {
	id := params.ChainID
	if id == "" {
		id = uuid.NewString()
	}
	telemetry.ChainsStarted.Inc()
	c.publish(context.Background(), id, content.ChainState{
		IsGenerating: true,
		Step:         content.StepInitializing,
		Progress:     progressInit,
	})
	go c.run(id, params)
	return id
}

// run executes the pipeline to a terminal state. Every failure is observed
// here and converted into either a degraded continuation or a terminal
// error snapshot; nothing downstream watches this goroutine.
var tracer = otel.Tracer("postwise/internal/chain")

func (c *Controller) run(id string, p Params) {
	ctx, span := tracer.Start(context.Background(), "chain.run", trace.WithAttributes(
		attribute.String("chain_id", id),
		attribute.String("organization_id", p.OrganizationID),
		attribute.String("time_frame", p.TimeFrame),
	))
	defer span.End()
	state := content.ChainState{IsGenerating: true, Step: content.StepInitializing, Progress: progressInit}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("chain %s panicked: %v", id, r)
			c.fail(ctx, id, state, fmt.Errorf("internal failure: %v", r))
		}
	}()

	window, err := schedule.DeriveWindow(p.AnchorDate, p.TimeFrame)
	if err != nil {
		c.fail(ctx, id, state, &StepError{Phase: PhaseContext, Err: err})
		return
	}
	org, err := c.orgs.GetOrganization(ctx, p.OrganizationID)
	if err != nil {
		c.fail(ctx, id, state, &StepError{Phase: PhaseContext, Err: fmt.Errorf("organization lookup: %w", err)})
		return
	}
	recent, err := c.orgs.RecentPostTitles(ctx, p.OrganizationID, 10)
	if err != nil {
		// History only steers the prompt away from repeats; losing it is fine.
		c.logger.Printf("chain %s: recent posts lookup failed: %v", id, err)
	}

	// Step 1: ideas. Fatal on failure.
	state.Step, state.Progress = content.StepGeneratingIdeas, progressIdeas
	c.publish(ctx, id, state)
	ideas, err := timedStep(c, ctx, "ideas", func(ctx context.Context) ([]content.Idea, error) {
		return generateIdeas(ctx, c.gen, org, p.Requests, p.CustomPrompt, recent)
	})
	if err != nil {
		c.fail(ctx, id, state, err)
		return
	}
	state.Partial.Ideas, state.Progress = ideas, progressIdeasDone
	c.publish(ctx, id, state)

	// Step 2: elaboration. A total failure degrades to simplified items and
	// completes the chain without SEO or scheduling.
	state.Step, state.Progress = content.StepElaborating, progressElab
	c.publish(ctx, id, state)
	elaborated, err := timedStep(c, ctx, "elaboration", func(ctx context.Context) ([]content.Elaborated, error) {
		return elaborate(ctx, c.gen, org, ideas, c.batchSize)
	})
	if err != nil {
		c.logger.Printf("chain %s: elaboration degraded: %v", id, err)
		span.AddEvent("elaboration degraded", trace.WithAttributes(attribute.String("error", err.Error())))
		state.Partial.Elaborated = simplifyIdeas(ideas)
		state.Partial.Final = finalizeUnscheduled(p.OrganizationID, state.Partial.Elaborated)
		c.complete(ctx, id, state)
		return
	}
	state.Partial.Elaborated, state.Progress = elaborated, progressElabDone
	c.publish(ctx, id, state)

	// Step 3: SEO analysis. Failure degrades to placeholder annotations.
	state.Step, state.Progress = content.StepGeneratingSEO, progressSEO
	c.publish(ctx, id, state)
	withSEO, err := timedStep(c, ctx, "seo", func(ctx context.Context) ([]content.WithSEO, error) {
		return analyzeSEO(ctx, c.gen, elaborated)
	})
	if err != nil {
		c.logger.Printf("chain %s: seo degraded: %v", id, err)
		span.AddEvent("seo degraded", trace.WithAttributes(attribute.String("error", err.Error())))
		withSEO = annotatePlaceholder(elaborated)
	}
	state.Partial.WithSEO, state.Progress = withSEO, progressSEODone
	c.publish(ctx, id, state)

	// Step 4: scheduling. Failure degrades to naive even spacing.
	state.Step, state.Progress = content.StepScheduling, progressSched
	c.publish(ctx, id, state)
	stepStart := time.Now()
	scheduled, err := schedule.Schedule(withSEO, window, c.newRand())
	if err != nil {
		c.logger.Printf("chain %s: scheduling degraded: %v", id, err)
		span.AddEvent("scheduling degraded", trace.WithAttributes(attribute.String("error", err.Error())))
		scheduled = schedule.Fallback(withSEO, window)
	}
	telemetry.StepDuration.WithLabelValues("scheduling").Observe(time.Since(stepStart).Seconds())
	state.Partial.Scheduled, state.Progress = scheduled, progressSchedDone
	c.publish(ctx, id, state)

	posts := finalize(p.OrganizationID, scheduled)
	if c.archive != nil {
		if err := c.archive.SavePosts(ctx, id, posts); err != nil {
			c.logger.Printf("chain %s: persisting posts failed: %v", id, err)
		}
	}
	state.Partial.Final = posts
	c.complete(ctx, id, state)
}

// timedStep runs one step under the step timeout and records its duration.
func timedStep[T any](c *Controller, ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()
	start := time.Now()
	out, err := fn(stepCtx)
	telemetry.StepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return out, err
}

func (c *Controller) complete(ctx context.Context, id string, state content.ChainState) {
	state.Step, state.Progress, state.IsGenerating = content.StepComplete, progressComplete, false
	c.publish(ctx, id, state)
	telemetry.ChainsFinished.WithLabelValues("complete").Inc()
	c.logger.Printf("chain %s complete: %d posts", id, len(state.Partial.Final))
}

// fail writes the terminal error snapshot, keeping whatever partial results
// were accumulated so far so the caller can salvage them.
func (c *Controller) fail(ctx context.Context, id string, state content.ChainState, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
	state.Step, state.IsGenerating = content.StepError, false
	state.Error = err.Error()
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		state.Error = fmt.Sprintf("%s failed: %v", stepErr.Phase, stepErr.Err)
	}
	c.publish(ctx, id, state)
	telemetry.ChainsFinished.WithLabelValues("error").Inc()
	c.logger.Printf("chain %s failed: %v", id, err)
}

func (c *Controller) publish(ctx context.Context, id string, state content.ChainState) {
	state.ChainID = id
	state.UpdatedAt = time.Now()
	if err := c.store.Put(ctx, id, state); err != nil {
		c.logger.Printf("chain %s: progress write failed: %v", id, err)
	}
}

func finalize(orgID string, scheduled []content.Scheduled) []content.Post {
	posts := make([]content.Post, len(scheduled))
	for i, s := range scheduled {
		posts[i] = content.Post{Scheduled: s, OrganizationID: orgID, Status: content.PostStatusSuggested}
	}
	return posts
}

// finalizeUnscheduled builds posts for the elaboration-degrade path, where
// the chain completes without calendar placement.
func finalizeUnscheduled(orgID string, items []content.Elaborated) []content.Post {
	posts := make([]content.Post, len(items))
	for i, it := range items {
		posts[i] = content.Post{
			Scheduled:      content.Scheduled{WithSEO: content.WithSEO{Elaborated: it, SEO: placeholderSEO()}},
			OrganizationID: orgID,
			Status:         content.PostStatusSuggested,
		}
	}
	return posts
}
