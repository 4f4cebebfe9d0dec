package chain

import "fmt"

// Phase names the pipeline step that produced an error.
type Phase string

const (
	PhaseIdeas       Phase = "ideas"
	PhaseElaboration Phase = "elaboration"
	PhaseSEO         Phase = "seo"
	PhaseScheduling  Phase = "scheduling"
	PhaseContext     Phase = "context"
)

// StepError wraps a failure inside a pipeline step. The controller matches
// on the phase to decide between a degraded continuation and a terminal
// error state; only the ideas and context phases are fatal.
type StepError struct {
	Phase Phase
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("chain step %s: %v", e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
