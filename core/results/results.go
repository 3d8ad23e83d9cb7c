// Package results records the outcome of one driver invocation and writes
// it as a JSON file.
// The record keeps how long each step of the lifecycle took so that runs
// can be compared without parsing logs.
package results

import (
	"errors"
	"sync"
	"time"

	"benchdriver/core"

	"github.com/google/uuid"
)

// StepTiming is the duration of one lifecycle step.
type StepTiming struct {
	Step      core.Step `json:"step"`
	ElapsedMs float64   `json:"elapsedMs"`
	Failed    bool      `json:"failed,omitempty"`
}

// Failure describes why the invocation did not produce a result.
type Failure struct {
	Step   core.Step `json:"step,omitempty"`
	Kind   string    `json:"kind"`
	Reason string    `json:"reason,omitempty"`
}

// Record is what is written for each invocation. Exactly one of Result and
// Failure is set once Finish was called.
type Record struct {
	RunID     string                 `json:"runId"`
	Chain     string                 `json:"chain"`
	Intent    string                 `json:"intent"`
	Account   string                 `json:"account,omitempty"`
	DryRun    bool                   `json:"dryRun,omitempty"`
	StartedAt time.Time              `json:"startedAt"`
	TotalMs   float64                `json:"totalMs"`
	Steps     []StepTiming           `json:"steps"`
	Result    *core.SubmissionResult `json:"result,omitempty"`
	Signed    string                 `json:"signedHash,omitempty"` // Hash of the signed transaction on dry runs
	Failure   *Failure               `json:"failure,omitempty"`

	lock sync.Mutex
}

// NewRecord starts the record of a run with a fresh random id.
func NewRecord(chain, intent string) *Record {
	return &Record{
		RunID:     uuid.New().String(),
		Chain:     chain,
		Intent:    intent,
		StartedAt: time.Now().UTC(),
		Steps:     make([]StepTiming, 0, 5),
	}
}

// ObserveStep can be given to the tracker as its step observer.
func (r *Record) ObserveStep(step core.Step, elapsed time.Duration, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Steps = append(r.Steps, StepTiming{
		Step:      step,
		ElapsedMs: milliseconds(elapsed),
		Failed:    err != nil,
	})
}

// Finish closes the record with the outcome of the invocation.
func (r *Record) Finish(result *core.SubmissionResult, err error) {
	var serr *core.StepError

	r.lock.Lock()
	defer r.lock.Unlock()

	r.TotalMs = milliseconds(time.Since(r.StartedAt))

	if err == nil {
		r.Result = result
		return
	}

	if errors.As(err, &serr) {
		r.Failure = &Failure{
			Step:   serr.Step,
			Kind:   serr.Kind.Error(),
			Reason: serr.Reason,
		}
		return
	}

	r.Failure = &Failure{Kind: "error", Reason: err.Error()}
}

// Elapsed returns the time spent in the given step, zero if it never ran.
func (r *Record) Elapsed(step core.Step) time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, timing := range r.Steps {
		if timing.Step == step {
			return time.Duration(timing.ElapsedMs * float64(time.Millisecond))
		}
	}

	return 0
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
