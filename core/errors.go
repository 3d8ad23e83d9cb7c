package core


import (
	"context"
	"errors"
	"fmt"
)


type Step string

const (
	STEP_RESOLVE Step = "resolve"
	STEP_FETCH   Step = "fetch"
	STEP_BUILD   Step = "build"
	STEP_SIGN    Step = "sign"
	STEP_SUBMIT  Step = "submit"
	STEP_CONFIRM Step = "confirm"
)


// Failure classes of an invocation.
// Compare with `errors.Is`.
//
var (
	ErrInvalidCredential       = errors.New("invalid credential")
	ErrEncoding                = errors.New("encoding error")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAccountStateFetchFailed = errors.New("account state fetch failed")
	ErrSubmissionRejected      = errors.New("submission rejected")
	ErrConfirmationTimeout     = errors.New("confirmation timeout")
	ErrConfirmationFailed      = errors.New("confirmation failed")
	ErrExecutionFailed         = errors.New("execution failed")
	ErrCanceled                = errors.New("canceled")
)


// An error tagged with the step of the lifecycle which failed and the
// failure class.
// `Reason` is what the node or the local validation reported, verbatim.
//
type StepError struct {
	Step    Step
	Kind    error
	Reason  string
	Err     error
}

func NewError(step Step, kind error, reason string, cause error) *StepError {
	if (reason == "") && (cause != nil) {
		reason = cause.Error()
	}

	return &StepError{
		Step: step,
		Kind: kind,
		Reason: reason,
		Err: cause,
	}
}

func (this *StepError) Error() string {
	if this.Reason == "" {
		return fmt.Sprintf("%s: %s", this.Step, this.Kind)
	}

	return fmt.Sprintf("%s: %s: %s", this.Step, this.Kind, this.Reason)
}

func (this *StepError) Unwrap() error {
	return this.Err
}

func (this *StepError) Is(target error) bool {
	return this.Kind == target
}


// Return the step of `err` if it is or wraps a `StepError`.
//
func FailedStep(err error) (Step, bool) {
	var serr *StepError

	if errors.As(err, &serr) {
		return serr.Step, true
	}

	return "", false
}

// Tag `err` with `step` and `kind` unless it already carries a
// classification from deeper in the stack, in which case only the step is
// corrected.
//
func classify(step Step, kind error, err error) error {
	var serr *StepError

	if errors.As(err, &serr) {
		if serr.Step == step {
			return serr
		}

		return &StepError{
			Step: step,
			Kind: serr.Kind,
			Reason: serr.Reason,
			Err: serr.Err,
		}
	}

	if errors.Is(err, context.Canceled) {
		kind = ErrCanceled
	}

	return NewError(step, kind, "", err)
}
