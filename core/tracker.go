package core


import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)


const (
	DEFAULT_CONFIRM_TIMEOUT time.Duration = 2 * time.Minute

	tracer_name string = "benchdriver/core"
)


// Called once per step after the step resolved, with `err == nil` on
// success.
//
type StepObserver func(step Step, elapsed time.Duration, err error)


type TrackerOptions struct {
	// Bound on the wait for confirmation once the transaction was
	// accepted by the node. Zero means `DEFAULT_CONFIRM_TIMEOUT`, a
	// negative value means no bound besides the caller context.
	//
	ConfirmTimeout  time.Duration

	// Tracer for the invocation spans. Nil means the global provider.
	//
	Tracer          trace.Tracer

	Observer        StepObserver
}


// Drive one intent through fetch, build, sign, submit and confirm.
// A tracker never retries: every failure is returned to the caller as a
// `*StepError`. A tracker can serve concurrent invocations but it does not
// serialize invocations on the same account.
//
type Tracker struct {
	logger    Logger
	ledger    *NonceLedger
	timeout   time.Duration
	tracer    trace.Tracer
	observer  StepObserver
}

func NewTracker(logger Logger, options TrackerOptions) *Tracker {
	var this Tracker

	if logger == nil {
		logger = NewNopLogger()
	}

	this.logger = logger
	this.ledger = NewNonceLedger()
	this.timeout = options.ConfirmTimeout
	this.tracer = options.Tracer
	this.observer = options.Observer

	if this.timeout == 0 {
		this.timeout = DEFAULT_CONFIRM_TIMEOUT
	}

	if this.tracer == nil {
		this.tracer = otel.Tracer(tracer_name)
	}

	return &this
}

func (this *Tracker) Ledger() *NonceLedger {
	return this.ledger
}

func (this *Tracker) Execute(ctx context.Context, intent TransactionIntent, cred Credential, adapter ProtocolAdapter) (*SubmissionResult, error) {
	var result *SubmissionResult
	var stx SignedTransaction
	var span trace.Span
	var err error

	ctx, span = this.tracer.Start(ctx, "execute", trace.WithAttributes(
		attribute.String("intent", string(intent.Kind())),
		attribute.String("account", cred.Identity())))
	defer span.End()

	this.logger.Debugf("execute %s from %s", intent, cred)

	stx, err = this.prepare(ctx, intent, cred, adapter)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	result, err = this.submit(ctx, stx, adapter)

	endSpan(span, err)

	return result, err
}

// Run the first steps of `Execute` and stop before submission.
// The returned transaction is signed but has never reached the node and
// its nonce is not reserved.
//
func (this *Tracker) Prepare(ctx context.Context, intent TransactionIntent, cred Credential, adapter ProtocolAdapter) (SignedTransaction, error) {
	var stx SignedTransaction
	var span trace.Span
	var err error

	ctx, span = this.tracer.Start(ctx, "prepare", trace.WithAttributes(
		attribute.String("intent", string(intent.Kind())),
		attribute.String("account", cred.Identity())))
	defer span.End()

	stx, err = this.prepare(ctx, intent, cred, adapter)

	endSpan(span, err)

	return stx, err
}

func (this *Tracker) prepare(ctx context.Context, intent TransactionIntent, cred Credential, adapter ProtocolAdapter) (SignedTransaction, error) {
	var estimator Estimator
	var utx UnsignedTransaction
	var stx SignedTransaction
	var state AccountState
	var err error
	var ok bool

	err = this.step(ctx, STEP_FETCH, func(sctx context.Context) error {
		state, err = adapter.FetchAccountState(sctx, cred)
		if err != nil {
			return classify(STEP_FETCH,
				ErrAccountStateFetchFailed, err)
		}
		this.logger.Tracef("account %s at nonce %d", state.Account,
			state.Nonce)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = this.step(ctx, STEP_BUILD, func(sctx context.Context) error {
		utx, err = adapter.Builder().Build(intent, state)
		if err != nil {
			return classify(STEP_BUILD, ErrEncoding, err)
		}

		estimator, ok = adapter.(Estimator)
		if !ok {
			return nil
		}

		utx, err = estimator.Estimate(sctx, utx)
		if err != nil {
			return classify(STEP_BUILD, ErrEncoding, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = this.step(ctx, STEP_SIGN, func(_ context.Context) error {
		stx, err = adapter.Sign(utx, cred)
		if err != nil {
			return classify(STEP_SIGN, ErrInvalidCredential, err)
		}
		this.logger.Tracef("signed transaction %s with nonce %d",
			stx.Hash(), stx.Nonce())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stx, nil
}

func (this *Tracker) submit(ctx context.Context, stx SignedTransaction, adapter ProtocolAdapter) (*SubmissionResult, error) {
	var result *SubmissionResult
	var sub *Submission
	var err error

	err = this.step(ctx, STEP_SUBMIT, func(sctx context.Context) error {
		err = this.ledger.reserve(stx.Account(), stx.Nonce(), stx.Hash())
		if err != nil {
			return NewError(STEP_SUBMIT, ErrSubmissionRejected, "",
				err)
		}

		sub, err = adapter.Submit(sctx, stx)
		if err != nil {
			if !interrupted(sctx, err) {
				this.ledger.release(stx.Account(),
					stx.Nonce(), stx.Hash())
			}
			return classify(STEP_SUBMIT, ErrSubmissionRejected,
				err)
		}

		this.logger.Debugf("submitted transaction %s", sub.Hash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = this.step(ctx, STEP_CONFIRM, func(sctx context.Context) error {
		result, err = this.confirm(sctx, sub, adapter)
		return err
	})
	if err != nil {
		return nil, err
	}

	this.logger.Debugf("%s", result)

	return result, nil
}

// Whether a failed submission was cut short rather than refused by the
// node. The transaction may then already be in the node pool and its
// nonce stays reserved.
//
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}

	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (this *Tracker) confirm(ctx context.Context, sub *Submission, adapter ProtocolAdapter) (*SubmissionResult, error) {
	var result *SubmissionResult
	var bounded context.Context
	var cancel context.CancelFunc
	var err error

	if this.timeout > 0 {
		bounded, cancel = context.WithTimeout(ctx, this.timeout)
	} else {
		bounded, cancel = context.WithCancel(ctx)
	}

	defer cancel()

	result, err = adapter.Confirm(bounded, sub)
	if err == nil {
		return result, nil
	}

	// The caller gave up: the transaction stays in flight and may still
	// be included later.
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(STEP_CONFIRM,
				ErrConfirmationTimeout, fmt.Sprintf("transaction"+
				" %s not confirmed before caller deadline",
				sub.Hash), ctx.Err())
		}

		return nil, NewError(STEP_CONFIRM, ErrCanceled,
			fmt.Sprintf("stopped waiting for transaction %s",
			sub.Hash), ctx.Err())
	}

	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return nil, NewError(STEP_CONFIRM, ErrConfirmationTimeout,
			fmt.Sprintf("transaction %s not confirmed within %s",
			sub.Hash, this.timeout), err)
	}

	return nil, classify(STEP_CONFIRM, ErrConfirmationFailed, err)
}

func (this *Tracker) step(ctx context.Context, step Step, fn func(context.Context) error) error {
	var start time.Time = time.Now()
	var span trace.Span
	var err error

	ctx, span = this.tracer.Start(ctx, string(step))

	err = fn(ctx)

	endSpan(span, err)
	span.End()

	if err != nil {
		this.logger.Debugf("step %s failed: %s", step, err.Error())
	}

	if this.observer != nil {
		this.observer(step, time.Since(start), err)
	}

	return err
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
