// Package orchestrator sequences one run: integrity check against the task
// record, the running/final status reports, and the budgeted enumeration in
// between.
//
//	Idle -> Verifying -> Running -> Completed | EnergyExceeded
//	             |           \-> TransportFailed
//	             +-> HashMismatch | Refused | TransportFailed
//
// With reporting disabled the run goes straight from Idle to Running.
package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ja7ad/rectask/pkg/enumerate"
	"github.com/ja7ad/rectask/pkg/logging"
	"github.com/ja7ad/rectask/pkg/task"
)

// Tasks is the remote task API.
type Tasks interface {
	Fetch(ctx context.Context, id string) (task.Record, error)
	UpdateStatus(ctx context.Context, id string, p task.Patch) error
}

// Verifier checks the program against an expected digest.
type Verifier interface {
	Verify(expected string) (ok bool, actual string, err error)
}

// Runner performs the budgeted enumeration.
type Runner interface {
	Run(r enumerate.Range, b enumerate.Budget) enumerate.RunResult
}

// Settings is the immutable per-run configuration.
type Settings struct {
	Reporting bool
	TaskID    string
	Budget    enumerate.Budget
}

// Orchestrator runs the state machine. It is not safe for concurrent use.
type Orchestrator struct {
	settings Settings
	tasks    Tasks
	verifier Verifier
	runner   Runner
	log      *zap.Logger
	tracer   trace.Tracer

	state State
	span  trace.Span
}

// New creates an Orchestrator. tasks and verifier may be nil when reporting
// is disabled.
func New(s Settings, tasks Tasks, verifier Verifier, runner Runner, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		settings: s,
		tasks:    tasks,
		verifier: verifier,
		runner:   runner,
		log:      logging.OrNop(log),
		tracer:   otel.Tracer("github.com/ja7ad/rectask/pkg/orchestrator"),
	}
}

// Run executes one run over r. The returned error is nil for Completed and
// EnergyExceeded; every other terminal state carries one of the package
// sentinels.
func (o *Orchestrator) Run(ctx context.Context, r enumerate.Range) (Outcome, error) {
	ctx, o.span = o.tracer.Start(ctx, "rectask.run", trace.WithAttributes(
		attribute.Int64("range.a", r.A),
		attribute.Int64("range.b", r.B),
		attribute.Float64("budget.mwh", o.settings.Budget.LimitMilliwattHours),
		attribute.Bool("reporting", o.settings.Reporting),
	))
	defer o.span.End()
	o.state = Idle

	out, err := o.run(ctx, r)
	o.span.SetAttributes(attribute.String("outcome", out.State.String()))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	} else {
		o.span.SetStatus(codes.Ok, "")
	}
	return out, err
}

func (o *Orchestrator) run(ctx context.Context, r enumerate.Range) (Outcome, error) {
	if r.A < 0 || r.B < 0 {
		o.transition(InvalidArguments)
		return Outcome{State: InvalidArguments}, fmt.Errorf("%w: range bounds must be >= 0", ErrInvalidArguments)
	}

	if !o.settings.Reporting {
		o.transition(Running)
		res := o.enumerate(r)
		return Outcome{State: o.finalState(res), Result: &res}, nil
	}

	id := o.settings.TaskID
	o.transition(Verifying)

	rec, err := o.tasks.Fetch(ctx, id)
	if err != nil {
		return o.transportFailed(Outcome{}, "fetch task", err)
	}
	if rec.Status.IsTerminal() {
		o.log.Error("refusing to restart finished task",
			zap.String("task", id), zap.Stringer("status", rec.Status))
		o.transition(Refused)
		return Outcome{State: Refused}, fmt.Errorf("%w: task %s is %s", ErrAlreadyFinished, id, rec.Status)
	}

	ok, digest, err := o.verifier.Verify(rec.Hash)
	if err != nil || !ok {
		return o.hashMismatch(ctx, id, digest, err)
	}
	out := Outcome{Hash: digest}

	o.transition(Running)
	if err := o.tasks.UpdateStatus(ctx, id, task.StatusPatch(task.Running, digest)); err != nil {
		return o.transportFailed(out, "mark running", err)
	}

	res := o.enumerate(r)
	out.Result = &res
	final := o.finalState(res)

	status := task.Completed
	if final == EnergyExceeded {
		status = task.EnergyExceeded
	}
	patch := task.FinalPatch(status, digest, res.Elapsed.Hours(), res.EnergyMilliwattHours)
	if err := o.tasks.UpdateStatus(ctx, id, patch); err != nil {
		return o.transportFailed(out, "report final status", err)
	}

	out.State = final
	return out, nil
}

func (o *Orchestrator) enumerate(r enumerate.Range) enumerate.RunResult {
	res := o.runner.Run(r, o.settings.Budget)
	o.log.Info("enumeration finished",
		zap.String("status", res.Status.String()),
		zap.Int("primes", len(res.Primes)),
		zap.Duration("elapsed", res.Elapsed),
		zap.Float64("energy_mwh", res.EnergyMilliwattHours),
		zap.Float64("limit_mwh", res.Budget.LimitMilliwattHours))
	return res
}

func (o *Orchestrator) finalState(res enumerate.RunResult) State {
	if res.Status == enumerate.EnergyExceeded {
		o.transition(EnergyExceeded)
		return EnergyExceeded
	}
	o.transition(Completed)
	return Completed
}

func (o *Orchestrator) hashMismatch(ctx context.Context, id, digest string, cause error) (Outcome, error) {
	o.transition(HashMismatch)
	o.log.Error("integrity check failed",
		zap.String("task", id), zap.String("hash", digest), zap.Error(cause))

	// best effort: the run is refused whether or not the service hears about it
	if err := o.tasks.UpdateStatus(ctx, id, task.StatusPatch(task.HashMismatch, digest)); err != nil {
		o.log.Warn("could not report hash mismatch", zap.String("task", id), zap.Error(err))
	}

	err := ErrHashMismatch
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrHashMismatch, cause)
	}
	return Outcome{State: HashMismatch, Hash: digest}, err
}

func (o *Orchestrator) transportFailed(out Outcome, step string, err error) (Outcome, error) {
	o.transition(TransportFailed)
	o.log.Error("task service call failed",
		zap.String("step", step), zap.String("task", o.settings.TaskID), zap.Error(err))
	out.State = TransportFailed
	return out, fmt.Errorf("%w: %s: %w", ErrTransport, step, err)
}

func (o *Orchestrator) transition(to State) {
	o.log.Debug("state transition", zap.Stringer("from", o.state), zap.Stringer("to", to))
	o.state = to
	if o.span != nil {
		o.span.AddEvent("state." + to.String())
	}
}
