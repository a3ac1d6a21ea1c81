package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ja7ad/rectask/pkg/consumption"
	"github.com/ja7ad/rectask/pkg/enumerate"
	"github.com/ja7ad/rectask/pkg/report"
	"github.com/ja7ad/rectask/pkg/task"
	"github.com/ja7ad/rectask/pkg/telemetry"
)

type fakeTasks struct {
	rec      task.Record
	fetchErr error
	patchErr func(p task.Patch) error
	patches  []task.Patch
}

func (f *fakeTasks) Fetch(_ context.Context, id string) (task.Record, error) {
	if f.fetchErr != nil {
		return task.Record{}, f.fetchErr
	}
	r := f.rec
	r.ID = id
	return r, nil
}

func (f *fakeTasks) UpdateStatus(_ context.Context, _ string, p task.Patch) error {
	f.patches = append(f.patches, p)
	if f.patchErr != nil {
		return f.patchErr(p)
	}
	return nil
}

type fakeVerifier struct {
	digest string
	err    error
}

func (v fakeVerifier) Verify(expected string) (bool, string, error) {
	if v.err != nil {
		return false, v.digest, v.err
	}
	return expected == v.digest, v.digest, nil
}

type countingRunner struct {
	inner Runner
	calls int
}

func (c *countingRunner) Run(r enumerate.Range, b enumerate.Budget) enumerate.RunResult {
	c.calls++
	return c.inner.Run(r, b)
}

// tickClock advances by step on every call.
type tickClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newRunner(step time.Duration) *countingRunner {
	clk := &tickClock{now: time.Unix(0, 0), step: step}
	return &countingRunner{inner: enumerate.New(consumption.PowerRate{RateMilliwattHoursPerHour: 3600}, enumerate.WithClock(clk))}
}

func reporting(limit float64) Settings {
	return Settings{Reporting: true, TaskID: "t-1", Budget: enumerate.Budget{LimitMilliwattHours: limit}}
}

func TestRun_Completed(t *testing.T) {
	tasks := &fakeTasks{rec: task.Record{Hash: "abc", Status: task.Pending}}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	require.NoError(t, err)

	assert.Equal(t, Completed, out.State)
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, "abc", out.Hash)
	require.NotNil(t, out.Result)
	assert.Equal(t, []int64{2, 3, 5, 7}, out.Result.Primes)
	assert.Equal(t, 1, runner.calls)

	require.Len(t, tasks.patches, 2)
	assert.Equal(t, task.StatusPatch(task.Running, "abc"), tasks.patches[0])
	final := tasks.patches[1]
	assert.Equal(t, task.Completed, final.Status)
	assert.Equal(t, "abc", final.Hash)
	require.NotNil(t, final.ExecutionTimeHours)
	require.NotNil(t, final.EnergyConsumedMilliwattHours)
	assert.InDelta(t, out.Result.Elapsed.Hours(), *final.ExecutionTimeHours, 1e-15)
	assert.InDelta(t, out.Result.EnergyMilliwattHours, *final.EnergyConsumedMilliwattHours, 1e-12)
}

func TestRun_EnergyExceeded(t *testing.T) {
	tasks := &fakeTasks{rec: task.Record{Hash: "abc", Status: task.Running}}
	o := New(reporting(0), tasks, fakeVerifier{digest: "abc"}, newRunner(time.Second), nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 1, B: 1000})
	require.NoError(t, err, "running out of budget is an expected outcome")

	assert.Equal(t, EnergyExceeded, out.State)
	assert.Equal(t, 1, out.ExitCode())
	require.NotNil(t, out.Result)
	assert.Equal(t, int64(100), out.Result.StoppedAt)
	assert.Len(t, out.Result.Primes, 25)

	require.Len(t, tasks.patches, 2)
	assert.Equal(t, task.EnergyExceeded, tasks.patches[1].Status)
	assert.InDelta(t, 1.0, *tasks.patches[1].EnergyConsumedMilliwattHours, 1e-9)
}

func TestRun_HashMismatch(t *testing.T) {
	tasks := &fakeTasks{rec: task.Record{Hash: "expected", Status: task.Pending}}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "actual"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.Equal(t, HashMismatch, out.State)
	assert.Equal(t, 1, out.ExitCode())
	assert.Nil(t, out.Result)
	assert.Zero(t, runner.calls, "enumerator must not run")

	require.Len(t, tasks.patches, 1)
	assert.Equal(t, task.StatusPatch(task.HashMismatch, "actual"), tasks.patches[0])
}

func TestRun_HashMismatch_PatchFailureIsBestEffort(t *testing.T) {
	tasks := &fakeTasks{
		rec:      task.Record{Hash: "expected"},
		patchErr: func(task.Patch) error { return errors.New("down") },
	}
	core, logs := observer.New(zap.WarnLevel)
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "actual"}, newRunner(time.Millisecond), zap.New(core))

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, HashMismatch, out.State)
	assert.Equal(t, 1, logs.FilterMessage("could not report hash mismatch").Len())
}

func TestRun_VerifierError(t *testing.T) {
	boom := errors.New("cannot read executable")
	tasks := &fakeTasks{rec: task.Record{Hash: "abc"}}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), tasks, fakeVerifier{err: boom}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, HashMismatch, out.State)
	assert.Zero(t, runner.calls)
}

func TestRun_RefusesFinishedTask(t *testing.T) {
	for _, st := range []task.Status{task.Completed, task.EnergyExceeded} {
		t.Run(st.String(), func(t *testing.T) {
			tasks := &fakeTasks{rec: task.Record{Hash: "abc", Status: st}}
			runner := newRunner(time.Millisecond)
			o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, runner, nil)

			out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
			assert.ErrorIs(t, err, ErrAlreadyFinished)
			assert.Equal(t, Refused, out.State)
			assert.Equal(t, 1, out.ExitCode())
			assert.Empty(t, tasks.patches)
			assert.Zero(t, runner.calls)
		})
	}
}

func TestRun_FetchFails(t *testing.T) {
	tasks := &fakeTasks{fetchErr: report.ErrRetriesExhausted}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, report.ErrRetriesExhausted)
	assert.Equal(t, TransportFailed, out.State)
	assert.Empty(t, tasks.patches)
	assert.Zero(t, runner.calls)
}

func TestRun_MarkRunningFails(t *testing.T) {
	tasks := &fakeTasks{
		rec:      task.Record{Hash: "abc"},
		patchErr: func(task.Patch) error { return report.ErrRetriesExhausted },
	}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, TransportFailed, out.State)
	assert.Zero(t, runner.calls)
	assert.Len(t, tasks.patches, 1)
}

func TestRun_FinalPatchFails(t *testing.T) {
	tasks := &fakeTasks{
		rec: task.Record{Hash: "abc"},
		patchErr: func(p task.Patch) error {
			if p.Status == task.Running {
				return nil
			}
			return report.ErrRetriesExhausted
		},
	}
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, newRunner(time.Millisecond), nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, TransportFailed, out.State)
	require.NotNil(t, out.Result, "local results survive a failed final report")
	assert.Equal(t, []int64{2, 3, 5, 7}, out.Result.Primes)
	assert.Equal(t, 1, out.ExitCode())
}

func TestRun_Standalone(t *testing.T) {
	runner := newRunner(time.Millisecond)
	o := New(Settings{Budget: enumerate.Budget{LimitMilliwattHours: 10000}}, nil, nil, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 10, B: 1})
	require.NoError(t, err)
	assert.Equal(t, Completed, out.State)
	assert.Empty(t, out.Result.Primes)
	assert.Equal(t, 0, out.ExitCode())
}

func TestRun_InvalidArguments(t *testing.T) {
	tasks := &fakeTasks{}
	runner := newRunner(time.Millisecond)
	o := New(reporting(1), tasks, fakeVerifier{}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: -1, B: 10})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Equal(t, InvalidArguments, out.State)
	assert.Equal(t, 1, out.ExitCode())
	assert.Empty(t, tasks.patches)
	assert.Zero(t, runner.calls)
}

// The task service refuses every GET; after three attempts the run fails
// without enumerating or patching.
func TestRun_OverHTTP_FetchRetriesExhausted(t *testing.T) {
	var gets, patches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
		case http.MethodPatch:
			patches.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rc := report.New(report.Options{
		BaseURL: srv.URL, Token: "jwt", Attempts: 3, BaseDelay: time.Millisecond, HTTP: srv.Client(),
	})
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), task.NewClient(rc, "", ""), fakeVerifier{digest: "abc"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, report.ErrRetriesExhausted)
	assert.Equal(t, TransportFailed, out.State)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, int32(3), gets.Load())
	assert.Equal(t, int32(0), patches.Load())
	assert.Zero(t, runner.calls)
}

func TestRun_OverHTTP_HashMismatch(t *testing.T) {
	var patched atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/task/t-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hash":"not-this-binary","status":0}`))
	})
	mux.HandleFunc("PATCH /api/task/execution/t-1", func(w http.ResponseWriter, r *http.Request) {
		patched.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rc := report.New(report.Options{BaseURL: srv.URL, Token: "jwt", BaseDelay: time.Millisecond, HTTP: srv.Client()})
	runner := newRunner(time.Millisecond)
	o := New(reporting(1e6), task.NewClient(rc, "", ""), fakeVerifier{digest: "abc"}, runner, nil)

	out, err := o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.Equal(t, HashMismatch, out.State)
	assert.Equal(t, int32(1), patched.Load())
	assert.Zero(t, runner.calls)
}

func TestRun_TraceEvents(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := telemetry.NewTracerProviderWithExporter(exp, telemetry.Config{ServiceName: "rectask", ServiceVersion: "test"})
	require.NoError(t, err)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tasks := &fakeTasks{rec: task.Record{Hash: "abc"}}
	o := New(reporting(1e6), tasks, fakeVerifier{digest: "abc"}, newRunner(time.Millisecond), nil)
	_, err = o.Run(context.Background(), enumerate.Range{A: 0, B: 10})
	require.NoError(t, err)
	require.NoError(t, tp.ForceFlush(context.Background()))

	var run *tracetest.SpanStub
	spans := exp.GetSpans()
	for i := range spans {
		if spans[i].Name == "rectask.run" {
			run = &spans[i]
		}
	}
	require.NotNil(t, run)

	var events []string
	for _, e := range run.Events {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{"state.verifying", "state.running", "state.completed"}, events)
	assert.Contains(t, run.Resource.Attributes(), attribute.String("service.name", "rectask"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "transport_failed", TransportFailed.String())
	assert.Equal(t, "refused", Refused.String())
	assert.Equal(t, "unknown", State(99).String())
}
