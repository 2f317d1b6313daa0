package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/quiz"
	"github.com/mohammad-safakhou/quizchain/internal/store"
)

var quietLogger = log.New(io.Discard, "", 0)

type fakeSolver struct {
	mu    sync.Mutex
	urls  []string
	block chan struct{}
}

func (f *fakeSolver) Solve(_ context.Context, url string) quiz.ChainResult {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return quiz.ChainResult{TotalSolved: 1, Results: []quiz.StepRecord{{URL: url, Answer: quiz.IntAnswer(1), Correct: true}}}
}

func (f *fakeSolver) solved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeRuns struct {
	mu       sync.Mutex
	statuses []string
	results  map[string]quiz.ChainResult
	err      error
}

func (f *fakeRuns) MarkRunStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, id+":"+status)
	return f.err
}

func (f *fakeRuns) CompleteRun(_ context.Context, id string, r quiz.ChainResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = map[string]quiz.ChainResult{}
	}
	f.results[id] = r
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, stream, eventType, version string, _ any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, stream+"/"+eventType+"@"+version)
	return "1-0", nil
}

func TestExecutorRecordsRunAndPublishes(t *testing.T) {
	runs := &fakeRuns{}
	pub := &fakePublisher{}
	exec := &Executor{Solver: &fakeSolver{}, Runs: runs, Events: pub, CompletedStream: "quiz.completed", Logger: quietLogger}

	res := exec.Execute(context.Background(), Job{RunID: "r1", URL: "https://quiz.test/1"})
	if res.TotalSolved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(runs.statuses) != 1 || runs.statuses[0] != "r1:"+store.RunStatusRunning {
		t.Fatalf("unexpected statuses %v", runs.statuses)
	}
	if _, ok := runs.results["r1"]; !ok {
		t.Fatalf("result not stored")
	}
	if len(pub.events) != 1 || pub.events[0] != "quiz.completed/"+streams.EventChainCompleted+"@v1" {
		t.Fatalf("unexpected events %v", pub.events)
	}
}

func TestExecutorIgnoresSinkFailures(t *testing.T) {
	exec := &Executor{
		Solver:          &fakeSolver{},
		Runs:            &fakeRuns{err: errors.New("db down")},
		Events:          &fakePublisher{err: errors.New("redis down")},
		CompletedStream: "quiz.completed",
		Logger:          quietLogger,
	}
	if res := exec.Execute(context.Background(), Job{RunID: "r1", URL: "u"}); res.TotalSolved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInlineDispatcherRunsJobs(t *testing.T) {
	solver := &fakeSolver{}
	d := NewInlineDispatcher(&Executor{Solver: solver, Logger: quietLogger}, 2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	for _, u := range []string{"https://quiz.test/a", "https://quiz.test/b", "https://quiz.test/c"} {
		if err := d.Dispatch(ctx, Job{RunID: u, URL: u}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	// the caller's context ending must not stop queued chains
	cancel()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := solver.solved(); len(got) != 3 {
		t.Fatalf("expected 3 solved chains, got %v", got)
	}
	if err := d.Dispatch(context.Background(), Job{URL: "late"}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestInlineDispatcherQueueFull(t *testing.T) {
	solver := &fakeSolver{block: make(chan struct{})}
	d := NewInlineDispatcher(&Executor{Solver: solver, Logger: quietLogger}, 1, 1)

	if err := d.Dispatch(context.Background(), Job{URL: "1"}); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	// wait until the single worker holds the first job
	deadline := time.Now().Add(2 * time.Second)
	for len(d.jobs) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := d.Dispatch(context.Background(), Job{URL: "2"}); err != nil {
		t.Fatalf("second dispatch should fill the backlog: %v", err)
	}
	if err := d.Dispatch(context.Background(), Job{URL: "3"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(solver.block)
	_ = d.Close()
}

func TestStreamDispatcherPublishesSolveEvent(t *testing.T) {
	pub := &fakePublisher{}
	d := NewStreamDispatcher(pub, "quiz.solve", quietLogger)
	if err := d.Dispatch(context.Background(), Job{RunID: "r1", URL: "https://quiz.test/1"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0] != "quiz.solve/"+streams.EventSolveRequested+"@v1" {
		t.Fatalf("unexpected events %v", pub.events)
	}
}

// schemaPublisher validates payloads the way streams.Publisher does before XADD.
type schemaPublisher struct {
	reg *streams.SchemaRegistry
}

func (p schemaPublisher) PublishEvent(_ context.Context, _, eventType, version string, payload any) (string, error) {
	env, err := streams.NewEnvelope(eventType, version, payload)
	if err != nil {
		return "", err
	}
	if err := p.reg.Validate(eventType, version, env.Data); err != nil {
		return "", err
	}
	return "1-0", nil
}

func TestStreamDispatcherAcceptsSchemelessURL(t *testing.T) {
	reg, err := streams.NewBaseRegistry()
	if err != nil {
		t.Fatalf("NewBaseRegistry: %v", err)
	}
	d := NewStreamDispatcher(schemaPublisher{reg: reg}, "quiz.solve", quietLogger)
	if err := d.Dispatch(context.Background(), Job{RunID: "r1", URL: "quiz.test/1"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

type fakeReader struct {
	mu    sync.Mutex
	acked []string
}

func (f *fakeReader) Read(context.Context, int64, time.Duration) ([]streams.Message, error) {
	return nil, nil
}

func (f *fakeReader) Claim(context.Context, time.Duration, int64) ([]streams.Message, error) {
	return nil, nil
}

func (f *fakeReader) Ack(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return nil
}

type memIdempotency map[string]bool

func (m memIdempotency) ClaimIdempotency(_ context.Context, scope, key string) (bool, error) {
	k := scope + "/" + key
	if m[k] {
		return false, nil
	}
	m[k] = true
	return true, nil
}

func TestProcessorHandleSkipsDuplicates(t *testing.T) {
	solver := &fakeSolver{}
	p := NewProcessor(quietLogger, &fakeReader{}, &Executor{Solver: solver, Logger: quietLogger}, memIdempotency{}, 1, nil, nil)

	env, err := streams.NewEnvelope(streams.EventSolveRequested, streams.VersionV1, Job{RunID: "r1", URL: "https://quiz.test/1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	env.EventID = "evt-1"
	msg := streams.Message{ID: "1-0", Envelope: env}

	for i := 0; i < 2; i++ {
		if err := p.handle(context.Background(), msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}
	if got := solver.solved(); len(got) != 1 || got[0] != "https://quiz.test/1" {
		t.Fatalf("expected a single chain, got %v", got)
	}

	env.EventType = "quiz.other"
	if err := p.handle(context.Background(), streams.Message{ID: "2-0", Envelope: env}); err == nil {
		t.Fatalf("expected unexpected event type error")
	}
}

func TestProcessorRunAcksEntries(t *testing.T) {
	reader := &fakeReader{}
	solver := &fakeSolver{}
	p := NewProcessor(quietLogger, reader, &Executor{Solver: solver, Logger: quietLogger}, nil, 2, nil, nil)

	var msgs []streams.Message
	for i, u := range []string{"https://quiz.test/1", "https://quiz.test/2"} {
		env, _ := streams.NewEnvelope(streams.EventSolveRequested, streams.VersionV1, Job{RunID: u, URL: u})
		env.EventID = u
		msgs = append(msgs, streams.Message{ID: string(rune('a' + i)), Envelope: env})
	}
	sem := make(chan struct{}, 2)
	var wg sync.WaitGroup
	p.run(context.Background(), msgs, sem, &wg)
	wg.Wait()
	if len(solver.solved()) != 2 || len(reader.acked) != 2 {
		t.Fatalf("solved=%v acked=%v", solver.solved(), reader.acked)
	}
}
