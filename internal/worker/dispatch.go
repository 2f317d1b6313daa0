package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
)

// Dispatcher hands a job to background execution and returns immediately.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
	Close() error
}

var (
	ErrQueueFull        = errors.New("dispatch queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

// InlineDispatcher runs jobs on a fixed pool of goroutines in this process.
// Jobs run on a context detached from the caller, so a request ending does
// not cancel its chain.
type InlineDispatcher struct {
	exec   *Executor
	jobs   chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewInlineDispatcher(exec *Executor, concurrency, backlog int) *InlineDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	d := &InlineDispatcher{exec: exec, jobs: make(chan Job, backlog)}
	for i := 0; i < concurrency; i++ {
		d.wg.Add(1)
		go d.loop()
	}
	return d
}

func (d *InlineDispatcher) loop() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.exec.Execute(context.Background(), job)
	}
}

func (d *InlineDispatcher) Dispatch(_ context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for running ones to finish.
func (d *InlineDispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

// StreamDispatcher publishes jobs to a Redis stream for a worker process.
type StreamDispatcher struct {
	publisher EventPublisher
	stream    string
	logger    *log.Logger
}

func NewStreamDispatcher(pub EventPublisher, stream string, logger *log.Logger) *StreamDispatcher {
	if logger == nil {
		logger = defaultLogger
	}
	return &StreamDispatcher{publisher: pub, stream: stream, logger: logger}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, job Job) error {
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}
	id, err := d.publisher.PublishEvent(ctx, d.stream, streams.EventSolveRequested, streams.VersionV1, job)
	if err != nil {
		return fmt.Errorf("publish %s: %w", streams.EventSolveRequested, err)
	}
	d.logger.Printf("run %s queued on %s as %s", job.RunID, d.stream, id)
	return nil
}

func (d *StreamDispatcher) Close() error { return nil }
