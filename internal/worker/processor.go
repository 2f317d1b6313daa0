package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	readBlock    = 5 * time.Second
	claimMinIdle = 15 * time.Minute
)

// Idempotency guards against a redelivered entry starting a second chain.
// Implemented by *store.Store.
type Idempotency interface {
	ClaimIdempotency(ctx context.Context, scope, key string) (bool, error)
}

// StreamReader is the consumer side of the solve stream.
type StreamReader interface {
	Read(ctx context.Context, count int64, block time.Duration) ([]streams.Message, error)
	Claim(ctx context.Context, minIdle time.Duration, count int64) ([]streams.Message, error)
	Ack(ctx context.Context, ids ...string) error
}

// Processor consumes quiz.solve entries and runs each chain through the
// executor, at most concurrency at a time.
type Processor struct {
	logger      *log.Logger
	consumer    StreamReader
	exec        *Executor
	idem        Idempotency
	concurrency int
	tracer      trace.Tracer
	processed   otelmetric.Int64Counter
}

// NewProcessor constructs a Processor. idem and meter may be nil.
func NewProcessor(logger *log.Logger, cons StreamReader, exec *Executor, idem Idempotency, concurrency int, meter otelmetric.Meter, tracer trace.Tracer) *Processor {
	if logger == nil {
		logger = defaultLogger
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("worker")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	p := &Processor{
		logger:      logger,
		consumer:    cons,
		exec:        exec,
		idem:        idem,
		concurrency: concurrency,
		tracer:      tracer,
	}
	if meter != nil {
		var err error
		p.processed, err = meter.Int64Counter("worker_runs_processed")
		if err != nil {
			logger.Printf("warn: create run counter failed: %v", err)
		}
	}
	return p
}

// Start blocks, processing entries until ctx is cancelled. Running chains
// are allowed to finish before it returns.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Printf("worker processor starting; concurrency %d", p.concurrency)
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	if stale, err := p.consumer.Claim(ctx, claimMinIdle, int64(p.concurrency)); err != nil {
		p.logger.Printf("warn: claim stale entries failed: %v", err)
	} else if len(stale) > 0 {
		p.logger.Printf("resuming %d stale entr(ies)", len(stale))
		p.run(ctx, stale, sem, &wg)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Printf("worker processor stopping: %v", ctx.Err())
			return nil
		default:
		}

		msgs, err := p.consumer.Read(ctx, int64(p.concurrency), readBlock)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Printf("error reading stream: %v", err)
			time.Sleep(time.Second)
			continue
		}
		p.run(ctx, msgs, sem, &wg)
	}
}

func (p *Processor) run(ctx context.Context, msgs []streams.Message, sem chan struct{}, wg *sync.WaitGroup) {
	for _, msg := range msgs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func(msg streams.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			// chains finish even when the worker is asked to stop
			jobCtx := context.WithoutCancel(ctx)
			if err := p.handle(jobCtx, msg); err != nil {
				p.logger.Printf("error handling entry %s: %v", msg.ID, err)
			}
			if err := p.consumer.Ack(jobCtx, msg.ID); err != nil {
				p.logger.Printf("warn: failed to ack entry %s: %v", msg.ID, err)
			}
		}(msg)
	}
}

func (p *Processor) handle(ctx context.Context, msg streams.Message) error {
	ctx, span := p.tracer.Start(ctx, "worker.handle_solve")
	defer span.End()

	if msg.Envelope.EventType != streams.EventSolveRequested {
		return fmt.Errorf("unexpected event type %q", msg.Envelope.EventType)
	}
	if p.idem != nil {
		claimed, err := p.idem.ClaimIdempotency(ctx, msg.Envelope.EventType, msg.Envelope.EventID)
		if err != nil {
			return fmt.Errorf("claim idempotency: %w", err)
		}
		if !claimed {
			p.logger.Printf("skip event %s: already processed", msg.Envelope.EventID)
			return nil
		}
	}

	var job Job
	if err := msg.Envelope.Decode(&job); err != nil {
		return err
	}
	p.exec.Execute(ctx, job)
	if p.processed != nil {
		p.processed.Add(ctx, 1)
	}
	return nil
}
