package worker

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/quiz"
	"github.com/mohammad-safakhou/quizchain/internal/store"
)

// Job is one accepted solve request.
type Job struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	RequestedAt time.Time `json:"requested_at"`
}

// ChainSolver runs a chain to completion.
type ChainSolver interface {
	Solve(ctx context.Context, startURL string) quiz.ChainResult
}

// RunRecorder persists run progress. Implemented by *store.Store.
type RunRecorder interface {
	MarkRunStatus(ctx context.Context, id, status string) error
	CompleteRun(ctx context.Context, id string, result quiz.ChainResult) error
}

// EventPublisher announces finished chains. Implemented by *streams.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, stream, eventType, version string, payload any) (string, error)
}

// CompletedEvent is the quiz.completed payload.
type CompletedEvent struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`
	quiz.ChainResult
}

// Executor runs jobs and reports their outcome. Runs and Events are optional.
type Executor struct {
	Solver          ChainSolver
	Runs            RunRecorder
	Events          EventPublisher
	CompletedStream string
	Logger          *log.Logger
}

// Execute solves the job's chain. Persistence and event failures are logged;
// they never change the returned result.
func (e *Executor) Execute(ctx context.Context, job Job) quiz.ChainResult {
	logger := e.logger()
	if e.Runs != nil {
		if err := e.Runs.MarkRunStatus(ctx, job.RunID, store.RunStatusRunning); err != nil {
			logger.Printf("run %s: mark running: %v", job.RunID, err)
		}
	}

	started := time.Now()
	result := e.Solver.Solve(ctx, job.URL)
	logger.Printf("run %s finished: %d step(s) in %s", job.RunID, result.TotalSolved, time.Since(started).Round(time.Millisecond))

	if e.Runs != nil {
		if err := e.Runs.CompleteRun(ctx, job.RunID, result); err != nil {
			logger.Printf("run %s: store result: %v", job.RunID, err)
		}
	}
	if e.Events != nil && e.CompletedStream != "" {
		ev := CompletedEvent{RunID: job.RunID, URL: job.URL, ChainResult: result}
		if _, err := e.Events.PublishEvent(ctx, e.CompletedStream, streams.EventChainCompleted, streams.VersionV1, ev); err != nil {
			logger.Printf("run %s: publish %s: %v", job.RunID, streams.EventChainCompleted, err)
		}
	}
	return result
}

func (e *Executor) logger() *log.Logger {
	if e.Logger == nil {
		return defaultLogger
	}
	return e.Logger
}

var defaultLogger = log.New(os.Stdout, "[WORKER] ", log.LstdFlags)
