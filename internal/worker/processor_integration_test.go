package worker_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/quiz"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	otelnoop "go.opentelemetry.io/otel/metric/noop"
)

type recordingSolver struct {
	mu   sync.Mutex
	done chan string
}

func (s *recordingSolver) Solve(_ context.Context, url string) quiz.ChainResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done <- url
	return quiz.ChainResult{Results: []quiz.StepRecord{}}
}

func TestStreamDispatchToProcessor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	registry, err := streams.NewBaseRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	consumer := streams.NewConsumer(client, registry, "quiz.solve", "test-group", "c1", logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	publisher := streams.NewPublisher(client, registry)
	dispatcher := worker.NewStreamDispatcher(publisher, "quiz.solve", logger)
	if err := dispatcher.Dispatch(ctx, worker.Job{RunID: "run-1", URL: "https://quiz.test/start"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	solver := &recordingSolver{done: make(chan string, 1)}
	exec := &worker.Executor{Solver: solver, Events: publisher, CompletedStream: "quiz.completed", Logger: logger}
	proc := worker.NewProcessor(logger, consumer, exec, nil, 2, otelnoop.NewMeterProvider().Meter("test"), nil)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- proc.Start(runCtx) }()

	select {
	case url := <-solver.done:
		if url != "https://quiz.test/start" {
			t.Fatalf("unexpected url %s", url)
		}
	case <-time.After(20 * time.Second):
		t.Fatalf("processor did not pick up the job")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("processor: %v", err)
	}

	n, err := client.XLen(ctx, "quiz.completed").Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one completion event, got %d", n)
	}
}
