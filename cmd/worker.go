package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
	"github.com/spf13/cobra"
)

func workerCMD(cfgPath *string) *cobra.Command {
	var metricsAddr string
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Consume solve requests from the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := loadDeps(ctx, *cfgPath, true)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			registry, err := streams.NewBaseRegistry()
			if err != nil {
				return err
			}
			rdb, err := d.connectRedis(ctx)
			if err != nil {
				return err
			}

			logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)
			q := d.cfg.Queue
			consumerName := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
			consumer := streams.NewConsumer(rdb, registry, q.Stream, q.Group, consumerName, logger)
			if err := consumer.EnsureGroup(ctx); err != nil {
				return fmt.Errorf("worker ensure group: %w", err)
			}

			exec := &worker.Executor{
				Solver:          d.solver,
				Events:          streams.NewPublisher(rdb, registry),
				CompletedStream: q.CompletedStream,
				Logger:          logger,
			}
			var idem worker.Idempotency
			if d.store != nil {
				exec.Runs = d.store
				idem = d.store
			}

			if metricsAddr != "" {
				ms := &http.Server{Addr: metricsAddr, Handler: d.tele.Handler()}
				go func() {
					if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Printf("metrics listener: %v", err)
					}
				}()
				defer ms.Close()
			}

			processor := worker.NewProcessor(logger, consumer, exec, idem, q.Concurrency, d.tele.Meter, d.tele.Tracer)
			logger.Printf("consuming %s as %s/%s", q.Stream, q.Group, consumerName)
			if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker processor exited: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	return cmd
}
