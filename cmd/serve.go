package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	srv "github.com/mohammad-safakhou/quizchain/internal/server"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
	"github.com/spf13/cobra"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
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

			workerLogger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)
			var dispatcher worker.Dispatcher
			switch d.cfg.Queue.Backend {
			case "redis":
				rdb, err := d.connectRedis(ctx)
				if err != nil {
					return err
				}
				dispatcher = worker.NewStreamDispatcher(streams.NewPublisher(rdb, registry), d.cfg.Queue.Stream, workerLogger)
			default:
				exec := &worker.Executor{Solver: d.solver, Logger: workerLogger}
				if d.store != nil {
					exec.Runs = d.store
				}
				dispatcher = worker.NewInlineDispatcher(exec, d.cfg.Queue.Concurrency, d.cfg.Queue.Backlog)
			}
			// drain running chains after the listener stops
			defer dispatcher.Close()

			opts := srv.Options{
				Credentials: d.cfg.Credentials,
				Registry:    registry,
				Dispatcher:  dispatcher,
				Metrics:     d.tele.Handler(),
				Logger:      log.New(os.Stdout, "[HTTP] ", log.LstdFlags),
			}
			if d.store != nil {
				opts.Runs = d.store
			}
			e, err := srv.New(opts)
			if err != nil {
				return err
			}

			addr := serveAddr
			if addr == "" {
				addr = d.cfg.Server.Address
			}
			return srv.Run(ctx, e, addr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")

	return serve
}
