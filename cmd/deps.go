package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/mohammad-safakhou/quizchain/internal/quiz"
	"github.com/mohammad-safakhou/quizchain/internal/runtime"
	"github.com/mohammad-safakhou/quizchain/internal/store"
	"github.com/mohammad-safakhou/quizchain/provider"
	"github.com/mohammad-safakhou/quizchain/tools/web_fetch"
	"github.com/redis/go-redis/v9"
)

// deps holds the process-wide dependencies shared by every command.
type deps struct {
	cfg    *config.Config
	tele   *runtime.Telemetry
	solver *quiz.Solver
	store  *store.Store
	redis  *redis.Client
}

func loadDeps(ctx context.Context, cfgPath string, withStore bool) (*deps, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	tele, err := runtime.SetupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, tele: tele}

	metrics, err := quiz.NewMetrics(tele.Meter)
	if err != nil {
		return nil, fmt.Errorf("quiz metrics: %w", err)
	}
	launcher, err := web_fetch.NewLauncher(web_fetch.FetcherType(cfg.Browser.Type), web_fetch.Options{
		Headless:        cfg.Browser.Headless,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.Browser.UserAgent,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		SettleDelay:     cfg.Browser.SettleDelay,
		Logger:          log.New(os.Stdout, "[BROWSER] ", log.LstdFlags),
	})
	if err != nil {
		return nil, err
	}
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	d.solver = &quiz.Solver{
		Launcher:    launcher,
		LLM:         llm,
		Credentials: cfg.Credentials,
		Settings:    cfg.Solver,
		Logger:      log.New(os.Stdout, "[CHAIN] ", log.LstdFlags),
		Metrics:     metrics,
		Tracer:      tele.Tracer,
	}

	if withStore && cfg.Storage.Postgres.Enabled {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			d.Close(ctx)
			return nil, err
		}
		d.store = st
	}
	return d, nil
}

// connectRedis opens the stream client and verifies it answers.
func (d *deps) connectRedis(ctx context.Context) (*redis.Client, error) {
	r := d.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{Addr: r.Addr(), Password: r.Password, DB: r.DB, DialTimeout: r.Timeout})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", r.Addr(), err)
	}
	d.redis = rdb
	return rdb, nil
}

func (d *deps) Close(ctx context.Context) {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	if err := d.tele.Shutdown(ctx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
