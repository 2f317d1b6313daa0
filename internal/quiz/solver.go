package quiz

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/mohammad-safakhou/quizchain/internal/attachments"
	"github.com/mohammad-safakhou/quizchain/internal/httpclient"
	"github.com/mohammad-safakhou/quizchain/provider"
	"github.com/mohammad-safakhou/quizchain/tools/web_fetch"
	"go.opentelemetry.io/otel/trace"
)

const (
	downloadRetries = 2
	downloadBackoff = 500 * time.Millisecond
)

// Solver runs whole chains. Each Solve call gets its own browser session and
// HTTP client, released when the chain ends.
type Solver struct {
	Launcher    web_fetch.Launcher
	LLM         provider.Provider
	Credentials config.Credentials
	Settings    config.SolverConfig

	Logger  *log.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

func (s *Solver) Solve(ctx context.Context, startURL string) ChainResult {
	settings := s.Settings.Normalize()

	session, err := s.Launcher.Launch(ctx)
	if err != nil {
		s.logger().Printf("launch browser for %s: %v", startURL, err)
		err = stepErr(StageExtraction, startURL, fmt.Errorf("launch browser: %w", err))
		return newChainResult([]StepRecord{{URL: startURL, Error: err.Error()}})
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger().Printf("close browser: %v", err)
		}
	}()

	client := httpclient.New(settings.DownloadTimeout, downloadRetries, downloadBackoff)
	defer client.Close()

	d := &Driver{
		Pages: &PageExtractor{Renderer: session},
		Prompts: &ContextBuilder{
			Fetcher:  client,
			Decoder:  attachments.NewDecoder(nil),
			MaxChars: settings.MaxAttachmentChars,
			Metrics:  s.Metrics,
		},
		Answers: &Answerer{LLM: s.LLM},
		Submitter: &Submitter{
			Client:      client,
			Credentials: s.Credentials,
			Timeout:     settings.SubmitTimeout,
		},
		Logger:  s.Logger,
		Metrics: s.Metrics,
		Tracer:  s.Tracer,
	}
	return d.Run(ctx, startURL)
}

func (s *Solver) logger() *log.Logger {
	if s.Logger == nil {
		return defaultLogger
	}
	return s.Logger
}
