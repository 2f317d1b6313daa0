package quiz

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PageSource yields the extracted page for a URL.
type PageSource interface {
	Extract(ctx context.Context, url string) (Page, error)
}

// PromptBuilder renders the reasoning prompt for a page.
type PromptBuilder interface {
	Build(ctx context.Context, page Page) (string, error)
}

// AnswerSource produces a typed answer from a prompt.
type AnswerSource interface {
	Answer(ctx context.Context, prompt string) (Answer, string, error)
}

// AnswerSink submits an answer and returns the endpoint's verdict.
type AnswerSink interface {
	Submit(ctx context.Context, submitURL, quizURL string, answer Answer) (SubmissionResult, error)
}

// Driver walks a quiz chain. It holds no per-chain state, so one Driver may
// run several chains, each on its own goroutine, provided its collaborators
// allow it.
type Driver struct {
	Pages     PageSource
	Prompts   PromptBuilder
	Answers   AnswerSource
	Submitter AnswerSink

	Logger  *log.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
	// MaxIterations overrides the iteration cap when positive and lower.
	MaxIterations int
}

// stepOutcome is the result of one successful iteration. A nil Record means
// the page had no submit URL and the chain stops without a trace entry.
type stepOutcome struct {
	Record *StepRecord
	Next   string
}

// Run drives the chain from startURL until there is no next URL, a step
// fails, or the iteration cap is reached. It always returns a result.
func (d *Driver) Run(ctx context.Context, startURL string) ChainResult {
	logger := d.logger()
	ctx, span := d.tracer().Start(ctx, "quiz.chain", trace.WithAttributes(attribute.String("quiz.start_url", startURL)))
	defer span.End()
	d.Metrics.chainStarted(ctx)

	var steps []StepRecord
	url := startURL
	for iteration := 0; url != "" && iteration < d.maxIterations(); {
		iteration++
		logger.Printf("solving quiz %d: %s", iteration, url)

		out, err := d.step(ctx, iteration, url)
		if err != nil {
			logger.Printf("error solving quiz at %s: %v", url, err)
			d.Metrics.step(ctx, outcomeFailed)
			steps = append(steps, StepRecord{URL: url, Error: err.Error()})
			break
		}
		if out.Record == nil {
			logger.Printf("no submit url found on %s; stopping", url)
			d.Metrics.step(ctx, outcomeNoSubmitURL)
			break
		}
		d.Metrics.step(ctx, outcomeSubmitted)
		if out.Record.Correct {
			d.Metrics.correct(ctx)
		}
		steps = append(steps, *out.Record)

		if out.Next != "" && !out.Record.Correct {
			logger.Printf("answer for %s judged incorrect; following next url anyway", url)
		}
		url = out.Next
		if url == "" {
			logger.Printf("quiz chain completed after %d step(s)", iteration)
		} else if iteration == d.maxIterations() {
			logger.Printf("iteration cap %d reached; not following %s", iteration, url)
		}
	}

	res := newChainResult(steps)
	span.SetAttributes(attribute.Int("quiz.total_solved", res.TotalSolved))
	return res
}

func (d *Driver) step(ctx context.Context, iteration int, url string) (out stepOutcome, err error) {
	ctx, span := d.tracer().Start(ctx, "quiz.step", trace.WithAttributes(
		attribute.Int("quiz.iteration", iteration),
		attribute.String("quiz.url", url),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	page, err := d.Pages.Extract(ctx, url)
	if err != nil {
		return stepOutcome{}, stepErr(StageExtraction, url, err)
	}
	d.logger().Printf("question extracted: %s", excerpt(page.Question, questionExcerptLen))

	prompt, err := d.Prompts.Build(ctx, page)
	if err != nil {
		return stepOutcome{}, stepErr(StageReasoning, url, err)
	}
	answer, _, err := d.Answers.Answer(ctx, prompt)
	if err != nil {
		return stepOutcome{}, stepErr(StageReasoning, url, err)
	}
	d.logger().Printf("answer generated: %s", answer)

	if page.SubmitURL == "" {
		return stepOutcome{}, nil
	}

	res, err := d.Submitter.Submit(ctx, page.SubmitURL, url, answer)
	if err != nil {
		return stepOutcome{}, stepErr(StageSubmission, url, err)
	}
	span.SetAttributes(attribute.Bool("quiz.correct", res.Correct))

	return stepOutcome{
		Record: &StepRecord{
			URL:      url,
			Question: excerpt(page.Question, questionExcerptLen),
			Answer:   answer,
			Correct:  res.Correct,
			Reason:   res.Reason,
		},
		Next: res.NextURL,
	}, nil
}

func (d *Driver) maxIterations() int {
	if d.MaxIterations > 0 && d.MaxIterations < MaxIterations {
		return d.MaxIterations
	}
	return MaxIterations
}

func (d *Driver) logger() *log.Logger {
	if d.Logger == nil {
		return defaultLogger
	}
	return d.Logger
}

func (d *Driver) tracer() trace.Tracer {
	if d.Tracer == nil {
		return otel.Tracer("quizchain/quiz")
	}
	return d.Tracer
}

var defaultLogger = log.New(os.Stdout, "[CHAIN] ", log.LstdFlags)
