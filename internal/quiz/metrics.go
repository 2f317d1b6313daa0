package quiz

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/quizchain/internal/attachments"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Step outcomes reported on quiz_steps_total.
const (
	outcomeSubmitted   = "submitted"
	outcomeNoSubmitURL = "no_submit_url"
	outcomeFailed      = "failed"
)

// Metrics holds the chain counters. A nil *Metrics records nothing.
type Metrics struct {
	chainsStarted  otelmetric.Int64Counter
	steps          otelmetric.Int64Counter
	answersCorrect otelmetric.Int64Counter
	attachments    otelmetric.Int64Counter
}

func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.chainsStarted, err = meter.Int64Counter("quiz_chains_started_total",
		otelmetric.WithDescription("Quiz chains started")); err != nil {
		return nil, fmt.Errorf("quiz_chains_started_total: %w", err)
	}
	if m.steps, err = meter.Int64Counter("quiz_steps_total",
		otelmetric.WithDescription("Chain iterations by outcome")); err != nil {
		return nil, fmt.Errorf("quiz_steps_total: %w", err)
	}
	if m.answersCorrect, err = meter.Int64Counter("quiz_answers_correct_total",
		otelmetric.WithDescription("Submissions the endpoint judged correct")); err != nil {
		return nil, fmt.Errorf("quiz_answers_correct_total: %w", err)
	}
	if m.attachments, err = meter.Int64Counter("quiz_attachments_total",
		otelmetric.WithDescription("Attachments processed by result")); err != nil {
		return nil, fmt.Errorf("quiz_attachments_total: %w", err)
	}
	return &m, nil
}

func (m *Metrics) chainStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.chainsStarted.Add(ctx, 1)
}

func (m *Metrics) step(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) correct(ctx context.Context) {
	if m == nil {
		return
	}
	m.answersCorrect.Add(ctx, 1)
}

func (m *Metrics) recordAttachments(ctx context.Context, summaries map[string]attachments.Summary) {
	if m == nil {
		return
	}
	for _, s := range summaries {
		result := "ok"
		if !s.OK() {
			result = "error"
		}
		m.attachments.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
	}
}
