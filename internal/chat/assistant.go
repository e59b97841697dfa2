// Package chat wires the per-turn pipeline: classify, extract, build a
// filter, query the store, render context, and ask the language model for
// the final text. Respond always returns something printable; the worst
// case is an apology or a no-data message, never an error.
package chat

import (
	"context"
	"fmt"
	"time"

	"library-assistant/internal/chat/classify"
	"library-assistant/internal/chat/filter"
	"library-assistant/internal/chat/query"
	"library-assistant/internal/chat/render"
	"library-assistant/internal/common/logger"
	"library-assistant/internal/common/metrics"
	"library-assistant/internal/common/observability"
	"library-assistant/internal/models"
)

// Answerer is the LLM boundary; answer.Generator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string, intent models.Intent, contextBlock string) (string, error)
}

type Assistant struct {
	classifier *classify.Classifier
	extractor  *classify.Extractor
	builder    *filter.Builder
	executor   *query.Executor
	renderer   *render.Renderer
	answerer   Answerer
	obs        *observability.Observability
	log        logger.Logger
}

// NewAssistant wires one pipeline. obs may be nil when the otel meter is
// not configured.
func NewAssistant(
	classifier *classify.Classifier,
	extractor *classify.Extractor,
	builder *filter.Builder,
	executor *query.Executor,
	renderer *render.Renderer,
	answerer Answerer,
	obs *observability.Observability,
	log logger.Logger,
) *Assistant {
	return &Assistant{
		classifier: classifier,
		extractor:  extractor,
		builder:    builder,
		executor:   executor,
		renderer:   renderer,
		answerer:   answerer,
		obs:        obs,
		log:        log,
	}
}

// Respond runs one full turn. Turns are independent; nothing is carried
// over between calls.
func (a *Assistant) Respond(ctx context.Context, text string) string {
	start := time.Now()

	intent := a.timed("classify", func() models.Intent {
		return a.classifier.Classify(text)
	})
	fields := a.extractor.Extract(text)
	spec := a.builder.Build(intent, fields)

	a.log.Info("turn planned", map[string]interface{}{
		"intent": string(intent),
		"table":  spec.Table,
		"fields": len(fields),
	})

	queryStart := time.Now()
	result := a.executor.Execute(ctx, intent, spec)
	metrics.StageDuration.WithLabelValues("query").Observe(time.Since(queryStart).Seconds())

	contextBlock := a.renderer.Render(intent, result)

	answerStart := time.Now()
	response, err := a.answerer.Answer(ctx, text, intent, contextBlock)
	metrics.StageDuration.WithLabelValues("answer").Observe(time.Since(answerStart).Seconds())

	metrics.TurnsTotal.WithLabelValues(string(intent)).Inc()
	if a.obs != nil {
		a.obs.RecordTurn(ctx, string(intent))
		a.obs.RecordTurnDuration(ctx, time.Since(start), string(intent))
	}

	if err != nil {
		a.log.Error("answer generation failed", map[string]interface{}{
			"intent": string(intent),
			"error":  err.Error(),
		})
		return fmt.Sprintf("I apologize, but I encountered an error generating a response: %v", err)
	}
	return response
}

func (a *Assistant) timed(stage string, fn func() models.Intent) models.Intent {
	start := time.Now()
	out := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}
