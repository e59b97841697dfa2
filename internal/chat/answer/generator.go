// Package answer turns a rendered context block plus the user's question
// into natural-language text via a Gemini-style generateContent call.
// Transport failures retry with exponential backoff; a deadline maps to the
// timeout error code so the orchestrator can apologize accordingly.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"library-assistant/internal/common/config"
	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/common/logger"
	"library-assistant/internal/common/metrics"
	"library-assistant/internal/models"
)

// NoDataAnswer is returned when the model comes back empty.
const NoDataAnswer = "I don't have enough information in the library database to answer that question."

// promptInstructions is appended to every prompt. The REPL prints raw text,
// so the model is told to skip markdown entirely.
const promptInstructions = `Please provide a helpful, detailed response to the user's query based on this library data.
Be specific about book availability, member information, fines, or whatever the user asked about.
If no data was found, suggest alternative searches or actions.

IMPORTANT: Format your response in clean, readable plain text WITHOUT any markdown formatting.
Do NOT use asterisks (*), hashtags (#), or other markdown symbols.
Use line breaks for readability, write "Book Title:" instead of "**Book Title:**",
use bullet points with dashes (-) instead of markdown lists,
and keep the text natural and conversational.`

type Generator struct {
	cfg    config.LLMConfig
	client *http.Client
	log    logger.Logger
}

func NewGenerator(cfg config.LLMConfig, log logger.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: config.GetDuration(cfg.Timeout)},
		log:    log,
	}
}

// request/response shapes for the generateContent surface.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Answer produces the final response text for one turn.
func (g *Generator) Answer(ctx context.Context, question string, intent models.Intent, contextBlock string) (string, error) {
	prompt := g.buildPrompt(question, intent, contextBlock)

	text, err := g.generate(ctx, prompt)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		metrics.RemoteErrors.WithLabelValues("answer", string(apperrors.CodeOf(err))).Inc()
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		metrics.LLMRequests.WithLabelValues("empty").Inc()
		return NoDataAnswer, nil
	}
	metrics.LLMRequests.WithLabelValues("ok").Inc()
	return strings.TrimSpace(text), nil
}

func (g *Generator) buildPrompt(question string, intent models.Intent, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are a helpful library management assistant.\n\n")
	fmt.Fprintf(&b, "User asked: %q\n", question)
	fmt.Fprintf(&b, "Query type identified: %s\n\n", intent)
	b.WriteString("Database results:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\n")
	b.WriteString(promptInstructions)
	return b.String()
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: g.cfg.MaxTokens,
			Temperature:     g.cfg.Temperature,
		},
	})
	if err != nil {
		return "", apperrors.NewLLMGenerationFailedError(err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model)

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", apperrors.NewLLMTimeoutError()
			}
		}

		text, err := g.doRequest(ctx, endpoint, payload)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil || apperrors.CodeOf(err) == apperrors.ErrCodeLLMTimeout {
			return "", apperrors.NewLLMTimeoutError()
		}
		lastErr = err
		g.log.Warn("llm request failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", apperrors.NewLLMGenerationFailedError(lastErr)
}

func (g *Generator) doRequest(ctx context.Context, endpoint string, payload []byte) (string, error) {
	// Body readers are single-use: build a fresh request per attempt.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewLLMGenerationFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewLLMTimeoutError()
		}
		return "", apperrors.NewLLMGenerationFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewLLMGenerationFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewLLMGenerationFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(body)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", apperrors.NewLLMGenerationFailedError(fmt.Errorf("decode: %w", err))
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var text strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
