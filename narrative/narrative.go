// Package narrative asks a language model for an alternative, free-text risk
// assessment. It is not deterministic and never feeds the rule engine.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/logger"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("narrative predictor is not configured")

// ErrMalformedResponse is returned when the model reply lacks a risk level.
var ErrMalformedResponse = errors.New("malformed model response")

const systemPrompt = "You assess lifestyle health risk from aggregated daily metrics. You are not a doctor and never diagnose."

// Predictor produces a RiskAssessment from aggregated metrics.
type Predictor interface {
	Predict(ctx context.Context, metrics health.AggregatedMetrics) (*health.RiskAssessment, error)
}

// Config selects the model endpoint.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // empty uses the OpenAI API
}

// OpenAIPredictor implements Predictor with an OpenAI-compatible chat API.
type OpenAIPredictor struct {
	client *openai.Client
	model  string
}

// NewOpenAIPredictor creates a predictor; Model defaults to gpt-4o-mini.
func NewOpenAIPredictor(cfg Config) (*OpenAIPredictor, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
		logger.Warn("OPENAI_MODEL not set, defaulting", "model", cfg.Model)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger.Info("Initializing OpenAI client", "model", cfg.Model)

	return &OpenAIPredictor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Predict sends the metrics to the model and parses its reply.
func (p *OpenAIPredictor) Predict(ctx context.Context, metrics health.AggregatedMetrics) (*health.RiskAssessment, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(metrics)},
		},
		Temperature: 0.2,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("OpenAI returned no choices")
	}
	logger.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)

	return ParseResponse(resp.Choices[0].Message.Content)
}

// BuildPrompt lists the metrics in name order and asks for a fixed
// three-line answer.
func BuildPrompt(metrics health.AggregatedMetrics) string {
	var b strings.Builder
	b.WriteString("These are a user's averaged daily health metrics:\n")
	for _, name := range metrics.Names() {
		fmt.Fprintf(&b, "%s: %.2f\n", name, metrics[name])
	}
	b.WriteString(`
Estimate the user's risk level. Answer with exactly these three lines and nothing else:
Risk level: Low, Moderate or High
Conditions: possible conditions separated by semicolons
Recommendations: advice separated by semicolons
`)
	return b.String()
}

// ParseResponse reads the three-line reply. Unknown lines are ignored; the
// whole reply is kept as the narrative.
func ParseResponse(text string) (*health.RiskAssessment, error) {
	assessment := &health.RiskAssessment{
		Source:    health.SourceLLM,
		Narrative: strings.TrimSpace(text),
	}

	levelSeen := false
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(strings.TrimSpace(key), "*-# "))
		value = strings.TrimSpace(value)

		switch key {
		case "risk level":
			level, err := health.ParseRiskLevel(strings.Trim(value, "*. "))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			assessment.Level = level
			levelSeen = true
		case "conditions":
			assessment.Conditions = splitList(value)
		case "recommendations":
			assessment.Recommendations = splitList(value)
		}
	}

	if !levelSeen {
		return nil, fmt.Errorf("%w: no risk level line", ErrMalformedResponse)
	}
	assessment.EnsureNonEmpty()
	return assessment, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
