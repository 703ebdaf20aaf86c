package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragquery/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client  llms.Model
	config  *ai.Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return newGeneratorWithModel(client, config), nil
}

func newGeneratorWithModel(client llms.Model, config *ai.Config) *Generator {
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &Generator{
		client:  client,
		config:  config,
		limiter: limiter,
		logger:  slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new text generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// GenerateText sends prompt as a single human message and returns the first choice.
// Transport errors and empty completions are retried up to MaxRetries times.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	var text string
	err := ai.RetryWithBackoff(ctx, func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.config.Temperature))
		if err != nil {
			g.logger.Warn("failed to generate content", "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ai.ErrEmptyCompletion
		}

		text = cleanCompletion(response.Choices[0].Content)
		if text == "" {
			return ai.ErrEmptyCompletion
		}
		return nil
	}, g.config.MaxRetries, g.config.RetryDelay)
	if err != nil {
		g.logger.Error("generation failed", "promptLength", len(prompt), "err", err)
		return "", err
	}

	g.logger.Debug("generated text", "promptLength", len(prompt), "length", len(text))
	return text, nil
}
