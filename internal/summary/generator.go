package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
)

// Generator produces a short analyst note for a published record from
// the event's own metadata. It is optional: NewGenerator returns nil
// when disabled, and generation failures only cost the note, never the
// feature.
type Generator struct {
	client *openai.Client
	cfg    model.SummaryConfig
	log    *logging.Logger
}

// NewGenerator builds the note generator, or returns (nil, nil) when
// the summary feature is disabled.
func NewGenerator(cfg *model.Config, log *logging.Logger) (*Generator, error) {
	if !cfg.Summary.Enabled {
		return nil, nil
	}
	if cfg.Summary.APIKey == "" {
		return nil, fmt.Errorf("%w: summary enabled but no API key set", model.ErrConfig)
	}

	clientConfig := openai.DefaultConfig(cfg.Summary.APIKey)
	if cfg.Summary.BaseURL != "" {
		clientConfig.BaseURL = cfg.Summary.BaseURL
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg.Summary,
		log:    log,
	}, nil
}

// Generate returns a 2-3 sentence analyst note for the feature, or ""
// when generation fails.
func (g *Generator) Generate(ctx context.Context, f model.Feature) string {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write terse, factual analyst notes for verified conflict-event records. Use only the provided metadata; never speculate beyond it.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(f),
			},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		g.log.Warn("analyst note generation failed", "id", f.Properties.ID, "error", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		g.log.Warn("analyst note generation returned no choices", "id", f.Properties.ID)
		return ""
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// buildPrompt renders the event metadata the note may draw on
func buildPrompt(f model.Feature) string {
	props := f.Properties

	var b strings.Builder
	fmt.Fprintf(&b, "Write a 2-3 sentence analyst note for this verified event record.\n\n")
	fmt.Fprintf(&b, "Date: %s\n", props.VerifiedDate)
	fmt.Fprintf(&b, "Location: %s, %s, %s\n", props.City, props.Province, props.Country)
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(props.Categories, ", "))
	if props.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", props.Description)
	}
	if len(f.Geometry.Coordinates) >= 2 {
		fmt.Fprintf(&b, "Coordinates: %.6f, %.6f\n", f.Geometry.Coordinates[0], f.Geometry.Coordinates[1])
	}

	return b.String()
}
