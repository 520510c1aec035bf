package storyboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/maauso/scenereel/internal/scene"
)

// Static errors for storyboard responses.
var (
	ErrNoChoices = errors.New("storyboard: model returned no choices")
	ErrNoJSON    = errors.New("storyboard: no JSON object in model response")
	ErrNoScenes  = errors.New("storyboard: model returned no scenes")
)

const systemPrompt = `You write storyboards for short vertical videos.
Reply with a JSON object only, shaped as:
{"scenes":[{"prompt":"visual description of one shot","duration":3,` +
	`"soundEffect":"ambient sound","dialogue":{"text":"spoken line","description":"voice"}}]}
Each scene is exactly one shot. Durations are seconds. Dialogue is optional.`

// OpenAIWriter writes storyboards with any OpenAI-compatible chat
// completion endpoint, such as xAI's.
type OpenAIWriter struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIWriter creates a writer. opts configure the client, for example
// option.WithBaseURL for a non-OpenAI endpoint.
func NewOpenAIWriter(apiKey, model string, opts ...option.RequestOption) *OpenAIWriter {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIWriter{
		client:      openai.NewClient(clientOpts...),
		model:       model,
		temperature: 0.7,
	}
}

type storyResponse struct {
	Scenes []scene.Scene `json:"scenes"`
}

// Write implements Writer.
func (w *OpenAIWriter) Write(ctx context.Context, prompt string) ([]scene.Scene, error) {
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(w.model),
		Temperature: openai.Float(w.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storyboard: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	return parseStory(resp.Choices[0].Message.Content)
}

// parseStory decodes the scenes from a model reply. Text around the JSON
// object is ignored.
func parseStory(content string) ([]scene.Scene, error) {
	raw := extractJSONObject(content)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var story storyResponse
	if err := json.Unmarshal([]byte(raw), &story); err != nil {
		return nil, fmt.Errorf("storyboard: decode response: %w", err)
	}
	if len(story.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	return story.Scenes, nil
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var _ Writer = (*OpenAIWriter)(nil)
