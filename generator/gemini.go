package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiBackend talks to the Gemini API and requests JSON replies
// shaped by ResponseSchema.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiBackend(ctx context.Context, opts Options) (*GeminiBackend, error) {
	opts = opts.withDefaults()
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = ResponseSchema()
	if opts.Temperature > 0 {
		model.SetTemperature(opts.Temperature)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var buf strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			buf.WriteString(string(text))
		}
	}
	return buf.String()
}
