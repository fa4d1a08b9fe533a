package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiOptions configures the Gemini API adapter.
type GeminiOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type geminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGemini(opts GeminiOptions) (Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &geminiClient{client: client, model: opts.Model, timeout: opts.Timeout}, nil
}

func (c *geminiClient) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.User), gc)
	if err != nil {
		return "", transportErr("gemini", 0, fmt.Errorf("generate content: %w", err))
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if strings.TrimSpace(sb.String()) != "" {
			return sb.String(), nil
		}
	}

	return "", transportErr("gemini", 0, errEmptyReply)
}
