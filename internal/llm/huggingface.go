package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHuggingFaceURL   = "https://router.huggingface.co/v1"
	defaultHuggingFaceModel = "meta-llama/Llama-3.1-8B-Instruct"
)

// HuggingFaceOptions configures the Hugging Face inference router adapter.
// The router speaks the OpenAI chat-completions dialect, so BaseURL may
// point at any compatible server.
type HuggingFaceOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type huggingFaceClient struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
}

func NewHuggingFace(opts HuggingFaceOptions) (Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("huggingface: missing api token")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultHuggingFaceURL
	}
	if opts.Model == "" {
		opts.Model = defaultHuggingFaceModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &huggingFaceClient{
		hc:     &http.Client{Timeout: opts.Timeout},
		url:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey: opts.APIKey,
		model:  opts.Model,
	}, nil
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *huggingFaceClient) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := completionRequest{
		Model:       model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	raw, status, err := postJSON(ctx, c.hc, c.url, headers, body)
	if err != nil {
		return "", transportErr("huggingface", status, err)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", transportErr("huggingface", status, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", transportErr("huggingface", status, errEmptyReply)
	}
	return out.Choices[0].Message.Content, nil
}
