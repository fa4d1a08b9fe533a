package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIOptions configures the OpenAI Responses API adapter.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type openAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a client for the OpenAI Responses API. Retries are
// disabled so that a failed call surfaces as a failed chunk.
func NewOpenAI(opts OpenAIOptions) (Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	return &openAIClient{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
	}, nil
}

func (c *openAIClient) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	params := responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
			},
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", transportErr("openai", apiErr.StatusCode, err)
		}
		return "", transportErr("openai", 0, err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", transportErr("openai", 0, fmt.Errorf("model %s: %w", model, errEmptyReply))
	}
	return text, nil
}
