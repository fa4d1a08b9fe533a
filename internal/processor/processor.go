package processor

import (
	"context"

	"github.com/nguyentantai21042004/triage-synth/internal/config"
	"github.com/nguyentantai21042004/triage-synth/internal/llm"
	"github.com/nguyentantai21042004/triage-synth/pkg/llmjson"
)

// ask makes one LLM call under the per-call deadline and normalizes the
// reply. Expiry surfaces as a transport error like any other call failure.
func (p *implProcessor) ask(ctx context.Context, stage config.StageConfig, system, user string) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reply, err := p.llm.Invoke(callCtx, llm.Request{
		Model:       stage.Model,
		System:      system,
		User:        user,
		Temperature: stage.Temp(),
		MaxTokens:   stage.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	v, err := llmjson.Normalize(llmjson.Text(reply))
	if err != nil {
		p.logger.Debug(ctx, "Unusable reply: %s", reply)
		return nil, err
	}
	return v, nil
}

// askField is ask followed by decoding the expected top-level key into out.
func (p *implProcessor) askField(ctx context.Context, stage config.StageConfig, system, user, key string, out any) error {
	v, err := p.ask(ctx, stage, system, user)
	if err != nil {
		return err
	}
	return llmjson.DecodeField(v, key, out)
}
