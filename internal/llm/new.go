package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/nguyentantai21042004/triage-synth/internal/config"
	"github.com/nguyentantai21042004/triage-synth/pkg/executor"
)

// New selects and builds the provider adapter named by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAI(OpenAIOptions{APIKey: apiKey, BaseURL: cfg.BaseURL, Timeout: timeout})
	case "ollama":
		return NewOllama(OllamaOptions{BaseURL: cfg.BaseURL, Timeout: timeout}), nil
	case "gemini":
		return NewGemini(GeminiOptions{APIKey: apiKey, BaseURL: cfg.BaseURL, Timeout: timeout})
	case "huggingface":
		return NewHuggingFace(HuggingFaceOptions{APIKey: apiKey, BaseURL: cfg.BaseURL, Timeout: timeout})
	case "command":
		return NewCommand(CommandOptions{
			Binary:  cfg.Command.Binary,
			Args:    cfg.Command.Args,
			Dir:     cfg.Command.Dir,
			Env:     cfg.Command.Env,
			Timeout: timeout,
		}, executor.New()), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q (supported: openai, ollama, gemini, huggingface, command)", cfg.Provider)
	}
}
