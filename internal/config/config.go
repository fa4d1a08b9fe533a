package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM            LLMConfig           `yaml:"llm" json:"llm"`
	Keywords       KeywordsConfig      `yaml:"keywords" json:"keywords"`
	Summaries      SummariesConfig     `yaml:"summaries" json:"summaries"`
	Transcriptions TranscriptionConfig `yaml:"transcriptions" json:"transcriptions"`
	Paths          PathsConfig         `yaml:"paths" json:"paths"`
	Logging        LoggingConfig       `yaml:"logging" json:"logging"`
}

// LLMConfig selects the provider adapter. API keys are read from the
// environment variable named by APIKeyEnv and never stored here.
type LLMConfig struct {
	Provider       string        `yaml:"provider" json:"provider"`
	BaseURL        string        `yaml:"base_url" json:"base_url,omitempty"`
	APIKeyEnv      string        `yaml:"api_key_env" json:"api_key_env,omitempty"`
	TimeoutSeconds int           `yaml:"timeout_seconds" json:"timeout_seconds"`
	Command        CommandConfig `yaml:"command" json:"command,omitempty"`
}

// CommandConfig drives the local "command" provider.
// Dir is the working directory of the process; Env entries (KEY=VALUE)
// are appended to the inherited environment.
type CommandConfig struct {
	Binary string   `yaml:"binary" json:"binary,omitempty"`
	Args   []string `yaml:"args" json:"args,omitempty"`
	Dir    string   `yaml:"dir" json:"dir,omitempty"`
	Env    []string `yaml:"env" json:"env,omitempty"`
}

// StageConfig holds the generation knobs shared by every stage. A nil
// Temperature means unset; an explicit 0 is kept.
type StageConfig struct {
	Model       string   `yaml:"model" json:"model"`
	Temperature *float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
}

// Temp returns the sampling temperature, 0 when unset.
func (s StageConfig) Temp() float64 {
	if s.Temperature == nil {
		return 0
	}
	return *s.Temperature
}

type KeywordsConfig struct {
	StageConfig     `yaml:",inline"`
	ExamplesDir     string `yaml:"examples_dir" json:"examples_dir,omitempty"`
	ExamplesPattern string `yaml:"examples_pattern" json:"examples_pattern"`
	Samples         int    `yaml:"samples" json:"samples"`
	Seed            *int64 `yaml:"seed" json:"seed,omitempty"`
}

type SummariesConfig struct {
	StageConfig `yaml:",inline"`
	BatchSize   int `yaml:"batch_size" json:"batch_size"`
	PerKeyword  int `yaml:"per_keyword" json:"per_keyword"`
	MaxWorkers  int `yaml:"max_workers" json:"max_workers"`
}

type TranscriptionConfig struct {
	StageConfig `yaml:",inline"`
	BatchSize   int `yaml:"batch_size" json:"batch_size"`
	MaxWorkers  int `yaml:"max_workers" json:"max_workers"`
}

type PathsConfig struct {
	Keywords string `yaml:"keywords" json:"keywords"`
	Output   string `yaml:"output" json:"output"`
	Suffix   string `yaml:"suffix" json:"suffix"`
	Metadata string `yaml:"metadata" json:"metadata"`
	Exports  string `yaml:"exports" json:"exports"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

var supportedProviders = []string{"openai", "ollama", "gemini", "huggingface", "command"}

// Load reads a YAML config file and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if !isSupported(c.LLM.Provider) {
		return fmt.Errorf("llm.provider %q is not supported (supported: %s)",
			c.LLM.Provider, strings.Join(supportedProviders, ", "))
	}
	if c.LLM.Provider == "command" && c.LLM.Command.Binary == "" {
		return fmt.Errorf("llm.command.binary is required for the command provider")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}
	if c.Paths.Keywords == "" {
		return fmt.Errorf("paths.keywords is required")
	}
	for name, t := range map[string]float64{
		"keywords":       c.Keywords.Temp(),
		"summaries":      c.Summaries.Temp(),
		"transcriptions": c.Transcriptions.Temp(),
	} {
		if t < 0 || t > 2 {
			return fmt.Errorf("%s.temperature must be within [0, 2], got %v", name, t)
		}
	}

	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 600
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaultAPIKeyEnv(c.LLM.Provider)
	}
	if c.Paths.Suffix == "" {
		c.Paths.Suffix = "e.json"
	}
	if c.Paths.Metadata == "" {
		c.Paths.Metadata = "metadata/metadata.json"
	}
	if c.Paths.Exports == "" {
		c.Paths.Exports = "exports"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	model := defaultModel(c.LLM.Provider)

	c.Keywords.StageConfig.fill(model, 0.9, 1000)
	if c.Keywords.ExamplesPattern == "" {
		c.Keywords.ExamplesPattern = "*" + c.Paths.Suffix
	}
	if c.Keywords.Samples == 0 {
		c.Keywords.Samples = 20
	}

	c.Summaries.StageConfig.fill(model, 0.6, 10000)
	if c.Summaries.BatchSize == 0 {
		c.Summaries.BatchSize = 10
	}
	if c.Summaries.PerKeyword == 0 {
		c.Summaries.PerKeyword = 2
	}
	if c.Summaries.MaxWorkers == 0 {
		c.Summaries.MaxWorkers = 5
	}

	c.Transcriptions.StageConfig.fill(model, 0.7, 4000)
	if c.Transcriptions.BatchSize == 0 {
		c.Transcriptions.BatchSize = 1
	}
	if c.Transcriptions.MaxWorkers == 0 {
		c.Transcriptions.MaxWorkers = 10
	}

	if c.Summaries.BatchSize < 1 || c.Transcriptions.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if c.Summaries.MaxWorkers < 1 || c.Transcriptions.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if c.Keywords.Samples < 1 {
		return fmt.Errorf("keywords.samples must be at least 1")
	}

	return nil
}

func (s *StageConfig) fill(model string, temperature float64, maxTokens int) {
	if s.Model == "" {
		s.Model = model
	}
	if s.Temperature == nil {
		s.Temperature = &temperature
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = maxTokens
	}
}

func isSupported(provider string) bool {
	for _, p := range supportedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

func defaultAPIKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "huggingface":
		return "HF_TOKEN"
	default:
		return ""
	}
}

// defaultModel returns the model used when a stage names none. The command
// provider ignores the model unless its args reference {model}.
func defaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-flash"
	case "ollama":
		return "llama3.1"
	case "huggingface":
		return "meta-llama/Llama-3.1-8B-Instruct"
	default:
		return "gpt-4o"
	}
}
