package ai

import "context"

// Runtime is implemented by completion backends such as the OpenAI-compatible
// HTTP API and a local Ollama server.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted in config and flags.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// NormalizeProvider maps aliases onto a registered provider name.
func NormalizeProvider(name string) string {
	switch name {
	case "", "openai", "OpenAI", "OPENAI", "openrouter":
		return ProviderOpenAI
	case "ollama", "Ollama", "local", "LOCAL":
		return ProviderOllama
	default:
		return name
	}
}
