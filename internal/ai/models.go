package ai

import "sort"

// ModelInfo holds context size and list pricing used for dry-run estimates.
type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"gpt-4o-mini":         {Name: "gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"gpt-4o":              {Name: "gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
	"gpt-4.1-mini":        {Name: "gpt-4.1-mini", ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016},
	"gpt-4.1":             {Name: "gpt-4.1", ContextTokens: 1047576, InputPerK: 0.002, OutputPerK: 0.008},
	// local Ollama tags
	"llama3.1:8b":         {Name: "llama3.1:8b", ContextTokens: 131072},
	"mistral-nemo:latest": {Name: "mistral-nemo:latest", ContextTokens: 131072},
	"qwen2.5:7b":          {Name: "qwen2.5:7b", ContextTokens: 32768},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// Catalog returns the known models sorted by name.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
