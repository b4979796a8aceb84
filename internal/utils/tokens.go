package utils

// CountTokens estimates the number of tokens in text at roughly four
// characters per token. Non-empty text counts as at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TokenEstimate sizes a single-prompt request against a context window.
type TokenEstimate struct {
	Prompt     int
	Completion int
	Context    int
}

// Total is the prompt plus the completion budget.
func (e TokenEstimate) Total() int { return e.Prompt + e.Completion }

// Fits reports whether the request fits the window. An unknown window fits.
func (e TokenEstimate) Fits() bool { return e.Context <= 0 || e.Total() <= e.Context }

// EstimateRequest estimates prompt tokens and pairs them with the completion
// budget and context window.
func EstimateRequest(prompt string, maxTokens, contextTokens int) TokenEstimate {
	return TokenEstimate{Prompt: CountTokens(prompt), Completion: maxTokens, Context: contextTokens}
}
