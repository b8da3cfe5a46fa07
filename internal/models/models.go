package models

// ProviderName identifies an upstream generation service.
type ProviderName string

const (
	ProviderGemini   ProviderName = "gemini"
	ProviderDeepSeek ProviderName = "deepseek"
)

// Providers lists every provider the relay knows about, in a stable order.
var Providers = []ProviderName{ProviderGemini, ProviderDeepSeek}

// ParseProvider maps a wire value onto a known provider.
func ParseProvider(value string) (ProviderName, bool) {
	for _, p := range Providers {
		if string(p) == value {
			return p, true
		}
	}
	return "", false
}

// Style selects how a question is framed for the model.
type Style int

const (
	StyleDirect Style = iota
	StyleReasoning
)

func (s Style) String() string {
	switch s {
	case StyleDirect:
		return "direct"
	case StyleReasoning:
		return "reasoning"
	default:
		return "unknown"
	}
}

// ChatRequest is a single inbound chat call.
type ChatRequest struct {
	Content string
	Model   string
}

// ModelEntry binds a public alias to a provider model.
type ModelEntry struct {
	Alias           string
	Provider        ProviderName
	ProviderModelID string
	Style           Style
}

// GenerationResult is the raw output of one provider call.
type GenerationResult struct {
	RawText        string
	Provider       ProviderName
	ElapsedSeconds float64
}

// ChatResult is the normalized answer returned to the caller.
type ChatResult struct {
	Response       string
	Provider       ProviderName
	ProcessingTime float64
}
