package gemini

import "strings"

// Request types for the Gemini REST API.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Response types.

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *usageMetadata  `json:"usageMetadata,omitempty"`
	Error          *apiErrorObject `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// attrs renders token counts as slog key/value pairs. Nil yields none.
func (u *usageMetadata) attrs() []any {
	if u == nil {
		return nil
	}
	return []any{
		"prompt_tokens", u.PromptTokenCount,
		"output_tokens", u.CandidatesTokenCount,
		"total_tokens", u.TotalTokenCount,
	}
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// text joins the text parts of the first candidate. ok is false when the
// response carries no parts at all.
func (r generateResponse) text() (string, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), true
}

func (r generateResponse) blockReason() string {
	if r.PromptFeedback == nil {
		return ""
	}
	return r.PromptFeedback.BlockReason
}
