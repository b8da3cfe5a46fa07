// Package translator converts between the relay's JSON wire format and the
// internal request and result types.
package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"islamai-relay/internal/models"
)

var (
	errEmptyKey      = errors.New("key must be provided")
	errEmptyProvider = errors.New("provider must be provided")
	errEmptyModel    = errors.New("model must be provided")
)

// ChatMessageRequest is the body of POST /chat.
type ChatMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// ToChatRequest converts the wire payload. Field validation is left to the router.
func (r ChatMessageRequest) ToChatRequest() models.ChatRequest {
	return models.ChatRequest{Content: r.Content, Model: r.Model}
}

// KeyUpdateRequest is the body of POST /keys.
type KeyUpdateRequest struct {
	Provider string
	Key      string
}

// UnmarshalJSON rejects payloads without a provider or key.
func (r *KeyUpdateRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}
	var tmp alias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if strings.TrimSpace(tmp.Provider) == "" {
		return errEmptyProvider
	}
	if strings.TrimSpace(tmp.Key) == "" {
		return errEmptyKey
	}
	r.Provider = tmp.Provider
	r.Key = tmp.Key
	return nil
}

// ActiveModelRequest is the body of PUT /models/active.
type ActiveModelRequest struct {
	Model string
}

// UnmarshalJSON rejects payloads without a model.
func (r *ActiveModelRequest) UnmarshalJSON(data []byte) error {
	var tmp struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if strings.TrimSpace(tmp.Model) == "" {
		return errEmptyModel
	}
	r.Model = tmp.Model
	return nil
}

// APIResponse is the envelope every /api endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Detail  string `json:"detail,omitempty"`
}

// ChatData is the payload of a successful chat.
type ChatData struct {
	Response       string  `json:"response"`
	Model          string  `json:"model"`
	ProcessingTime float64 `json:"processing_time"`
}

// KeyData is the payload of a key lookup.
type KeyData struct {
	Key string `json:"key"`
}

// ModelInfo describes one public alias.
type ModelInfo struct {
	Alias    string `json:"alias"`
	Provider string `json:"provider"`
	Style    string `json:"style"`
}

// ModelsData is the payload of GET /models.
type ModelsData struct {
	Models      []ModelInfo `json:"models"`
	ActiveModel string      `json:"active_model"`
}

// ActiveModelData is the payload of PUT /models/active.
type ActiveModelData struct {
	ActiveModel string `json:"active_model"`
}

// FromChatResult builds the success envelope for a chat answer.
func FromChatResult(result *models.ChatResult) APIResponse {
	return APIResponse{
		Success: true,
		Message: "Response generated successfully",
		Data: ChatData{
			Response:       result.Response,
			Model:          string(result.Provider),
			ProcessingTime: result.ProcessingTime,
		},
	}
}

// KeyUpdated builds the envelope returned after a key is stored.
func KeyUpdated(p models.ProviderName) APIResponse {
	return APIResponse{
		Success: true,
		Message: fmt.Sprintf("%s API key updated successfully", p),
	}
}

// KeyRetrieved builds the envelope for a key lookup.
func KeyRetrieved(p models.ProviderName, key string) APIResponse {
	return APIResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully retrieved %s API key", p),
		Data:    KeyData{Key: key},
	}
}

// FromModelEntries builds the model listing envelope.
func FromModelEntries(entries []models.ModelEntry, active string) APIResponse {
	infos := make([]ModelInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, ModelInfo{
			Alias:    entry.Alias,
			Provider: string(entry.Provider),
			Style:    entry.Style.String(),
		})
	}
	return APIResponse{
		Success: true,
		Message: "Successfully retrieved models",
		Data:    ModelsData{Models: infos, ActiveModel: active},
	}
}

// ActiveModelUpdated builds the envelope returned after the active model changes.
func ActiveModelUpdated(alias string) APIResponse {
	return APIResponse{
		Success: true,
		Message: fmt.Sprintf("Active model set to %s", alias),
		Data:    ActiveModelData{ActiveModel: alias},
	}
}

// Failure builds the error envelope. detail mirrors message for older clients.
func Failure(message string) APIResponse {
	return APIResponse{Message: message, Detail: message}
}
