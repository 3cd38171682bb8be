package studioclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the studio backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("studio api %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("studio api %d: %s", e.Status, msg)
}

// ErrorDetail returns the user-facing detail sent by the backend, if any.
func (e *APIError) ErrorDetail() string {
	return e.Detail
}

// decodeAPIError builds an APIError from an error body. Bodies that are not
// JSON are kept as the message.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return apiErr
	}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = truncate(trimmed, 512)
	}
	apiErr.Status = status
	return apiErr
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
