package gateway

import (
	"encoding/json"
	"fmt"
)

// APIError is the uniform error shape every failed backend call is
// normalized into. StatusCode is zero for transport failures where no
// response was received; Body preserves the raw response body for callers
// that need detail beyond the message.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// errorBody is the structured error payload the backend returns. Message
// is preferred over Error when both are present.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// newTransportError wraps a failure where no response was received.
func newTransportError(err error) *APIError {
	return &APIError{Message: err.Error()}
}

// newStatusError normalizes a non-2xx response. The message is taken from
// the structured body when one exists (body message, then body error),
// falling back to the fallback text (typically the HTTP status line).
func newStatusError(statusCode int, body []byte, fallback string) *APIError {
	message := fallback

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.Error != "" {
			message = parsed.Error
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Body:       body,
	}
}
