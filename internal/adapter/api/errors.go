package api

import (
	"errors"

	"github.com/tidwall/gjson"
)

// fallbackMessage is reported when an error body cannot be parsed. Parse
// failures never surface as a secondary error.
const fallbackMessage = "request failed"

// APIError is an explicit rejection from a reachable server: a non-2xx
// response with (usually) a JSON error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus returns true if err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: extractMessage(body)}
}

// extractMessage pulls a human-readable message out of an error body.
// Priority: detail string, detail object (compact JSON), message string,
// the body itself when it is a bare JSON string.
func extractMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return fallbackMessage
	}
	root := gjson.ParseBytes(body)
	if detail := root.Get("detail"); detail.Exists() {
		if detail.Type == gjson.String {
			return detail.String()
		}
		if detail.IsObject() {
			compact, err := json.Marshal(detail.Value())
			if err != nil {
				return fallbackMessage
			}
			return string(compact)
		}
	}
	if msg := root.Get("message"); msg.Type == gjson.String {
		return msg.String()
	}
	if root.Type == gjson.String {
		return root.String()
	}
	return fallbackMessage
}
