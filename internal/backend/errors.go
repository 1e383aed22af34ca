package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// ErrUnavailable marks transport failures: the backend could not be reached
// or the response could not be read.
var ErrUnavailable = errors.New("backend unavailable")

// APIError is a non-2xx answer from the backend. Message is always set;
// Reported holds only what the backend itself put in the body.
type APIError struct {
	StatusCode int
	Message    string
	Reported   string
}

func (e *APIError) Error() string {
	return e.Message
}

const genericFailure = "Request failed"

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// decodeError builds an APIError from an error response, preferring the
// JSON error field, then message, then the status text.
func decodeError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	reported := ""
	if json.Unmarshal(body, &payload) == nil {
		reported = payload.Error
		if reported == "" {
			reported = payload.Message
		}
	}
	msg := reported
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if strings.TrimSpace(msg) == "" {
		msg = genericFailure
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg, Reported: reported}
}
