package services

import (
	"context"
	"errors"

	"github.com/example/pianostore/internal/utils"
)

const (
	MessageUnavailable = "Cannot reach the store right now. Please try again."
	MessageFailed      = "Something went wrong. Please try again."
	MessageLoginAgain  = "Your session has expired. Please log in again."
)

// UserMessage maps an error to the text shown to the visitor: backend
// messages verbatim, local validation messages as-is, a generic text for
// transport failures.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	if errors.Is(err, ErrUnauthorized) {
		return MessageLoginAgain
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	if errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return MessageUnavailable
	}

	return MessageFailed
}
