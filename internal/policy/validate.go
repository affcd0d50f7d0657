// Package policy holds the input rules applied to every inbound request
// before it reaches the chat pipeline.
package policy

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest accepted chat message, in characters,
// measured after surrounding whitespace is trimmed.
const MaxMessageLength = 5000

// MaxBodyBytes caps the size of a JSON request body.
const MaxBodyBytes = 10 << 10

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes malformed or missing input. Message is safe
// to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

var stripTags = strings.NewReplacer("<", "", ">", "")

func clean(s string) string { return strings.TrimSpace(stripTags.Replace(s)) }

// Required strips angle brackets and whitespace from value and rejects it
// when nothing is left.
func Required(field, value string) (string, error) {
	v := clean(value)
	if v == "" {
		return "", invalid(field, "Missing required field: "+field)
	}
	return v, nil
}

// SanitizeMessage trims the message, enforces the length limit and strips
// angle brackets. A message that is empty once stripped is rejected too.
func SanitizeMessage(raw string) (string, error) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", invalid("message", "Message cannot be empty")
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return "", invalid("message", fmt.Sprintf("Message too long. Maximum %d characters allowed.", MaxMessageLength))
	}
	if msg = clean(msg); msg == "" {
		return "", invalid("message", "Message cannot be empty")
	}
	return msg, nil
}

// ChatInput is a validated chat message addressed to one session.
type ChatInput struct {
	UserID    string
	SessionID string
	Message   string
}

// ValidateChat checks all three fields. Missing fields are reported
// together, the first one named in Field.
func ValidateChat(userID, sessionID, message string) (ChatInput, error) {
	var missing string
	switch {
	case clean(userID) == "":
		missing = "userId"
	case clean(sessionID) == "":
		missing = "sessionId"
	case message == "":
		missing = "message"
	}
	if missing != "" {
		return ChatInput{}, invalid(missing, "Missing required fields: userId, sessionId, message")
	}

	msg, err := SanitizeMessage(message)
	if err != nil {
		return ChatInput{}, err
	}
	return ChatInput{UserID: clean(userID), SessionID: clean(sessionID), Message: msg}, nil
}
