package schema

import (
	"strconv"
	"strings"
)

// ParseSessionID parses a decimal session id as sent by transports.
// Only positive ids are valid.
func ParseSessionID(value string) (SessionID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, ErrInvalidRequest
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return 0, ErrInvalidRequest
	}
	return SessionID(parsed), nil
}

// NormalizeCommand trims surrounding whitespace from submitted input.
// It returns ErrEmptyCommand for blank input.
func NormalizeCommand(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrEmptyCommand
	}
	return trimmed, nil
}
