package api

import (
	"strings"

	"github.com/google/uuid"
)

const requestIDPrefix = "req_"

// NewRequestID generates a request ID: "req_" followed by a random UUID
// without dashes.
func NewRequestID() string {
	return requestIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateRequestID reports whether id has the shape produced by NewRequestID.
func ValidateRequestID(id string) bool {
	rest, ok := strings.CutPrefix(id, requestIDPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
