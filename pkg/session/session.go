package session

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a fresh session identifier of the form "test-<8 hex chars>".
// One identifier is generated per invocation and tagged onto every message of
// that run, so repeated runs against a shared queue never see each other's
// messages.
func NewID() string {
	id := uuid.New()
	return fmt.Sprintf("test-%x", id[:4])
}
