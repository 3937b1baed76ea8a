package model

import "github.com/oklog/ulid/v2"

// NewID returns a fresh ULID. Workflows, executions, and templates all
// share this identifier scheme; the lexicographic ordering doubles as
// creation order.
func NewID() string {
	return ulid.Make().String()
}
