package app

import "github.com/google/uuid"

// newID produces the identifier for records the orchestrator creates.
// Isolated here so the ID strategy can evolve independently.
func newID() string {
	return uuid.NewString()
}
