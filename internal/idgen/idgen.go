package idgen

import "github.com/google/uuid"

// New returns a UUIDv7 identifier string, falling back to a random UUIDv4
// if v7 generation fails. Handoff files sort by creation time as a result.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
