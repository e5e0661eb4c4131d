package domain

import (
	"github.com/google/uuid"
)

// ConnectionID identifies one live transport session. It is minted by the
// transport layer and never reused.
type ConnectionID uuid.UUID

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

// DisplayID is the name a peer picks for itself when it connects.
type DisplayID string

func (id DisplayID) String() string {
	return string(id)
}
