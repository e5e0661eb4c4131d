package port

import (
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

// ConnectionRegistry maps live connections to display ids. Implementations
// are not required to be safe for concurrent use; the signaling service
// serializes access.
type ConnectionRegistry interface {
	Insert(conn domain.ConnectionID, display domain.DisplayID) error
	Remove(conn domain.ConnectionID) (domain.DisplayID, bool)
	DisplayID(conn domain.ConnectionID) (domain.DisplayID, bool)
	FindByDisplayID(display domain.DisplayID) (domain.ConnectionID, bool)
	ConnectionIDs() []domain.ConnectionID
	Len() int
}

// NegotiationStore holds at most one negotiation per offerer. Same
// concurrency contract as ConnectionRegistry. Returned negotiations are
// copies.
type NegotiationStore interface {
	PutOffer(neg domain.Negotiation) (replaced bool)
	AttachAnswer(offererID domain.DisplayID, answer domain.Payload, answererID domain.DisplayID, now time.Time) (domain.Negotiation, error)
	AppendCandidate(role domain.Role, peer domain.DisplayID, candidate domain.Payload, now time.Time) (domain.Negotiation, error)
	Get(offererID domain.DisplayID) (domain.Negotiation, bool)
	DropByOfferer(offererID domain.DisplayID) bool
	Pending() []domain.Negotiation
	ExpireIdle(before time.Time) []domain.DisplayID
	Len() int
}
