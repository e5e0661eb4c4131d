package service

import (
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
)

// CandidateRouter stores a candidate on its negotiation and resolves the
// connection it should be forwarded to. It keeps no state of its own and
// relies on the caller to serialize access to the registry and store.
type CandidateRouter struct {
	registry port.ConnectionRegistry
	store    port.NegotiationStore
}

func NewCandidateRouter(registry port.ConnectionRegistry, store port.NegotiationStore) *CandidateRouter {
	return &CandidateRouter{
		registry: registry,
		store:    store,
	}
}

// Route returns ok=false when the candidate was stored but the counterpart has
// not answered yet or is not connected.
func (r *CandidateRouter) Route(candidate domain.Payload, producer domain.DisplayID, role domain.Role, now time.Time) (domain.ConnectionID, bool, error) {
	neg, err := r.store.AppendCandidate(role, producer, candidate, now)
	if err != nil {
		return domain.ConnectionID{}, false, err
	}

	target := neg.Counterpart(role)
	if target == "" {
		return domain.ConnectionID{}, false, nil
	}
	conn, ok := r.registry.FindByDisplayID(target)
	return conn, ok, nil
}
