package port

import (
	"context"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

// SignalGateway delivers events to live connections.
//
// Delivery is at-most-once: Deliver must not block on the network and is
// never retried. An error means the event was dropped.
type SignalGateway interface {
	Deliver(ctx context.Context, to domain.ConnectionID, evt domain.Event) error
}
