package ws

import "github.com/Wyydra/ya-signal/internal/core/domain"

type Client interface {
	ID() domain.ConnectionID
	// Send queues evt without blocking on the network.
	Send(evt domain.Event) error
	Close() error
}
