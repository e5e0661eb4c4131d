package ws

import (
	"context"
	"fmt"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const DefaultOutboundQueue = 1024

type delivery struct {
	to  domain.ConnectionID
	evt domain.Event
}

// Hub implements port.SignalGateway. The client map is owned by the Run
// goroutine; Register and Unregister return once Run has applied them.
type Hub struct {
	clients    map[domain.ConnectionID]Client
	outbound   chan delivery
	register   chan Client
	unregister chan Client
	quit       chan struct{}
}

func NewHub() *Hub {
	return NewHubWithQueue(DefaultOutboundQueue)
}

func NewHubWithQueue(size int) *Hub {
	return &Hub{
		clients:    make(map[domain.ConnectionID]Client),
		outbound:   make(chan delivery, size),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
	}
}

// Deliver drops the event when the outbound queue is full.
func (h *Hub) Deliver(ctx context.Context, to domain.ConnectionID, evt domain.Event) error {
	select {
	case h.outbound <- delivery{to: to, evt: evt}:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue full", domain.ErrSendFailed)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, client := range h.clients {
				client.Close()
				delete(h.clients, id)
			}
			return

		case client := <-h.register:
			h.clients[client.ID()] = client
			log.Debug().Str("connection_id", client.ID().String()).Int("count", len(h.clients)).Msg("Client registered")

		case client := <-h.unregister:
			if current, ok := h.clients[client.ID()]; ok && current == client {
				delete(h.clients, client.ID())
				client.Close()
				log.Debug().Str("connection_id", client.ID().String()).Int("count", len(h.clients)).Msg("Client unregistered")
			}

		case d := <-h.outbound:
			client, ok := h.clients[d.to]
			if !ok {
				log.Debug().Str("connection_id", d.to.String()).Str("event", string(d.evt.Type)).Msg("Dropping event for unknown client")
				continue
			}
			if err := client.Send(d.evt); err != nil {
				log.Warn().Err(err).Str("connection_id", d.to.String()).Str("event", string(d.evt.Type)).Msg("Error sending event")
			}
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
