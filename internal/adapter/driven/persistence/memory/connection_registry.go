package memory

import (
	"github.com/Wyydra/ya-signal/internal/core/domain"
)

// ConnectionRegistry is not safe for concurrent use.
type ConnectionRegistry struct {
	byConn    map[domain.ConnectionID]domain.DisplayID
	byDisplay map[domain.DisplayID]domain.ConnectionID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byConn:    make(map[domain.ConnectionID]domain.DisplayID),
		byDisplay: make(map[domain.DisplayID]domain.ConnectionID),
	}
}

func (r *ConnectionRegistry) Insert(conn domain.ConnectionID, display domain.DisplayID) error {
	if owner, ok := r.byDisplay[display]; ok && owner != conn {
		return domain.ErrDisplayIDTaken
	}
	if prev, ok := r.byConn[conn]; ok && prev != display {
		delete(r.byDisplay, prev)
	}
	r.byConn[conn] = display
	r.byDisplay[display] = conn
	return nil
}

// Remove is a no-op for unknown connections.
func (r *ConnectionRegistry) Remove(conn domain.ConnectionID) (domain.DisplayID, bool) {
	display, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if r.byDisplay[display] == conn {
		delete(r.byDisplay, display)
	}
	return display, true
}

func (r *ConnectionRegistry) DisplayID(conn domain.ConnectionID) (domain.DisplayID, bool) {
	display, ok := r.byConn[conn]
	return display, ok
}

func (r *ConnectionRegistry) FindByDisplayID(display domain.DisplayID) (domain.ConnectionID, bool) {
	conn, ok := r.byDisplay[display]
	return conn, ok
}

func (r *ConnectionRegistry) ConnectionIDs() []domain.ConnectionID {
	ids := make([]domain.ConnectionID, 0, len(r.byConn))
	for id := range r.byConn {
		ids = append(ids, id)
	}
	return ids
}

func (r *ConnectionRegistry) Len() int {
	return len(r.byConn)
}
