package port

import (
	"context"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

type TokenIssuer interface {
	IssueToken(ctx context.Context, room, identity string) (string, error)
}

type RoomLister interface {
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
}
