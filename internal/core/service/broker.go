package service

import (
	"context"
	"strings"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/rs/zerolog/log"
)

// BrokerService fronts the SFU: it hands out join tokens and lists rooms.
// It is disabled when constructed with nil ports.
type BrokerService struct {
	issuer port.TokenIssuer
	rooms  port.RoomLister
}

func NewBrokerService(issuer port.TokenIssuer, rooms port.RoomLister) *BrokerService {
	return &BrokerService{
		issuer: issuer,
		rooms:  rooms,
	}
}

func (s *BrokerService) Enabled() bool {
	return s != nil && s.issuer != nil && s.rooms != nil
}

func (s *BrokerService) IssueToken(ctx context.Context, room, username string) (string, error) {
	if !s.Enabled() {
		return "", domain.ErrBrokerDisabled
	}
	room, username = strings.TrimSpace(room), strings.TrimSpace(username)
	if room == "" || username == "" {
		return "", domain.ErrInvalidTokenRequest
	}
	return s.issuer.IssueToken(ctx, room, username)
}

// ListRooms reports an upstream failure as an empty list.
func (s *BrokerService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if !s.Enabled() {
		return nil, domain.ErrBrokerDisabled
	}
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list rooms on SFU")
		return []domain.RoomSummary{}, nil
	}
	return rooms, nil
}
