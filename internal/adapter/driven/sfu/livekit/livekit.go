package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/livekit/protocol/auth"
	lkproto "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Adapter implements port.TokenIssuer and port.RoomLister against a LiveKit
// deployment.
type Adapter struct {
	apiKey    string
	apiSecret string
	tokenTTL  time.Duration
	rooms     roomService
}

type roomService interface {
	ListRooms(ctx context.Context, req *lkproto.ListRoomsRequest) (*lkproto.ListRoomsResponse, error)
}

func NewAdapter(url, apiKey, apiSecret string, tokenTTL time.Duration) *Adapter {
	return &Adapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		tokenTTL:  tokenTTL,
		rooms:     lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
	}
}

// IssueToken grants join, publish and subscribe on a single room.
func (a *Adapter) IssueToken(ctx context.Context, room, identity string) (string, error) {
	canPublish, canSubscribe := true, true
	at := auth.NewAccessToken(a.apiKey, a.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}).
		SetIdentity(identity).
		SetValidFor(a.tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign livekit token: %w", err)
	}
	return token, nil
}

func (a *Adapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	resp, err := a.rooms.ListRooms(ctx, &lkproto.ListRoomsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list livekit rooms: %w", err)
	}
	out := make([]domain.RoomSummary, 0, len(resp.GetRooms()))
	for _, r := range resp.GetRooms() {
		out = append(out, domain.RoomSummary{
			Name:            r.GetName(),
			NumParticipants: int(r.GetNumParticipants()),
		})
	}
	return out, nil
}
