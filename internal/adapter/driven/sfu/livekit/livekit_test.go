package livekit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	lkproto "github.com/livekit/protocol/livekit"
)

type fakeRoomService struct {
	resp *lkproto.ListRoomsResponse
	err  error
}

func (f fakeRoomService) ListRooms(ctx context.Context, req *lkproto.ListRoomsRequest) (*lkproto.ListRoomsResponse, error) {
	return f.resp, f.err
}

func TestAdapter_IssueToken(t *testing.T) {
	a := &Adapter{apiKey: "key", apiSecret: "a-secret-long-enough-for-hmac-signing", tokenTTL: time.Hour}

	token, err := a.IssueToken(context.Background(), "lobby", "alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	var claims struct {
		Iss   string `json:"iss"`
		Sub   string `json:"sub"`
		Exp   int64  `json:"exp"`
		Video struct {
			RoomJoin     bool   `json:"roomJoin"`
			Room         string `json:"room"`
			CanPublish   *bool  `json:"canPublish"`
			CanSubscribe *bool  `json:"canSubscribe"`
		} `json:"video"`
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if claims.Iss != "key" || claims.Sub != "alice" {
		t.Fatalf("iss=%q sub=%q", claims.Iss, claims.Sub)
	}
	if !claims.Video.RoomJoin || claims.Video.Room != "lobby" {
		t.Fatalf("video grant=%+v", claims.Video)
	}
	if claims.Video.CanPublish == nil || !*claims.Video.CanPublish || claims.Video.CanSubscribe == nil || !*claims.Video.CanSubscribe {
		t.Fatalf("publish/subscribe not granted: %+v", claims.Video)
	}
	if claims.Exp <= time.Now().Unix() {
		t.Fatalf("exp=%d already passed", claims.Exp)
	}
}

func TestAdapter_ListRooms(t *testing.T) {
	a := &Adapter{rooms: fakeRoomService{resp: &lkproto.ListRoomsResponse{
		Rooms: []*lkproto.Room{
			{Name: "lobby", NumParticipants: 3},
			{Name: "empty"},
		},
	}}}

	rooms, err := a.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Name != "lobby" || rooms[0].NumParticipants != 3 || rooms[1].NumParticipants != 0 {
		t.Fatalf("rooms=%+v", rooms)
	}

	a.rooms = fakeRoomService{err: errors.New("unavailable")}
	if _, err := a.ListRooms(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
