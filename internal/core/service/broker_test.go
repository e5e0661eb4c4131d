package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/service"
)

type fakeSFU struct {
	rooms   []domain.RoomSummary
	listErr error
	issued  []string
}

func (f *fakeSFU) IssueToken(ctx context.Context, room, identity string) (string, error) {
	f.issued = append(f.issued, room+"/"+identity)
	return "token-" + room + "-" + identity, nil
}

func (f *fakeSFU) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return f.rooms, f.listErr
}

func TestBrokerService_Disabled(t *testing.T) {
	b := service.NewBrokerService(nil, nil)
	if _, err := b.IssueToken(context.Background(), "r", "u"); !errors.Is(err, domain.ErrBrokerDisabled) {
		t.Fatalf("err=%v", err)
	}
	if _, err := b.ListRooms(context.Background()); !errors.Is(err, domain.ErrBrokerDisabled) {
		t.Fatalf("err=%v", err)
	}
}

func TestBrokerService_IssueToken(t *testing.T) {
	sfu := &fakeSFU{}
	b := service.NewBrokerService(sfu, sfu)

	for _, tc := range []struct{ room, user string }{{"", "u"}, {"r", ""}, {"  ", "u"}} {
		if _, err := b.IssueToken(context.Background(), tc.room, tc.user); !errors.Is(err, domain.ErrInvalidTokenRequest) {
			t.Fatalf("room=%q user=%q err=%v", tc.room, tc.user, err)
		}
	}

	tok, err := b.IssueToken(context.Background(), " lobby ", "alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if tok != "token-lobby-alice" {
		t.Fatalf("token=%q", tok)
	}
}

func TestBrokerService_ListRoomsSwallowsUpstreamError(t *testing.T) {
	sfu := &fakeSFU{listErr: errors.New("boom")}
	b := service.NewBrokerService(sfu, sfu)

	rooms, err := b.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if rooms == nil || len(rooms) != 0 {
		t.Fatalf("rooms=%v, want empty non-nil", rooms)
	}
}
