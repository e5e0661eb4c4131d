package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Wyydra/ya-signal/internal/config"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/service"
)

type fakeIssuer struct {
	err error
}

func (f fakeIssuer) IssueToken(ctx context.Context, room, identity string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-" + room + "-" + identity, nil
}

type fakeRooms struct {
	rooms []domain.RoomSummary
}

func (f fakeRooms) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return f.rooms, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	s.connect(t, "A")

	rec := get(t, s.handler.NewRouter(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Connections != 1 || body.Negotiations != 0 {
		t.Fatalf("body = %+v", body)
	}
}

func TestLiveKitEndpoints_Disabled(t *testing.T) {
	h := NewHandler(nil, service.NewBrokerService(nil, nil), nil, config.Default())
	r := h.NewRouter()

	for _, target := range []string{"/livekit/token?room=r&username=u", "/livekit/rooms"} {
		if rec := get(t, r, target); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestLiveKitToken(t *testing.T) {
	cases := []struct {
		name   string
		issuer fakeIssuer
		target string
		status int
		token  string
	}{
		{"ok", fakeIssuer{}, "/livekit/token?room=lobby&username=alice", http.StatusOK, "token-lobby-alice"},
		{"missing room", fakeIssuer{}, "/livekit/token?username=alice", http.StatusBadRequest, ""},
		{"missing username", fakeIssuer{}, "/livekit/token?room=lobby", http.StatusBadRequest, ""},
		{"upstream failure", fakeIssuer{err: errors.New("boom")}, "/livekit/token?room=lobby&username=alice", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(nil, service.NewBrokerService(tc.issuer, fakeRooms{}), nil, config.Default())
			rec := get(t, h.NewRouter(), tc.target)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.token == "" {
				return
			}
			var body tokenResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Token != tc.token {
				t.Fatalf("token = %q", body.Token)
			}
		})
	}
}

func TestLiveKitRooms(t *testing.T) {
	rooms := fakeRooms{rooms: []domain.RoomSummary{{Name: "lobby", NumParticipants: 3}}}
	h := NewHandler(nil, service.NewBrokerService(fakeIssuer{}, rooms), nil, config.Default())

	rec := get(t, h.NewRouter(), "/livekit/rooms")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body []roomResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].Name != "lobby" || body[0].NumParticipants != 3 {
		t.Fatalf("body = %+v", body)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"HTTPS://APP.EXAMPLE.COM", true},
		{"https://evil.example.com", false},
		{"http://app.example.com", false},
		{"::", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := check(r); got != tc.want {
			t.Fatalf("origin %q: got %v, want %v", tc.origin, got, tc.want)
		}
	}

	if !originChecker(nil)(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Fatalf("empty allow list should accept everything")
	}
}
