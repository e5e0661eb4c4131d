package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

type WSClient struct {
	id   domain.ConnectionID
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn, queue int) *WSClient {
	return &WSClient{
		id:   domain.NewConnectionID(),
		conn: conn,
		send: make(chan []byte, queue),
	}
}

func (c *WSClient) ID() domain.ConnectionID {
	return c.id
}

// Send never blocks: a full queue drops the event.
func (c *WSClient) Send(evt domain.Event) error {
	frame, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: client closed", domain.ErrSendFailed)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", domain.ErrSendFailed)
	}
}

// Close stops the write pump, which then closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// writePump is the only writer of data frames on the connection.
func (c *WSClient) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id.String()).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	creds, err := h.handshake(conn, r)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Handshake failed")
		writeClose(conn, websocket.ClosePolicyViolation, err.Error())
		conn.Close()
		return
	}

	ctx := context.WithoutCancel(r.Context())
	client := newWSClient(conn, h.cfg.SendQueueSize)
	l := log.With().
		Str("connection_id", client.id.String()).
		Str("display_id", creds.DisplayID).
		Logger()

	// Registered with the hub before the coordinator so the replay has a
	// destination; frames queue until the write pump starts.
	h.Hub.Register(client)
	if err := h.Signaling.Connect(ctx, client.id, domain.DisplayID(creds.DisplayID), creds.Secret); err != nil {
		l.Warn().Err(err).Msg("Connection refused")
		h.Hub.Unregister(client)
		writeClose(conn, websocket.ClosePolicyViolation, refusalReason(err))
		conn.Close()
		return
	}
	go client.writePump(h.cfg.PingInterval)
	l.Info().Msg("New client connected")

	defer func() {
		h.Signaling.Disconnect(ctx, client.id)
		h.Hub.Unregister(client)
		l.Info().Msg("Client disconnected")
	}()

	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MaxMessagesPerSecond), h.cfg.MaxMessagesPerSecond)

	// listening for peer
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}
		if !limiter.Allow() {
			l.Warn().Msg("Rate limit exceeded")
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			break
		}
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		if msgType != websocket.TextMessage {
			l.Warn().Int("message_type", msgType).Msg("Ignoring non-text frame")
			continue
		}

		h.handleFrame(ctx, l, client.id, data)
	}
}

func (h *Handler) handleFrame(ctx context.Context, l zerolog.Logger, conn domain.ConnectionID, data []byte) {
	var req envelope
	if err := json.Unmarshal(data, &req); err != nil {
		l.Warn().Err(err).Msg("Invalid frame")
		return
	}

	var err error
	switch req.Type {
	case msgNewOffer:
		err = h.Signaling.NewOffer(ctx, conn, domain.Payload(req.Payload))

	case msgNewAnswer:
		var dto newAnswerDTO
		if err = json.Unmarshal(req.Payload, &dto); err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
			break
		}
		err = h.Signaling.NewAnswer(ctx, conn, domain.DisplayID(dto.OffererID), domain.Payload(dto.Answer))

	case msgIceCandidate:
		var dto iceCandidateDTO
		if err = json.Unmarshal(req.Payload, &dto); err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
			break
		}
		err = h.Signaling.IceCandidate(ctx, conn, dto.IsOfferer, domain.DisplayID(dto.PeerDisplayID), domain.Payload(dto.Candidate))

	default:
		err = fmt.Errorf("%w: unknown type %q", domain.ErrInvalidMessage, req.Type)
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNegotiationNotFound), errors.Is(err, domain.ErrAlreadyAnswered):
		l.Debug().Err(err).Str("type", req.Type).Msg("Dropped signal")
	case errors.Is(err, domain.ErrInvalidMessage):
		l.Warn().Err(err).Str("type", req.Type).Msg("Invalid signal")
	default:
		l.Error().Err(err).Str("type", req.Type).Msg("Failed to handle signal")
	}
}

var (
	errAuthTimeout   = errors.New("authentication timeout")
	errExpectedAuth  = errors.New("expected auth message")
	errMissingFields = errors.New("displayId and secret are required")
)

// handshake reads credentials from the query string, or else from a first
// "auth" frame that must arrive within the auth timeout.
func (h *Handler) handshake(conn *websocket.Conn, r *http.Request) (authDTO, error) {
	q := r.URL.Query()
	if q.Has("displayId") || q.Has("secret") {
		creds := authDTO{DisplayID: q.Get("displayId"), Secret: q.Get("secret")}
		if creds.DisplayID == "" || creds.Secret == "" {
			return authDTO{}, errMissingFields
		}
		return creds, nil
	}

	conn.SetReadDeadline(time.Now().Add(h.cfg.AuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return authDTO{}, errAuthTimeout
		}
		return authDTO{}, err
	}
	if msgType != websocket.TextMessage {
		return authDTO{}, errExpectedAuth
	}
	var req envelope
	if err := json.Unmarshal(data, &req); err != nil || req.Type != msgAuth {
		return authDTO{}, errExpectedAuth
	}
	var creds authDTO
	if err := json.Unmarshal(req.Payload, &creds); err != nil {
		return authDTO{}, errExpectedAuth
	}
	if creds.DisplayID == "" || creds.Secret == "" {
		return authDTO{}, errMissingFields
	}
	return creds, nil
}

func refusalReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrDisplayIDTaken):
		return "display id already connected"
	default:
		return "connection refused"
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
