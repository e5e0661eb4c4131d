package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/rs/zerolog/log"
)

const minJanitorInterval = time.Second

// SignalingService brokers offer/answer/candidate exchange between peers.
//
// A single mutex guards the registry and the store for the duration of each
// operation. Outbound events are collected while locked and handed to the
// gateway only after the lock is released.
type SignalingService struct {
	mu       sync.Mutex
	registry port.ConnectionRegistry
	store    port.NegotiationStore
	router   *CandidateRouter

	auth    port.Authenticator
	gateway port.SignalGateway

	now func() time.Time
	ttl time.Duration
}

type Option func(*SignalingService)

// WithNegotiationTTL expires negotiations idle for longer than ttl. Zero
// keeps them until the offerer leaves or reoffers.
func WithNegotiationTTL(ttl time.Duration) Option {
	return func(s *SignalingService) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *SignalingService) { s.now = now }
}

func NewSignalingService(registry port.ConnectionRegistry, store port.NegotiationStore, auth port.Authenticator, gateway port.SignalGateway, opts ...Option) *SignalingService {
	s := &SignalingService{
		registry: registry,
		store:    store,
		router:   NewCandidateRouter(registry, store),
		auth:     auth,
		gateway:  gateway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect authenticates and registers a connection, then replays every
// negotiation still waiting for an answer.
func (s *SignalingService) Connect(ctx context.Context, conn domain.ConnectionID, display domain.DisplayID, secret string) error {
	if err := s.auth.Verify(secret); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if display == "" {
		return fmt.Errorf("%w: empty display id", domain.ErrInvalidMessage)
	}

	s.mu.Lock()
	if err := s.registry.Insert(conn, display); err != nil {
		s.mu.Unlock()
		return err
	}
	var replay []domain.Negotiation
	for _, neg := range s.store.Pending() {
		if neg.OffererID != display {
			replay = append(replay, neg)
		}
	}
	s.mu.Unlock()

	log.Info().
		Str("connection_id", conn.String()).
		Str("display_id", display.String()).
		Int("replayed", len(replay)).
		Msg("Peer registered")

	if len(replay) == 0 {
		return nil
	}
	s.dispatch(ctx, []domain.Delivery{{
		To:    conn,
		Event: domain.NewOffersEvent(domain.EventAvailableOffers, replay),
	}})
	return nil
}

// Disconnect is idempotent. It discards the negotiation the connection
// originated; negotiations it answered are left intact.
func (s *SignalingService) Disconnect(ctx context.Context, conn domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	display, ok := s.registry.Remove(conn)
	if !ok {
		return
	}
	dropped := false
	if neg, ok := s.store.Get(display); ok && neg.OriginConnectionID == conn {
		dropped = s.store.DropByOfferer(display)
	}

	log.Info().
		Str("connection_id", conn.String()).
		Str("display_id", display.String()).
		Bool("dropped_negotiation", dropped).
		Msg("Peer unregistered")
}

// NewOffer stores the offer, replacing any earlier one from the same peer,
// and broadcasts it to every other connection.
func (s *SignalingService) NewOffer(ctx context.Context, conn domain.ConnectionID, offer domain.Payload) error {
	s.mu.Lock()
	display, ok := s.registry.DisplayID(conn)
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotRegistered
	}
	neg, err := domain.NewNegotiation(display, offer, conn, s.now())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	replaced := s.store.PutOffer(*neg)

	announce := []domain.Negotiation{neg.Clone()}
	var out []domain.Delivery
	for _, id := range s.registry.ConnectionIDs() {
		if id == conn {
			continue
		}
		out = append(out, domain.Delivery{
			To:    id,
			Event: domain.NewOffersEvent(domain.EventNewOfferAwaiting, announce),
		})
	}
	s.mu.Unlock()

	log.Debug().
		Str("display_id", display.String()).
		Bool("replaced", replaced).
		Int("recipients", len(out)).
		Msg("New offer")

	s.dispatch(ctx, out)
	return nil
}

// NewAnswer attaches the answer to the offerer's negotiation. The answerer
// gets the offerer candidates gathered so far; the offering connection gets
// the full record. A peer cannot answer its own offer. Deliveries go out
// after the lock is released, so a candidate forwarded concurrently may
// reach the answerer before the ack; the ack still lists every earlier
// candidate in order.
func (s *SignalingService) NewAnswer(ctx context.Context, conn domain.ConnectionID, offererID domain.DisplayID, answer domain.Payload) error {
	s.mu.Lock()
	display, ok := s.registry.DisplayID(conn)
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotRegistered
	}
	neg, err := s.store.AttachAnswer(offererID, answer, display, s.now())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("answer for %q: %w", offererID, err)
	}
	s.mu.Unlock()

	out := []domain.Delivery{
		{To: conn, Event: domain.NewCandidatesEvent(neg.OffererCandidates)},
		{To: neg.OriginConnectionID, Event: domain.NewNegotiationEvent(domain.EventAnswerResponse, neg)},
		{To: conn, Event: domain.NewNegotiationEvent(domain.EventAnswerConfirmation, neg)},
	}

	log.Debug().
		Str("offerer_id", offererID.String()).
		Str("answerer_id", display.String()).
		Int("offerer_candidates", len(neg.OffererCandidates)).
		Msg("New answer")

	s.dispatch(ctx, out)
	return nil
}

// IceCandidate stores a candidate and forwards it to the counterpart when
// one is connected. peer may be empty, in which case the sender's own
// display id is used; any other value must match it.
func (s *SignalingService) IceCandidate(ctx context.Context, conn domain.ConnectionID, isOfferer bool, peer domain.DisplayID, candidate domain.Payload) error {
	if domain.IsEmpty(candidate) {
		return fmt.Errorf("%w: empty candidate", domain.ErrInvalidMessage)
	}

	s.mu.Lock()
	display, ok := s.registry.DisplayID(conn)
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotRegistered
	}
	if peer != "" && peer != display {
		s.mu.Unlock()
		return fmt.Errorf("%w: candidate for %q sent by %q", domain.ErrInvalidMessage, peer, display)
	}
	role := domain.RoleOf(isOfferer)
	target, ok, err := s.router.Route(candidate, display, role, s.now())
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s candidate from %q: %w", role, display, err)
	}
	if !ok {
		log.Debug().Str("display_id", display.String()).Str("role", role.String()).Msg("Candidate stored, counterpart unreachable")
		return nil
	}

	s.dispatch(ctx, []domain.Delivery{{To: target, Event: domain.NewCandidateEvent(candidate)}})
	return nil
}

// ExpireIdle drops negotiations idle past the configured TTL.
func (s *SignalingService) ExpireIdle(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	expired := s.store.ExpireIdle(s.now().Add(-s.ttl))
	s.mu.Unlock()

	for _, id := range expired {
		log.Info().Str("offerer_id", id.String()).Msg("Negotiation expired")
	}
	return len(expired)
}

// RunJanitor sweeps idle negotiations until ctx is done.
func (s *SignalingService) RunJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 4
	if interval < minJanitorInterval {
		interval = minJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdle(ctx)
		}
	}
}

type Stats struct {
	Connections  int
	Negotiations int
}

func (s *SignalingService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Connections:  s.registry.Len(),
		Negotiations: s.store.Len(),
	}
}

// dispatch must be called without s.mu held. Failures are logged and never
// roll back state.
func (s *SignalingService) dispatch(ctx context.Context, out []domain.Delivery) {
	for _, d := range out {
		if err := s.gateway.Deliver(ctx, d.To, d.Event); err != nil {
			l := log.Warn()
			if !errors.Is(err, domain.ErrSendFailed) {
				l = log.Error()
			}
			l.Err(err).
				Str("connection_id", d.To.String()).
				Str("event", string(d.Event.Type)).
				Msg("Failed to deliver event")
		}
	}
}
