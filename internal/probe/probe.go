// Package probe drives two WebRTC peers through a running coordinator and
// reports whether a data channel opens between them.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	OffererID  = "probe-offerer"
	AnswererID = "probe-answerer"

	channelLabel = "probe"
	writeWait    = 10 * time.Second
)

var (
	ErrTimeout      = errors.New("data channel did not open in time")
	ErrSignalClosed = errors.New("signaling connection closed")
)

type Options struct {
	URL        string
	Secret     string
	ICEServers []string
	// Loopback gathers 127.0.0.1 candidates, for peers on a host without
	// other interfaces.
	Loopback bool
	Timeout  time.Duration

	// OffererNet and AnswererNet replace the host network stack of each
	// peer, e.g. with a pion vnet. Nil uses the host.
	OffererNet  transport.Net
	AnswererNet transport.Net
}

type Result struct {
	Elapsed            time.Duration
	OffererCandidates  int
	AnswererCandidates int
}

func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	start := time.Now()

	offAPI := newAPI(opts, opts.OffererNet)
	ansAPI := newAPI(opts, opts.AnswererNet)

	cfg := webrtc.Configuration{}
	if len(opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	}

	failc := make(chan error, 4)

	// The answerer connects first so it sees the offer either as a
	// broadcast or in its replay.
	ansClient, err := dial(ctx, opts.URL, AnswererID, opts.Secret)
	if err != nil {
		return Result{}, err
	}
	defer ansClient.close()
	ans, err := newPeer(ansAPI, cfg, AnswererID, false, ansClient, failc)
	if err != nil {
		return Result{}, err
	}
	defer ans.pc.Close()
	ans.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(ans.markOpen)
	})
	go ans.loop(ans.handleAnswerer)

	offClient, err := dial(ctx, opts.URL, OffererID, opts.Secret)
	if err != nil {
		return Result{}, err
	}
	defer offClient.close()
	off, err := newPeer(offAPI, cfg, OffererID, true, offClient, failc)
	if err != nil {
		return Result{}, err
	}
	defer off.pc.Close()
	go off.loop(off.handleOfferer)

	dc, err := off.pc.CreateDataChannel(channelLabel, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create data channel: %w", err)
	}
	dc.OnOpen(off.markOpen)

	offer, err := off.pc.CreateOffer(nil)
	if err != nil {
		return Result{}, fmt.Errorf("create offer: %w", err)
	}
	// Published before gathering starts so no candidate precedes its offer.
	if err := offClient.send(typeNewOffer, offer); err != nil {
		return Result{}, err
	}
	if err := off.pc.SetLocalDescription(offer); err != nil {
		return Result{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-off.opened:
	case err := <-failc:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ErrTimeout
	}
	select {
	case <-ans.opened:
	case err := <-failc:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ErrTimeout
	}

	res := Result{
		Elapsed:            time.Since(start),
		OffererCandidates:  int(off.sent.Load()),
		AnswererCandidates: int(ans.sent.Load()),
	}
	log.Info().
		Dur("elapsed", res.Elapsed).
		Int("offerer_candidates", res.OffererCandidates).
		Int("answerer_candidates", res.AnswererCandidates).
		Msg("Data channel open")
	return res, nil
}

func newAPI(opts Options, n transport.Net) *webrtc.API {
	se := webrtc.SettingEngine{
		LoggerFactory: newLoggerFactory(log.Logger),
	}
	se.SetIncludeLoopbackCandidate(opts.Loopback)
	if n != nil {
		se.SetNet(n)
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

type signalClient struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	incoming chan envelope
}

func dial(ctx context.Context, rawURL, display, secret string) (*signalClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("displayId", display)
	q.Set("secret", secret)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect as %s: %w", display, err)
	}
	c := &signalClient{
		conn:     conn,
		incoming: make(chan envelope, 64),
	}
	go c.readPump()
	return c, nil
}

func (c *signalClient) readPump() {
	defer close(c.incoming)
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			log.Debug().Err(err).Msg("Signaling read ended")
			return
		}
		c.incoming <- env
	}
}

func (c *signalClient) send(typ string, payload any) error {
	frame, err := encode(typ, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (c *signalClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}

type peer struct {
	display string
	offerer bool
	pc      *webrtc.PeerConnection
	client  *signalClient
	failc   chan<- error

	opened   chan struct{}
	openOnce sync.Once
	sent     atomic.Int32

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	answered  bool
}

func newPeer(api *webrtc.API, cfg webrtc.Configuration, display string, offerer bool, client *signalClient, failc chan<- error) (*peer, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	p := &peer{
		display: display,
		offerer: offerer,
		pc:      pc,
		client:  client,
		failc:   failc,
		opened:  make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.sent.Add(1)
		err := client.send(typeIceCandidate, iceCandidate{
			IsOfferer:     offerer,
			PeerDisplayID: display,
			Candidate:     c.ToJSON(),
		})
		if err != nil {
			p.fail(err)
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Debug().Str("peer", display).Str("state", state.String()).Msg("ICE state changed")
		if state == webrtc.ICEConnectionStateFailed {
			p.fail(fmt.Errorf("%s: ice connection failed", display))
		}
	})
	return p, nil
}

func (p *peer) markOpen() {
	p.openOnce.Do(func() {
		log.Debug().Str("peer", p.display).Msg("Data channel open")
		close(p.opened)
	})
}

func (p *peer) fail(err error) {
	select {
	case p.failc <- err:
	default:
	}
}

func (p *peer) loop(handle func(envelope) error) {
	failed := false
	for env := range p.client.incoming {
		if failed {
			continue
		}
		if err := handle(env); err != nil {
			p.fail(fmt.Errorf("%s: %w", p.display, err))
			failed = true
		}
	}
	if failed {
		return
	}
	select {
	case <-p.opened:
	default:
		p.fail(fmt.Errorf("%s: %w", p.display, ErrSignalClosed))
	}
}

func (p *peer) handleOfferer(env envelope) error {
	switch env.Type {
	case typeAnswerResponse:
		answer, err := decodeAnswer(env.Payload)
		if err != nil {
			return err
		}
		return p.setRemote(answer)
	case typeReceivedIceCandidate:
		c, err := decodeCandidate(env.Payload)
		if err != nil {
			return err
		}
		return p.addRemoteCandidate(c)
	}
	return nil
}

func (p *peer) handleAnswerer(env envelope) error {
	switch env.Type {
	case typeAvailableOffers, typeNewOfferAwaiting:
		offer, ok, err := findOffer(env.Payload, OffererID)
		if err != nil || !ok {
			return err
		}
		return p.answer(offer)
	case typeExistingIceCandidates:
		cs, err := decodeCandidates(env.Payload)
		if err != nil {
			return err
		}
		for _, c := range cs {
			if err := p.addRemoteCandidate(c); err != nil {
				return err
			}
		}
	case typeReceivedIceCandidate:
		c, err := decodeCandidate(env.Payload)
		if err != nil {
			return err
		}
		return p.addRemoteCandidate(c)
	case typeAnswerConfirmation:
		log.Debug().Str("peer", p.display).Msg("Answer confirmed")
	}
	return nil
}

func (p *peer) answer(offer webrtc.SessionDescription) error {
	p.mu.Lock()
	if p.answered {
		p.mu.Unlock()
		return nil
	}
	p.answered = true
	p.mu.Unlock()

	if err := p.setRemote(offer); err != nil {
		return err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	// Attached before gathering starts so the coordinator can route our
	// candidates.
	if err := p.client.send(typeNewAnswer, newAnswer{OffererID: OffererID, Answer: answer}); err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (p *peer) setRemote(sd webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSet = true
	for _, c := range p.pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}
	}
	p.pending = nil
	return nil
}

// addRemoteCandidate holds candidates that arrive before the remote
// description.
func (p *peer) addRemoteCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		return nil
	}
	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}
