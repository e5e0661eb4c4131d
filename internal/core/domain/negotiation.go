package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is an opaque JSON value (session description or ICE candidate)
// relayed without interpretation.
type Payload = json.RawMessage

// IsEmpty reports whether p carries no value: nothing, whitespace, or a
// JSON null.
func IsEmpty(p Payload) bool {
	t := bytes.TrimSpace(p)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

type Role int

const (
	RoleOfferer Role = iota
	RoleAnswerer
)

func RoleOf(isOfferer bool) Role {
	if isOfferer {
		return RoleOfferer
	}
	return RoleAnswerer
}

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

type NegotiationState string

const (
	StateOffered  NegotiationState = "offered"
	StateAnswered NegotiationState = "answered"
)

// Negotiation is one offer/answer/candidate exchange, keyed by the offerer.
type Negotiation struct {
	OffererID          DisplayID
	Offer              Payload
	OffererCandidates  []Payload
	AnswererID         DisplayID
	Answer             Payload
	AnswererCandidates []Payload

	OriginConnectionID ConnectionID

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewNegotiation(offererID DisplayID, offer Payload, origin ConnectionID, now time.Time) (*Negotiation, error) {
	if offererID == "" {
		return nil, fmt.Errorf("%w: empty offerer id", ErrInvalidMessage)
	}
	if IsEmpty(offer) {
		return nil, fmt.Errorf("%w: empty offer", ErrInvalidMessage)
	}
	return &Negotiation{
		OffererID:          offererID,
		Offer:              clonePayload(offer),
		OffererCandidates:  []Payload{},
		AnswererCandidates: []Payload{},
		OriginConnectionID: origin,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (n *Negotiation) State() NegotiationState {
	if n.Answered() {
		return StateAnswered
	}
	return StateOffered
}

func (n *Negotiation) Answered() bool {
	return n.AnswererID != ""
}

// Counterpart returns the display id on the other side of role, empty when
// nobody has answered yet.
func (n *Negotiation) Counterpart(role Role) DisplayID {
	if role == RoleOfferer {
		return n.AnswererID
	}
	return n.OffererID
}

func (n *Negotiation) AttachAnswer(answer Payload, answererID DisplayID, now time.Time) error {
	if n.Answered() {
		return ErrAlreadyAnswered
	}
	if answererID == "" || IsEmpty(answer) {
		return fmt.Errorf("%w: empty answer", ErrInvalidMessage)
	}
	if answererID == n.OffererID {
		return fmt.Errorf("%w: %q cannot answer its own offer", ErrInvalidMessage, answererID)
	}
	n.Answer = clonePayload(answer)
	n.AnswererID = answererID
	n.UpdatedAt = now
	return nil
}

func (n *Negotiation) AppendCandidate(role Role, candidate Payload, now time.Time) {
	c := clonePayload(candidate)
	if role == RoleOfferer {
		n.OffererCandidates = append(n.OffererCandidates, c)
	} else {
		n.AnswererCandidates = append(n.AnswererCandidates, c)
	}
	n.UpdatedAt = now
}

// Clone returns a deep copy; stored records are never handed out directly.
func (n *Negotiation) Clone() Negotiation {
	c := *n
	c.Offer = clonePayload(n.Offer)
	c.Answer = clonePayload(n.Answer)
	c.OffererCandidates = clonePayloads(n.OffererCandidates)
	c.AnswererCandidates = clonePayloads(n.AnswererCandidates)
	return c
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

func clonePayloads(ps []Payload) []Payload {
	out := make([]Payload, len(ps))
	for i, p := range ps {
		out[i] = clonePayload(p)
	}
	return out
}
