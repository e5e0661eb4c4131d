package http

import (
	"encoding/json"
	"fmt"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

const (
	msgAuth         = "auth"
	msgNewOffer     = "newOffer"
	msgNewAnswer    = "newAnswer"
	msgIceCandidate = "iceCandidate"
)

// envelope frames every websocket message in both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authDTO struct {
	DisplayID string `json:"displayId"`
	Secret    string `json:"secret"`
}

type newAnswerDTO struct {
	OffererID string          `json:"offererId"`
	Answer    json.RawMessage `json:"answer"`
}

type iceCandidateDTO struct {
	IsOfferer     bool            `json:"isOfferer"`
	PeerDisplayID string          `json:"peerDisplayId"`
	Candidate     json.RawMessage `json:"candidate"`
}

type negotiationDTO struct {
	OffererID          string            `json:"offererId"`
	Offer              json.RawMessage   `json:"offer"`
	OffererCandidates  []json.RawMessage `json:"offererCandidates"`
	AnswererID         *string           `json:"answererId"`
	Answer             json.RawMessage   `json:"answer"`
	AnswererCandidates []json.RawMessage `json:"answererCandidates"`
}

func toNegotiationDTO(n domain.Negotiation) negotiationDTO {
	dto := negotiationDTO{
		OffererID:          n.OffererID.String(),
		Offer:              n.Offer,
		OffererCandidates:  nonNil(n.OffererCandidates),
		Answer:             n.Answer,
		AnswererCandidates: nonNil(n.AnswererCandidates),
	}
	if n.Answered() {
		id := n.AnswererID.String()
		dto.AnswererID = &id
	}
	return dto
}

func toNegotiationDTOs(negs []domain.Negotiation) []negotiationDTO {
	out := make([]negotiationDTO, 0, len(negs))
	for _, n := range negs {
		out = append(out, toNegotiationDTO(n))
	}
	return out
}

func nonNil(ps []domain.Payload) []json.RawMessage {
	if ps == nil {
		return []json.RawMessage{}
	}
	return ps
}

func encodeEvent(evt domain.Event) ([]byte, error) {
	var payload any
	switch evt.Type {
	case domain.EventAvailableOffers, domain.EventNewOfferAwaiting:
		payload = toNegotiationDTOs(evt.Negotiations)
	case domain.EventAnswerResponse, domain.EventAnswerConfirmation:
		payload = toNegotiationDTO(evt.Negotiation)
	case domain.EventExistingIceCandidates:
		payload = nonNil(evt.Candidates)
	case domain.EventReceivedIceCandidate:
		payload = evt.Candidate
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.Type, err)
	}
	return json.Marshal(envelope{Type: string(evt.Type), Payload: raw})
}
