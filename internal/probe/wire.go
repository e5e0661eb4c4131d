package probe

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

const (
	typeNewOffer              = "newOffer"
	typeNewAnswer             = "newAnswer"
	typeIceCandidate          = "iceCandidate"
	typeAvailableOffers       = "availableOffers"
	typeNewOfferAwaiting      = "newOfferAwaiting"
	typeExistingIceCandidates = "existingIceCandidates"
	typeAnswerResponse        = "answerResponse"
	typeAnswerConfirmation    = "answerConfirmation"
	typeReceivedIceCandidate  = "receivedIceCandidate"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type negotiation struct {
	OffererID  string          `json:"offererId"`
	Offer      json.RawMessage `json:"offer"`
	AnswererID *string         `json:"answererId"`
	Answer     json.RawMessage `json:"answer"`
}

type newAnswer struct {
	OffererID string                    `json:"offererId"`
	Answer    webrtc.SessionDescription `json:"answer"`
}

type iceCandidate struct {
	IsOfferer     bool                    `json:"isOfferer"`
	PeerDisplayID string                  `json:"peerDisplayId"`
	Candidate     webrtc.ICECandidateInit `json:"candidate"`
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(envelope{Type: typ, Payload: raw})
}

// findOffer returns the offer published by offererID in an offers payload.
func findOffer(payload json.RawMessage, offererID string) (webrtc.SessionDescription, bool, error) {
	var negs []negotiation
	if err := json.Unmarshal(payload, &negs); err != nil {
		return webrtc.SessionDescription{}, false, fmt.Errorf("decode offers: %w", err)
	}
	for _, n := range negs {
		if n.OffererID != offererID {
			continue
		}
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(n.Offer, &sd); err != nil {
			return webrtc.SessionDescription{}, false, fmt.Errorf("decode offer from %s: %w", offererID, err)
		}
		return sd, true, nil
	}
	return webrtc.SessionDescription{}, false, nil
}

func decodeAnswer(payload json.RawMessage) (webrtc.SessionDescription, error) {
	var n negotiation
	if err := json.Unmarshal(payload, &n); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decode answer response: %w", err)
	}
	if len(n.Answer) == 0 || string(n.Answer) == "null" {
		return webrtc.SessionDescription{}, fmt.Errorf("answer response from %s carries no answer", n.OffererID)
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(n.Answer, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decode answer: %w", err)
	}
	return sd, nil
}

func decodeCandidates(payload json.RawMessage) ([]webrtc.ICECandidateInit, error) {
	var out []webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return out, nil
}

func decodeCandidate(payload json.RawMessage) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, fmt.Errorf("decode candidate: %w", err)
	}
	return c, nil
}
