package probe

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestEncode(t *testing.T) {
	frame, err := encode(typeIceCandidate, iceCandidate{
		IsOfferer:     true,
		PeerDisplayID: OffererID,
		Candidate:     webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type    string `json:"type"`
		Payload struct {
			IsOfferer     bool   `json:"isOfferer"`
			PeerDisplayID string `json:"peerDisplayId"`
			Candidate     struct {
				Candidate string `json:"candidate"`
			} `json:"candidate"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "iceCandidate" || !env.Payload.IsOfferer || env.Payload.PeerDisplayID != OffererID {
		t.Fatalf("frame = %s", frame)
	}
	if env.Payload.Candidate.Candidate == "" {
		t.Fatalf("candidate missing: %s", frame)
	}
}

func TestFindOffer(t *testing.T) {
	payload := json.RawMessage(`[
		{"offererId":"someone","offer":{"type":"offer","sdp":"v=0 other"},"answererId":null,"answer":null},
		{"offererId":"probe-offerer","offer":{"type":"offer","sdp":"v=0 mine"},"answererId":null,"answer":null}
	]`)

	sd, ok, err := findOffer(payload, OffererID)
	if err != nil || !ok {
		t.Fatalf("findOffer: ok=%v err=%v", ok, err)
	}
	if sd.Type != webrtc.SDPTypeOffer || sd.SDP != "v=0 mine" {
		t.Fatalf("offer = %+v", sd)
	}

	if _, ok, err := findOffer(payload, "nobody"); err != nil || ok {
		t.Fatalf("expected no match, ok=%v err=%v", ok, err)
	}
	if _, _, err := findOffer(json.RawMessage(`{}`), OffererID); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeAnswer(t *testing.T) {
	sd, err := decodeAnswer(json.RawMessage(`{"offererId":"probe-offerer","answererId":"probe-answerer","answer":{"type":"answer","sdp":"v=0 ans"}}`))
	if err != nil {
		t.Fatalf("decodeAnswer: %v", err)
	}
	if sd.Type != webrtc.SDPTypeAnswer || sd.SDP != "v=0 ans" {
		t.Fatalf("answer = %+v", sd)
	}

	if _, err := decodeAnswer(json.RawMessage(`{"offererId":"x","answer":null}`)); err == nil {
		t.Fatalf("expected error for missing answer")
	}
}

func TestDecodeCandidates(t *testing.T) {
	cs, err := decodeCandidates(json.RawMessage(`[{"candidate":"c1"},{"candidate":"c2"}]`))
	if err != nil {
		t.Fatalf("decodeCandidates: %v", err)
	}
	if len(cs) != 2 || cs[0].Candidate != "c1" || cs[1].Candidate != "c2" {
		t.Fatalf("candidates = %+v", cs)
	}

	c, err := decodeCandidate(json.RawMessage(`{"candidate":"c3","sdpMid":"0"}`))
	if err != nil {
		t.Fatalf("decodeCandidate: %v", err)
	}
	if c.Candidate != "c3" || c.SDPMid == nil || *c.SDPMid != "0" {
		t.Fatalf("candidate = %+v", c)
	}
}
