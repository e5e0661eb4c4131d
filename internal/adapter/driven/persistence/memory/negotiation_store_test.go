package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

var t0 = time.Unix(1700000000, 0)

func offer(t *testing.T, id domain.DisplayID, sdp string, at time.Time) domain.Negotiation {
	t.Helper()
	neg, err := domain.NewNegotiation(id, domain.Payload(`{"sdp":"`+sdp+`"}`), domain.NewConnectionID(), at)
	if err != nil {
		t.Fatalf("NewNegotiation: %v", err)
	}
	return *neg
}

func TestNegotiationStore_ReofferReplacesWholesale(t *testing.T) {
	s := NewNegotiationStore()
	if s.PutOffer(offer(t, "A", "O1", t0)) {
		t.Fatalf("first offer reported as replacement")
	}
	if _, err := s.AppendCandidate(domain.RoleOfferer, "A", domain.Payload(`"c1"`), t0); err != nil {
		t.Fatalf("AppendCandidate: %v", err)
	}

	if !s.PutOffer(offer(t, "A", "O2", t0.Add(time.Second))) {
		t.Fatalf("second offer not reported as replacement")
	}
	got, ok := s.Get("A")
	if !ok {
		t.Fatalf("negotiation missing after reoffer")
	}
	if string(got.Offer) != `{"sdp":"O2"}` {
		t.Fatalf("offer=%s, want O2", got.Offer)
	}
	if len(got.OffererCandidates) != 0 {
		t.Fatalf("candidates survived reoffer: %d", len(got.OffererCandidates))
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1", s.Len())
	}
}

func TestNegotiationStore_AttachAnswer(t *testing.T) {
	s := NewNegotiationStore()

	_, err := s.AttachAnswer("A", domain.Payload(`{}`), "B", t0)
	if !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("err=%v, want %v", err, domain.ErrNegotiationNotFound)
	}

	s.PutOffer(offer(t, "A", "O1", t0))
	s.AppendCandidate(domain.RoleOfferer, "A", domain.Payload(`"c1"`), t0)
	s.AppendCandidate(domain.RoleOfferer, "A", domain.Payload(`"c2"`), t0)

	neg, err := s.AttachAnswer("A", domain.Payload(`{"sdp":"ANS1"}`), "B", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("AttachAnswer: %v", err)
	}
	if neg.AnswererID != "B" || string(neg.Answer) != `{"sdp":"ANS1"}` {
		t.Fatalf("answerer not recorded: %+v", neg)
	}
	if len(neg.OffererCandidates) != 2 || string(neg.OffererCandidates[0]) != `"c1"` || string(neg.OffererCandidates[1]) != `"c2"` {
		t.Fatalf("offerer candidates=%q", neg.OffererCandidates)
	}
	if neg.State() != domain.StateAnswered {
		t.Fatalf("state=%s", neg.State())
	}

	_, err = s.AttachAnswer("A", domain.Payload(`{}`), "C", t0)
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("second answer err=%v, want %v", err, domain.ErrAlreadyAnswered)
	}
}

func TestNegotiationStore_AppendCandidateByRole(t *testing.T) {
	s := NewNegotiationStore()
	s.PutOffer(offer(t, "A", "O1", t0))

	if _, err := s.AppendCandidate(domain.RoleAnswerer, "B", domain.Payload(`"b1"`), t0); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("answerer candidate before answer: err=%v", err)
	}
	if _, err := s.AppendCandidate(domain.RoleOfferer, "Z", domain.Payload(`"z"`), t0); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("unknown offerer: err=%v", err)
	}

	s.AttachAnswer("A", domain.Payload(`{}`), "B", t0)
	neg, err := s.AppendCandidate(domain.RoleAnswerer, "B", domain.Payload(`"b1"`), t0)
	if err != nil {
		t.Fatalf("AppendCandidate: %v", err)
	}
	if len(neg.AnswererCandidates) != 1 || len(neg.OffererCandidates) != 0 {
		t.Fatalf("candidate appended to wrong side: %+v", neg)
	}
}

func TestNegotiationStore_ReturnsCopies(t *testing.T) {
	s := NewNegotiationStore()
	s.PutOffer(offer(t, "A", "O1", t0))
	neg, _ := s.AppendCandidate(domain.RoleOfferer, "A", domain.Payload(`"c1"`), t0)
	neg.OffererCandidates[0][1] = 'x'
	neg.OffererCandidates = append(neg.OffererCandidates, domain.Payload(`"junk"`))

	got, _ := s.Get("A")
	if len(got.OffererCandidates) != 1 || string(got.OffererCandidates[0]) != `"c1"` {
		t.Fatalf("store aliased caller copy: %q", got.OffererCandidates)
	}
}

func TestNegotiationStore_DropUnindexesAnswerer(t *testing.T) {
	s := NewNegotiationStore()
	s.PutOffer(offer(t, "A", "O1", t0))
	s.AttachAnswer("A", domain.Payload(`{}`), "B", t0)

	if !s.DropByOfferer("A") {
		t.Fatalf("DropByOfferer returned false")
	}
	if s.DropByOfferer("A") {
		t.Fatalf("second drop returned true")
	}
	s.PutOffer(offer(t, "A", "O2", t0))
	if _, err := s.AppendCandidate(domain.RoleAnswerer, "B", domain.Payload(`"b"`), t0); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("stale answerer index: err=%v", err)
	}
}

func TestNegotiationStore_PendingAndExpiry(t *testing.T) {
	s := NewNegotiationStore()
	s.PutOffer(offer(t, "B", "OB", t0.Add(2*time.Second)))
	s.PutOffer(offer(t, "A", "OA", t0))
	s.PutOffer(offer(t, "C", "OC", t0.Add(time.Second)))
	s.AttachAnswer("C", domain.Payload(`{}`), "D", t0.Add(10*time.Second))

	pending := s.Pending()
	if len(pending) != 2 || pending[0].OffererID != "A" || pending[1].OffererID != "B" {
		t.Fatalf("pending=%+v", pending)
	}

	expired := s.ExpireIdle(t0.Add(5 * time.Second))
	if len(expired) != 2 || expired[0] != "A" || expired[1] != "B" {
		t.Fatalf("expired=%v", expired)
	}
	if _, ok := s.Get("C"); !ok {
		t.Fatalf("recently touched negotiation expired")
	}
}
