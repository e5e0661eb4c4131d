package memory

import (
	"sort"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

// NegotiationStore is not safe for concurrent use.
type NegotiationStore struct {
	byOfferer map[domain.DisplayID]*domain.Negotiation
	// answerer display id -> offerer display id of the negotiation it answered last
	byAnswerer map[domain.DisplayID]domain.DisplayID
}

func NewNegotiationStore() *NegotiationStore {
	return &NegotiationStore{
		byOfferer:  make(map[domain.DisplayID]*domain.Negotiation),
		byAnswerer: make(map[domain.DisplayID]domain.DisplayID),
	}
}

// PutOffer replaces any negotiation already held for neg.OffererID,
// candidates included.
func (s *NegotiationStore) PutOffer(neg domain.Negotiation) bool {
	_, replaced := s.byOfferer[neg.OffererID]
	if replaced {
		s.unindex(neg.OffererID)
	}
	stored := neg.Clone()
	s.byOfferer[neg.OffererID] = &stored
	return replaced
}

func (s *NegotiationStore) AttachAnswer(offererID domain.DisplayID, answer domain.Payload, answererID domain.DisplayID, now time.Time) (domain.Negotiation, error) {
	neg, ok := s.byOfferer[offererID]
	if !ok {
		return domain.Negotiation{}, domain.ErrNegotiationNotFound
	}
	if err := neg.AttachAnswer(answer, answererID, now); err != nil {
		return domain.Negotiation{}, err
	}
	s.byAnswerer[answererID] = offererID
	return neg.Clone(), nil
}

func (s *NegotiationStore) AppendCandidate(role domain.Role, peer domain.DisplayID, candidate domain.Payload, now time.Time) (domain.Negotiation, error) {
	neg := s.lookup(role, peer)
	if neg == nil {
		return domain.Negotiation{}, domain.ErrNegotiationNotFound
	}
	neg.AppendCandidate(role, candidate, now)
	return neg.Clone(), nil
}

func (s *NegotiationStore) lookup(role domain.Role, peer domain.DisplayID) *domain.Negotiation {
	if role == domain.RoleOfferer {
		return s.byOfferer[peer]
	}
	offererID, ok := s.byAnswerer[peer]
	if !ok {
		return nil
	}
	neg, ok := s.byOfferer[offererID]
	if !ok || neg.AnswererID != peer {
		return nil
	}
	return neg
}

func (s *NegotiationStore) Get(offererID domain.DisplayID) (domain.Negotiation, bool) {
	neg, ok := s.byOfferer[offererID]
	if !ok {
		return domain.Negotiation{}, false
	}
	return neg.Clone(), true
}

func (s *NegotiationStore) DropByOfferer(offererID domain.DisplayID) bool {
	if _, ok := s.byOfferer[offererID]; !ok {
		return false
	}
	s.unindex(offererID)
	delete(s.byOfferer, offererID)
	return true
}

// Pending returns unanswered negotiations, oldest first.
func (s *NegotiationStore) Pending() []domain.Negotiation {
	out := make([]domain.Negotiation, 0, len(s.byOfferer))
	for _, neg := range s.byOfferer {
		if !neg.Answered() {
			out = append(out, neg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OffererID < out[j].OffererID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ExpireIdle drops every negotiation last touched before the cutoff and
// returns their offerer ids.
func (s *NegotiationStore) ExpireIdle(before time.Time) []domain.DisplayID {
	var expired []domain.DisplayID
	for id, neg := range s.byOfferer {
		if neg.UpdatedAt.Before(before) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.DropByOfferer(id)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}

func (s *NegotiationStore) Len() int {
	return len(s.byOfferer)
}

func (s *NegotiationStore) unindex(offererID domain.DisplayID) {
	neg, ok := s.byOfferer[offererID]
	if !ok || !neg.Answered() {
		return
	}
	if s.byAnswerer[neg.AnswererID] == offererID {
		delete(s.byAnswerer, neg.AnswererID)
	}
}
