package domain

type EventType string

const (
	EventAvailableOffers       EventType = "availableOffers"
	EventNewOfferAwaiting      EventType = "newOfferAwaiting"
	EventExistingIceCandidates EventType = "existingIceCandidates"
	EventAnswerResponse        EventType = "answerResponse"
	EventAnswerConfirmation    EventType = "answerConfirmation"
	EventReceivedIceCandidate  EventType = "receivedIceCandidate"
)

// Event is one coordinator → peer message. Which field is set depends on Type.
type Event struct {
	Type         EventType
	Negotiations []Negotiation
	Negotiation  Negotiation
	Candidates   []Payload
	Candidate    Payload
}

func NewOffersEvent(t EventType, negs []Negotiation) Event {
	return Event{Type: t, Negotiations: negs}
}

func NewNegotiationEvent(t EventType, neg Negotiation) Event {
	return Event{Type: t, Negotiation: neg}
}

func NewCandidatesEvent(candidates []Payload) Event {
	return Event{Type: EventExistingIceCandidates, Candidates: candidates}
}

func NewCandidateEvent(candidate Payload) Event {
	return Event{Type: EventReceivedIceCandidate, Candidate: candidate}
}

// Delivery addresses an Event to a single connection.
type Delivery struct {
	To    ConnectionID
	Event Event
}
