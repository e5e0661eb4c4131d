package domain

// RoomSummary describes one room on the SFU.
type RoomSummary struct {
	Name            string
	NumParticipants int
}
