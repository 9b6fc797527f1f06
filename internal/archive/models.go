package archive

import "time"

type SessionRecord struct {
	ID       string
	Name     string
	Chair    string
	Topic    string
	ClosedAt time.Time
}

type MotionRecord struct {
	ID             string
	SessionID      string
	Proposal       string
	Proposer       string
	Seconder       string
	Type           string
	CaucusSeconds  int
	SpeakerSeconds int
	// Position is the motion's place in the ranked order at close time.
	Position int
}

type SpeechRecord struct {
	ID        string
	SessionID string
	Caucus    string
	Who       string
	Stance    string
	Duration  int
	Position  int
}

type ResolutionRecord struct {
	ID        string
	SessionID string
	Name      string
	Proposer  string
	Seconder  string
	Status    string
	Text      string
}
