// Package committee holds the procedural domain model of a session: timers,
// caucuses, speaker events, motions and the pure logic that orders them.
package committee

import "sort"

type Stance string

const (
	StanceFor     Stance = "For"
	StanceNeutral Stance = "Neutral"
	StanceAgainst Stance = "Against"
)

type Unit string

const (
	UnitMinutes Unit = "min"
	UnitSeconds Unit = "sec"
)

// Seconds returns the multiplier for a duration expressed in this unit.
func (u Unit) Seconds() int {
	if u == UnitMinutes {
		return 60
	}
	return 1
}

// TimerState is the shared countdown clock. Elapsed only grows while
// Ticking; Remaining may go negative (overtime) and is still displayed.
type TimerState struct {
	Elapsed   int  `json:"elapsed"`
	Remaining int  `json:"remaining"`
	Ticking   bool `json:"ticking"`
}

func DefaultTimer() TimerState {
	return TimerState{Elapsed: 0, Remaining: 60, Ticking: false}
}

// SpeakerEvent is one entry on a speaker list. Immutable once created;
// identified by its store push key.
type SpeakerEvent struct {
	Who      string `json:"who"`
	Stance   Stance `json:"stance"`
	Duration int    `json:"duration"`
}

type CaucusStatus string

const (
	CaucusOpen   CaucusStatus = "Open"
	CaucusClosed CaucusStatus = "Closed"
)

// CaucusState is a moderated caucus: topic, two timers, the member
// currently speaking and the ordered queue behind them. Queue and History
// are keyed by store push keys, so natural key order is insertion order.
type CaucusState struct {
	Topic        string                  `json:"topic"`
	Status       CaucusStatus            `json:"status"`
	CaucusTimer  TimerState              `json:"caucusTimer"`
	SpeakerTimer TimerState              `json:"speakerTimer"`
	Speaking     *SpeakerEvent           `json:"speaking,omitempty"`
	Queue        map[string]SpeakerEvent `json:"queue,omitempty"`
	History      map[string]SpeakerEvent `json:"history,omitempty"`
}

func DefaultCaucus(topic string) CaucusState {
	return CaucusState{
		Topic:        topic,
		Status:       CaucusOpen,
		CaucusTimer:  DefaultTimer(),
		SpeakerTimer: DefaultTimer(),
	}
}

// Clone returns a value copy sharing nothing with the receiver. Snapshots
// cross trust boundaries as copies so no consumer can mutate another's view.
func (c CaucusState) Clone() CaucusState {
	out := c
	if c.Speaking != nil {
		speaking := *c.Speaking
		out.Speaking = &speaking
	}
	if c.Queue != nil {
		out.Queue = make(map[string]SpeakerEvent, len(c.Queue))
		for k, v := range c.Queue {
			out.Queue[k] = v
		}
	}
	if c.History != nil {
		out.History = make(map[string]SpeakerEvent, len(c.History))
		for k, v := range c.History {
			out.History[k] = v
		}
	}
	return out
}

// MotionData is one pending procedural motion. It carries no order field:
// position is always recomputed by Rank, never persisted.
type MotionData struct {
	Proposal        string     `json:"proposal"`
	Proposer        string     `json:"proposer"`
	Seconder        string     `json:"seconder,omitempty"`
	SpeakerDuration int        `json:"speakerDuration"`
	SpeakerUnit     Unit       `json:"speakerUnit"`
	CaucusDuration  int        `json:"caucusDuration"`
	CaucusUnit      Unit       `json:"caucusUnit"`
	Type            MotionType `json:"type"`
}

func DefaultMotion(proposer string) MotionData {
	return MotionData{
		Proposer:        proposer,
		SpeakerDuration: 60,
		SpeakerUnit:     UnitSeconds,
		CaucusDuration:  15,
		CaucusUnit:      UnitMinutes,
		Type:            MotionOpenUnmoderated,
	}
}

// CaucusSeconds is the motion's effective caucus length. Motions without a
// duration requirement still report their face value here.
func (m MotionData) CaucusSeconds() int {
	return m.CaucusDuration * m.CaucusUnit.Seconds()
}

func (m MotionData) SpeakerSeconds() int {
	return m.SpeakerDuration * m.SpeakerUnit.Seconds()
}

type ResolutionStatus string

const (
	ResolutionIntroduced ResolutionStatus = "Introduced"
	ResolutionPassed     ResolutionStatus = "Passed"
	ResolutionFailed     ResolutionStatus = "Failed"
)

type ResolutionData struct {
	Name     string           `json:"name"`
	Proposer string           `json:"proposer"`
	Seconder string           `json:"seconder,omitempty"`
	Status   ResolutionStatus `json:"status"`
	Text     string           `json:"text,omitempty"`
}

type Member struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Voting  bool   `json:"voting"`
}

type SessionStatus string

const (
	SessionOpen   SessionStatus = "Open"
	SessionClosed SessionStatus = "Closed"
)

// Session is the root record at sessions/{id}. Caucuses, motions, members
// and resolutions live beneath it in the document store.
type Session struct {
	Name   string        `json:"name"`
	Chair  string        `json:"chair"`
	Topic  string        `json:"topic,omitempty"`
	Status SessionStatus `json:"status"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
