package committee

// MotionType is the closed set of procedural motions a committee accepts.
type MotionType string

const (
	MotionExtendUnmoderated        MotionType = "ExtendUnmoderated"
	MotionExtendModerated          MotionType = "ExtendModerated"
	MotionCloseModerated           MotionType = "CloseModerated"
	MotionOpenUnmoderated          MotionType = "OpenUnmoderated"
	MotionOpenModerated            MotionType = "OpenModerated"
	MotionStrawpoll                MotionType = "Strawpoll"
	MotionIntroduceDraftResolution MotionType = "IntroduceDraftResolution"
	MotionIntroduceAmendment       MotionType = "IntroduceAmendment"
	MotionSuspendSpeakersList      MotionType = "SuspendSpeakersList"
	MotionOpenDebate               MotionType = "OpenDebate"
	MotionSuspendDebate            MotionType = "SuspendDebate"
	MotionResumeDebate             MotionType = "ResumeDebate"
	MotionCloseDebate              MotionType = "CloseDebate"
	MotionVoteOnResolution         MotionType = "VoteOnResolution"
	MotionReorderDraftResolutions  MotionType = "ReorderDraftResolutions"
)

// unknownPrecedence is the sentinel rank for motion types outside the
// table; it sorts behind every known type.
const unknownPrecedence = 69

type motionMeta struct {
	precedence     int
	hasDetail      bool
	hasDuration    bool
	hasSpeakers    bool
	requiresSecond bool
	procedural     bool
	verb           string
}

var motionTable = map[MotionType]motionMeta{
	MotionExtendUnmoderated:        {precedence: 1, hasDuration: true, procedural: true, verb: "Extend"},
	MotionExtendModerated:          {precedence: 2, hasDuration: true, hasSpeakers: true, procedural: true, verb: "Extend"},
	MotionCloseModerated:           {precedence: 2, procedural: true, verb: "Close"},
	MotionOpenUnmoderated:          {precedence: 4, hasDuration: true, requiresSecond: true, procedural: true, verb: "Open"},
	MotionOpenModerated:            {precedence: 5, hasDetail: true, hasDuration: true, hasSpeakers: true, requiresSecond: true, procedural: true, verb: "Open"},
	MotionStrawpoll:                {precedence: 6, hasDetail: true, procedural: true, verb: "Take"},
	MotionIntroduceDraftResolution: {precedence: 7, hasDetail: true, requiresSecond: true, procedural: true, verb: "Introduce"},
	MotionIntroduceAmendment:       {precedence: 8, hasDetail: true, requiresSecond: true, procedural: true, verb: "Introduce"},
	MotionSuspendSpeakersList:      {precedence: 9, procedural: true, verb: "Suspend"},
	MotionOpenDebate:               {precedence: 10, procedural: true, verb: "Open"},
	MotionSuspendDebate:            {precedence: 10, procedural: true, verb: "Suspend"},
	MotionResumeDebate:             {precedence: 10, procedural: true, verb: "Resume"},
	MotionCloseDebate:              {precedence: 10, procedural: true, verb: "Close"},
	MotionVoteOnResolution:         {precedence: 10, hasDetail: true, requiresSecond: true, verb: "Vote on"},
	MotionReorderDraftResolutions:  {precedence: 11, procedural: true, verb: "Reorder"},
}

// Precedence is the motion's parliamentary rank; lower numbers carry higher
// procedural priority. Unknown types report the sentinel lowest priority.
func (t MotionType) Precedence() int {
	if meta, ok := motionTable[t]; ok {
		return meta.precedence
	}
	return unknownPrecedence
}

// HasDetail reports whether the motion carries a free-text detail field.
func (t MotionType) HasDetail() bool {
	return motionTable[t].hasDetail
}

// HasDuration reports whether the motion requires a caucus duration.
func (t MotionType) HasDuration() bool {
	return motionTable[t].hasDuration
}

// HasSpeakers reports whether the motion requires a per-speaker duration.
func (t MotionType) HasSpeakers() bool {
	return motionTable[t].hasSpeakers
}

// RequiresSeconder reports whether the motion needs a second before the
// chair may entertain it.
func (t MotionType) RequiresSeconder() bool {
	return motionTable[t].requiresSecond
}

// Procedural motions cannot be abstained on.
func (t MotionType) Procedural() bool {
	return motionTable[t].procedural
}

// ActionVerb is the display verb for the motion ("Open", "Extend", ...).
func (t MotionType) ActionVerb() string {
	return motionTable[t].verb
}

// Known reports whether t is part of the closed enumeration.
func (t MotionType) Known() bool {
	_, ok := motionTable[t]
	return ok
}

// MotionTypes lists the closed enumeration in ascending precedence order.
func MotionTypes() []MotionType {
	return []MotionType{
		MotionExtendUnmoderated,
		MotionExtendModerated,
		MotionCloseModerated,
		MotionOpenUnmoderated,
		MotionOpenModerated,
		MotionStrawpoll,
		MotionIntroduceDraftResolution,
		MotionIntroduceAmendment,
		MotionSuspendSpeakersList,
		MotionOpenDebate,
		MotionSuspendDebate,
		MotionResumeDebate,
		MotionCloseDebate,
		MotionVoteOnResolution,
		MotionReorderDraftResolutions,
	}
}
