package committee

import "testing"

func TestMotionPrecedenceTable(t *testing.T) {
	cases := []struct {
		motion MotionType
		rank   int
	}{
		{MotionExtendUnmoderated, 1},
		{MotionExtendModerated, 2},
		{MotionCloseModerated, 2},
		{MotionOpenUnmoderated, 4},
		{MotionOpenModerated, 5},
		{MotionStrawpoll, 6},
		{MotionIntroduceDraftResolution, 7},
		{MotionIntroduceAmendment, 8},
		{MotionSuspendSpeakersList, 9},
		{MotionOpenDebate, 10},
		{MotionSuspendDebate, 10},
		{MotionResumeDebate, 10},
		{MotionCloseDebate, 10},
		{MotionVoteOnResolution, 10},
		{MotionReorderDraftResolutions, 11},
	}

	for _, tc := range cases {
		if got := tc.motion.Precedence(); got != tc.rank {
			t.Errorf("%s: expected precedence %d, got %d", tc.motion, tc.rank, got)
		}
	}
}

func TestUnknownMotionTypeSentinel(t *testing.T) {
	unknown := MotionType("PointOfPersonalPrivilege")
	if got := unknown.Precedence(); got != 69 {
		t.Errorf("expected sentinel 69, got %d", got)
	}
	if unknown.Known() {
		t.Error("unknown type reported as known")
	}
	if unknown.ActionVerb() != "" {
		t.Errorf("unknown type should have no verb, got %q", unknown.ActionVerb())
	}
}

func TestMotionRequirements(t *testing.T) {
	if !MotionOpenModerated.HasDetail() || !MotionOpenModerated.HasDuration() || !MotionOpenModerated.HasSpeakers() {
		t.Error("OpenModerated should require detail, duration and speaker time")
	}
	if MotionCloseModerated.HasDuration() {
		t.Error("CloseModerated should not require a duration")
	}
	if !MotionIntroduceDraftResolution.RequiresSeconder() {
		t.Error("IntroduceDraftResolution should require a seconder")
	}
	if MotionVoteOnResolution.Procedural() {
		t.Error("VoteOnResolution is substantive, abstentions are allowed")
	}
	if !MotionStrawpoll.Procedural() {
		t.Error("Strawpoll is procedural")
	}
}

func TestMotionTypesClosedSet(t *testing.T) {
	types := MotionTypes()
	if len(types) != 15 {
		t.Fatalf("expected 15 motion types, got %d", len(types))
	}
	seen := map[MotionType]bool{}
	prev := 0
	for _, mt := range types {
		if seen[mt] {
			t.Errorf("duplicate motion type %s", mt)
		}
		seen[mt] = true
		if !mt.Known() {
			t.Errorf("%s missing from metadata table", mt)
		}
		if rank := mt.Precedence(); rank < prev {
			t.Errorf("MotionTypes not in ascending precedence order at %s", mt)
		} else {
			prev = rank
		}
	}
}

func TestUnitSeconds(t *testing.T) {
	if UnitMinutes.Seconds() != 60 {
		t.Errorf("expected 60, got %d", UnitMinutes.Seconds())
	}
	if UnitSeconds.Seconds() != 1 {
		t.Errorf("expected 1, got %d", UnitSeconds.Seconds())
	}
	m := MotionData{CaucusDuration: 10, CaucusUnit: UnitMinutes}
	if m.CaucusSeconds() != 600 {
		t.Errorf("expected 600, got %d", m.CaucusSeconds())
	}
}
