package committee

import "testing"

func TestThresholdsCalibration(t *testing.T) {
	// Three members, two with voting rank.
	members := map[string]Member{
		"m1": {Name: "France", Present: true, Voting: true},
		"m2": {Name: "Ghana", Present: true, Voting: true},
		"m3": {Name: "Observer Org", Present: true, Voting: false},
	}

	got := Thresholds(members)
	want := Stats{Voting: 2, Quorum: 1, DraftResolutionThreshold: 1, AmendmentThreshold: 1}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestThresholdsAbsentMembersDoNotCount(t *testing.T) {
	members := map[string]Member{
		"m1": {Name: "France", Present: true, Voting: true},
		"m2": {Name: "Ghana", Present: false, Voting: true},
	}

	if got := Thresholds(members); got.Voting != 1 {
		t.Errorf("expected 1 voting member, got %d", got.Voting)
	}
}

func TestThresholdsEmptyCommittee(t *testing.T) {
	got := Thresholds(nil)
	want := Stats{}
	if got != want {
		t.Errorf("expected zero stats, got %+v", got)
	}
}

func TestThresholdsRoundUp(t *testing.T) {
	members := map[string]Member{}
	for i := 0; i < 11; i++ {
		members[string(rune('a'+i))] = Member{Present: true, Voting: true}
	}

	got := Thresholds(members)
	want := Stats{Voting: 11, Quorum: 6, DraftResolutionThreshold: 3, AmendmentThreshold: 2}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
