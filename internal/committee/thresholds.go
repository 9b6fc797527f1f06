package committee

// Stats are the voting thresholds derived from the current membership.
type Stats struct {
	Voting                   int `json:"voting"`
	Quorum                   int `json:"quorum"`
	DraftResolutionThreshold int `json:"draftResolutionThreshold"`
	AmendmentThreshold       int `json:"amendmentThreshold"`
}

// Thresholds recomputes the committee's voting math from its members.
// Only members both present and holding voting rank count. Quorum is half
// the voting membership, the draft resolution threshold a quarter, the
// amendment threshold a tenth, each rounded up.
func Thresholds(members map[string]Member) Stats {
	voting := 0
	for _, m := range members {
		if m.Present && m.Voting {
			voting++
		}
	}
	return Stats{
		Voting:                   voting,
		Quorum:                   ceilDiv(voting, 2),
		DraftResolutionThreshold: ceilDiv(voting, 4),
		AmendmentThreshold:       ceilDiv(voting, 10),
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
