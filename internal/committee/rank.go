package committee

import "sort"

// Rank orders the pending motion set for display. The sort key is the
// tuple (precedence rank, effective caucus seconds) ascending, with the
// whole sequence then reversed, so the visible order is descending by
// rank then duration. Both steps collapse into one stable descending
// comparator so that motions with identical tuples keep their insertion
// order, which is the natural order of their push keys.
//
// Rank is a pure function of its input: the output never depends on prior
// calls and is never persisted.
func Rank(motions map[string]MotionData) []string {
	keys := sortedKeys(motions)
	sort.SliceStable(keys, func(i, j int) bool {
		a := motions[keys[i]]
		b := motions[keys[j]]
		if ra, rb := a.Type.Precedence(), b.Type.Precedence(); ra != rb {
			return ra > rb
		}
		return a.CaucusSeconds() > b.CaucusSeconds()
	})
	return keys
}
