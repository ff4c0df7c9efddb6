package align

import (
	"github.com/chrisdreid/autoflow/internal/schema"
)

// DefaultSizeGuard caps the DP table at n*m cells before falling back to
// positional truncate-or-pad.
const DefaultSizeGuard = 2000

// Slot is one widget position: its schema name and, when the library knows
// the node type, its parameter spec.
type Slot struct {
	Name string
	Spec *schema.Spec
}

// Slots returns the widget slots for a node type, in schema declaration
// order. It fails with schema.ErrUnknownType for types the library has never
// heard of.
func Slots(lib schema.Library, classType string) ([]Slot, error) {
	names, err := lib.WidgetNames(classType)
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, len(names))
	for i, name := range names {
		slots[i] = Slot{Name: name, Spec: lib.WidgetSpec(classType, name)}
	}
	return slots, nil
}

// Alignment scoring. Skipping a stored value is cheap, leaving a slot on its
// default is slightly worse, and forcing a value into a slot it cannot fit
// costs more than either.
const (
	skipPenalty     = 1
	missingPenalty  = 2
	matchScore      = 2
	mismatchPenalty = 6
)

type action uint8

const (
	actNone action = iota
	actSkip
	actMissing
	actMatch
)

type step struct {
	pi, pj int
	act    action
}

// Values aligns stored against slots and returns exactly one value per slot.
// Slots no stored value maps to receive their schema default. A sizeGuard
// <= 0 uses DefaultSizeGuard; when n*m exceeds the guard the stored list is
// truncated or default-padded positionally instead.
func Values(slots []Slot, stored []any, sizeGuard int) []any {
	n := len(slots)
	m := len(stored)
	if n == 0 {
		return []any{}
	}

	defaults := make([]any, n)
	for i, slot := range slots {
		defaults[i] = slot.Spec.Default()
	}

	if sizeGuard <= 0 {
		sizeGuard = DefaultSizeGuard
	}
	if n*m > sizeGuard {
		out := make([]any, n)
		for i := range out {
			if i < m {
				out[i] = stored[i]
			} else {
				out[i] = defaults[i]
			}
		}
		return out
	}

	const negInf = int(-1) << 30
	dp := make([][]int, n+1)
	back := make([][]step, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		back[i] = make([]step, m+1)
		for j := range dp[i] {
			dp[i][j] = negInf
		}
	}

	dp[0][0] = 0
	for j := 1; j <= m; j++ {
		dp[0][j] = dp[0][j-1] - skipPenalty
		back[0][j] = step{0, j - 1, actSkip}
	}
	for i := 1; i <= n; i++ {
		dp[i][0] = dp[i-1][0] - missingPenalty
		back[i][0] = step{i - 1, 0, actMissing}
		for j := 1; j <= m; j++ {
			best := dp[i][j]
			bestStep := back[i][j]

			if v := dp[i][j-1] - skipPenalty; v > best {
				best = v
				bestStep = step{i, j - 1, actSkip}
			}
			if v := dp[i-1][j] - missingPenalty; v > best {
				best = v
				bestStep = step{i - 1, j, actMissing}
			}
			delta := -mismatchPenalty
			if slots[i-1].Spec.Compatible(stored[j-1]) {
				delta = matchScore
			}
			if v := dp[i-1][j-1] + delta; v > best {
				best = v
				bestStep = step{i - 1, j - 1, actMatch}
			}

			dp[i][j] = best
			back[i][j] = bestStep
		}
	}

	aligned := make([]any, n)
	for i, j := n, m; i > 0 || j > 0; {
		s := back[i][j]
		if s.act == actNone {
			break
		}
		switch s.act {
		case actMatch:
			aligned[i-1] = stored[j-1]
		case actMissing:
			aligned[i-1] = defaults[i-1]
		}
		i, j = s.pi, s.pj
	}
	for k := range aligned {
		if aligned[k] == nil {
			aligned[k] = defaults[k]
		}
	}
	return aligned
}
