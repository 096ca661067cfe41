package profile

import "github.com/BurntSushi/profalign/alignpath"

// StateIndex identifies a state within a Profile's state arena.
type StateIndex int

// TransIndex identifies a transition within a Profile's transition arena.
type TransIndex int

// SeqCoords gives, for each row a state represents, the count of
// non-gap residues consumed along any path from START to that state.
type SeqCoords map[alignpath.Row]int

// State is one node of a Profile's state graph: either Null (no
// emission, only transitions) or Absorbing (carries a per-component
// log-emission table). Ready/Wait is derived from the NullOut/AbsorbOut
// partition on demand, never stored, per the tagged-union + derived-
// classification design this package follows throughout.
type State struct {
	Name string

	// LpAbsorb[c][a] = log P(child emission a | this state, component c).
	// Nil for Null states.
	LpAbsorb [][]float64

	AlignPath alignpath.AlignPath
	SeqCoords SeqCoords

	In        []TransIndex
	NullOut   []TransIndex
	AbsorbOut []TransIndex

	Meta map[string]string
}

// IsNull reports whether s carries no emission table.
func (s *State) IsNull() bool { return s.LpAbsorb == nil }

// IsReady reports whether every outgoing transition of s goes to an
// absorbing destination.
func (s *State) IsReady() bool { return len(s.NullOut) == 0 && len(s.AbsorbOut) > 0 }

// IsWait reports whether every outgoing transition of s goes to a null
// destination.
func (s *State) IsWait() bool { return len(s.AbsorbOut) == 0 && len(s.NullOut) > 0 }

// IsWaitOrReady reports whether s satisfies the Ready/Wait invariant
// required of every state before DP (states with zero outgoing
// transitions, i.e. END, trivially satisfy it as a Wait state with an
// empty chain).
func (s *State) IsWaitOrReady() bool {
	if len(s.NullOut) == 0 && len(s.AbsorbOut) == 0 {
		return true
	}
	return s.IsReady() || s.IsWait()
}

// Transition is one edge of a Profile's state graph. LpTrans is the log
// transition probability; AlignPath describes any alignment columns
// emitted on the transition itself (deletion columns contributed by one
// side of a Pair-HMM move land here, not on either endpoint state).
type Transition struct {
	Src, Dest StateIndex
	LpTrans   float64
	AlignPath alignpath.AlignPath
}
