// Package profile implements the profile representation of §3/§4.8: an
// immutable DAG of null and absorbing states over an arena of indices,
// carrying per-state alignment-path fragments and sequence coordinates,
// plus the operations (leftMultiply, getTrans, alignColumn,
// calcSumPathAbsorbProbs, addReadyStates) that the DP and reconstruction
// layers build on.
package profile

import (
	"fmt"

	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/internal/errs"
	"github.com/BurntSushi/profalign/numeric"
)

// FastSeq is the minimal external sequence collaborator the core reads
// from: a name and a character string, tokenisable against a caller-
// supplied alphabet.
type FastSeq interface {
	Name() string
	Seq() string
	// Tokens maps every character to [0,A) against alphabet; a wildcard
	// maps to every index with equal log-weight (callers see this via
	// the profile's lpAbsorb row being uniform, not via the token
	// itself). Tokens returns an error if any character cannot be
	// resolved, even as a wildcard.
	Tokens(alphabet string) ([]int, error)
}

// Profile is an immutable state/transition graph over one or more
// descendant rows. The zero value is not useful; build one with
// NewLeaf or via the dp package's ForwardMatrix/BackwardMatrix.
type Profile struct {
	Name       string
	Components int
	AlphSize   int

	State []State
	Trans []Transition

	// Seq holds, per row, the residue characters a leaf profile (or a
	// profile descended from one) can look up by SeqCoords when
	// rendering alignColumn; internal-node profiles carry no entry for
	// rows they don't have concrete residues for.
	Seq map[alignpath.Row]string

	Meta map[string]string
}

// Size returns the number of states in p, including START and END.
func (p *Profile) Size() int { return len(p.State) }

const wildcardChar = 'X'
const gapChar = '-'

// NewLeaf constructs the leaf profile for a single sequence occupying
// row: a linear chain START -> r1 -> r2 -> ... -> rn -> END with
// unit-probability transitions, one absorbing state per residue.
func NewLeaf(components int, alphabet string, seq FastSeq, row alignpath.Row) (*Profile, error) {
	toks, err := seq.Tokens(alphabet)
	if err != nil {
		return nil, errs.Wrap(err, "tokenising leaf sequence "+seq.Name())
	}
	alphSize := len(alphabet)
	n := len(toks)

	p := &Profile{
		Name:       seq.Name(),
		Components: components,
		AlphSize:   alphSize,
		State:      make([]State, n+2),
		Trans:      make([]Transition, n+1),
		Seq:        map[alignpath.Row]string{row: seq.Seq()},
	}

	p.State[0] = State{Name: "START", SeqCoords: SeqCoords{row: 0}}
	p.State[n+1] = State{Name: "END", SeqCoords: SeqCoords{row: n}}

	residues := []rune(seq.Seq())
	for pos := 0; pos <= n; pos++ {
		ti := TransIndex(pos)
		p.Trans[ti] = Transition{Src: StateIndex(pos), Dest: StateIndex(pos + 1), LpTrans: 0}
		if pos == n {
			p.State[pos].NullOut = append(p.State[pos].NullOut, ti)
		} else {
			p.State[pos].AbsorbOut = append(p.State[pos].AbsorbOut, ti)
		}
		p.State[pos+1].In = append(p.State[pos+1].In, ti)

		if pos < n {
			s := &p.State[pos+1]
			s.Name = fmt.Sprintf("%c%d", residues[pos], pos+1)
			s.AlignPath = alignpath.AlignPath{row: alignpath.BitSequence{true}}
			s.SeqCoords = SeqCoords{row: pos + 1}

			s.LpAbsorb = make([][]float64, components)
			tok := toks[pos]
			for c := 0; c < components; c++ {
				row := make([]float64, alphSize)
				for a := range row {
					row[a] = numeric.NegInf
				}
				if tok < 0 {
					for a := range row {
						row[a] = 0
					}
				} else {
					row[tok] = 0
				}
				s.LpAbsorb[c] = row
			}
		}
	}

	if err := p.AssertSeqCoordsConsistent(); err != nil {
		return nil, err
	}
	if err := p.AssertAllStatesWaitOrReady(); err != nil {
		return nil, err
	}
	return p, nil
}

// AssertSeqCoordsConsistent checks, for every transition (u,v,path,lp)
// and every row r, that SeqCoords[v][r] == SeqCoords[u][r] +
// residuesInRow(path[r]) + residuesInRow(State[v].AlignPath[r]).
func (p *Profile) AssertSeqCoordsConsistent() error {
	for ti, t := range p.Trans {
		src := p.State[t.Src].SeqCoords
		dest := p.State[t.Dest]
		want := map[alignpath.Row]int{}
		for r, n := range src {
			want[r] = n
		}
		for r, bits := range t.AlignPath {
			want[r] += alignpath.ResiduesInRow(bits)
		}
		for r, bits := range dest.AlignPath {
			want[r] += alignpath.ResiduesInRow(bits)
		}
		for r, got := range dest.SeqCoords {
			if want[r] != got {
				return errs.Numericf(
					"transition #%d (%d -> %d): seqCoord row %d = %d, want %d (src %d + transPath %d + destPath %d)",
					ti, t.Src, t.Dest, r, got, want[r], src[r],
					alignpath.ResiduesInRowOf(t.AlignPath, r), alignpath.ResiduesInRowOf(dest.AlignPath, r))
			}
		}
	}
	return nil
}

// AssertAllStatesWaitOrReady checks that every state is Ready or Wait.
func (p *Profile) AssertAllStatesWaitOrReady() error {
	for i, s := range p.State {
		if !s.IsWaitOrReady() {
			return errs.Numericf(
				"state %d (%s) has %d null and %d absorbing outgoing transitions: neither Wait nor Ready",
				i, s.Name, len(s.NullOut), len(s.AbsorbOut))
		}
	}
	return nil
}
