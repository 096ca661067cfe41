package profile

import (
	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/numeric"
)

// LeftMultiply returns a new profile whose absorption distribution at
// every absorbing state is shifted through subMat: lpAbsorb'[c][a] =
// log_sum_exp_b(log subMat[c][a][b] + lpAbsorb[c][b]). Used to carry a
// child profile through its branch's substitution matrix before
// combining it with the other child under the Pair-HMM.
func (p *Profile) LeftMultiply(logSubMat [][][]float64) *Profile {
	out := p.shallowCopy()
	out.State = make([]State, len(p.State))
	copy(out.State, p.State)

	for i := range out.State {
		s := &out.State[i]
		if s.IsNull() {
			continue
		}
		newAbsorb := make([][]float64, p.Components)
		for c := 0; c < p.Components; c++ {
			row := make([]float64, p.AlphSize)
			for a := 0; a < p.AlphSize; a++ {
				lp := numeric.NegInf
				for b := 0; b < p.AlphSize; b++ {
					lp = numeric.LogSumExp(lp, logSubMat[c][a][b]+s.LpAbsorb[c][b])
				}
				row[a] = lp
			}
			newAbsorb[c] = row
		}
		s.LpAbsorb = newAbsorb
	}
	return out
}

func (p *Profile) shallowCopy() *Profile {
	out := &Profile{
		Name:       p.Name,
		Components: p.Components,
		AlphSize:   p.AlphSize,
		Trans:      p.Trans,
		Seq:        p.Seq,
		Meta:       p.Meta,
	}
	return out
}

// GetTrans returns the transition from src to dest, or nil if none
// exists. Implemented as a linear scan over dest's incoming list, as
// the number of incoming transitions per state is small and bounded by
// construction.
func (p *Profile) GetTrans(src, dest StateIndex) *Transition {
	for _, ti := range p.State[dest].In {
		if p.Trans[ti].Src == src {
			return &p.Trans[ti]
		}
	}
	return nil
}

// AlignColumn returns, for state s, the map from row to character for
// every row whose alignment path at s begins with a residue column.
// Rows with a stored sequence look the character up via SeqCoords; rows
// without one (internal-node placeholder rows) get the wildcard
// character.
func (p *Profile) AlignColumn(s StateIndex) map[alignpath.Row]byte {
	col := map[alignpath.Row]byte{}
	st := &p.State[s]
	for row, bits := range st.AlignPath {
		if len(bits) == 0 || !bits[0] {
			continue
		}
		if seq, ok := p.Seq[row]; ok {
			pos := st.SeqCoords[row]
			if pos >= 1 && pos <= len(seq) {
				col[row] = seq[pos-1]
				continue
			}
		}
		col[row] = wildcardChar
	}
	return col
}

// CalcSumPathAbsorbProbs sums, forward over the topologically ordered
// state arena, lp[v] = log_sum_exp over transitions (u->v) of (lp[u] +
// lpTrans + lpAbs(v)), where lpAbs(v) = 0 for null states and
// log_sum_exp_c(cptWeight[c] + logInnerProduct(insDist[c],
// lpAbsorb[c][v])) otherwise. Returns lp[END]; this must equal the
// lpEnd of the Forward DP that produced p, up to floating error, and is
// used purely as a consistency check.
func (p *Profile) CalcSumPathAbsorbProbs(logCptWeight []float64, logInsDist [][]float64) float64 {
	lpCum := make([]float64, len(p.State))
	for i := range lpCum {
		lpCum[i] = numeric.NegInf
	}
	lpCum[0] = 0

	for pos := 1; pos < len(p.State); pos++ {
		s := &p.State[pos]
		lpAbs := 0.0
		if !s.IsNull() {
			lpAbs = numeric.NegInf
			for c := 0; c < p.Components; c++ {
				lpAbs = numeric.LogSumExp(lpAbs, logCptWeight[c]+numeric.LogInnerProduct(logInsDist[c], s.LpAbsorb[c]))
			}
		}
		for _, ti := range s.In {
			t := &p.Trans[ti]
			numeric.LogAccumExp(&lpCum[pos], lpCum[t.Src]+t.LpTrans+lpAbs)
		}
	}
	return lpCum[len(lpCum)-1]
}

// AddReadyStates splits every state that is neither Ready nor Wait into
// a Wait twin (keeping its null-outgoing transitions) and a new Ready
// twin (receiving its absorb-outgoing transitions), joined by a
// unit-probability null transition from the Wait twin to the Ready
// twin. Idempotent: a profile with no ill-formed states is returned
// unchanged (modulo a defensive copy).
//
// New Ready twins are inserted immediately after the state they split
// from, and every state/transition index is renumbered in a single
// pass, so the result stays topologically ordered (src < dest) without
// needing a second sort.
func (p *Profile) AddReadyStates() *Profile {
	out := p.shallowCopy()

	type pending struct {
		origIdx StateIndex // pre-renumbering index of the state that split
		tempIdx StateIndex // pre-renumbering index assigned to the ready twin
	}

	old2new := make([]StateIndex, len(p.State))
	tempStates := make([]State, len(p.State), len(p.State)*2)
	copy(tempStates, p.State)

	var pendings []pending
	n := StateIndex(0)
	for s := 0; s < len(p.State); s++ {
		old2new[s] = n
		n++
		orig := &tempStates[s]
		if orig.IsReady() || orig.IsWait() || len(orig.NullOut)+len(orig.AbsorbOut) == 0 {
			continue
		}
		readyTempIdx := StateIndex(len(tempStates))
		ready := State{
			Name:      orig.Name + ".",
			Meta:      orig.Meta,
			SeqCoords: orig.SeqCoords,
			AbsorbOut: orig.AbsorbOut,
		}
		orig.Name += ";"
		orig.AbsorbOut = nil
		tempStates = append(tempStates, ready)
		pendings = append(pendings, pending{origIdx: StateIndex(s), tempIdx: readyTempIdx})
		old2new = append(old2new, n)
		n++
	}

	trans := make([]Transition, len(p.Trans))
	copy(trans, p.Trans)
	for _, pd := range pendings {
		readyTransIdx := TransIndex(len(trans))
		trans = append(trans, Transition{Src: pd.origIdx, Dest: pd.tempIdx, LpTrans: 0})
		tempStates[pd.origIdx].NullOut = append(tempStates[pd.origIdx].NullOut, readyTransIdx)
		tempStates[pd.tempIdx].In = append(tempStates[pd.tempIdx].In, readyTransIdx)
		for _, ti := range tempStates[pd.tempIdx].AbsorbOut {
			trans[ti].Src = pd.tempIdx
		}
	}

	finalStates := make([]State, len(tempStates))
	for temp, fin := range old2new {
		finalStates[fin] = tempStates[temp]
	}
	for i := range trans {
		trans[i].Src = old2new[trans[i].Src]
		trans[i].Dest = old2new[trans[i].Dest]
	}

	out.State = finalStates
	out.Trans = trans
	return out
}
