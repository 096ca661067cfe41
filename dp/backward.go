package dp

import (
	"math"

	"github.com/BurntSushi/profalign/numeric"
	"github.com/BurntSushi/profalign/profile"
	"github.com/BurntSushi/profalign/ratemodel"
)

// BackwardMatrix is the Backward dynamic program paired with a Forward
// matrix, per §4.7: bk[l][xi][yi] is the log-probability of completing
// the alignment from cell (xi, yi), currently in Pair-HMM state
// layerState(l), through to both profiles' END states. Combined with
// the paired Forward matrix's own values, it gives the posterior
// probability of any cell being on the alignment's true path, which
// PostProbProfile uses for posterior-decoding traceback and GetCounts
// uses to accumulate expected sufficient statistics.
type BackwardMatrix struct {
	f  *ForwardMatrix
	bk [numLayers][][]float64
}

// NewBackwardMatrix fills the Backward matrix for f. f must already be
// filled (NewForwardMatrix does this).
func NewBackwardMatrix(f *ForwardMatrix) *BackwardMatrix {
	b := &BackwardMatrix{f: f}
	xn, yn := f.x.Size(), f.y.Size()
	for l := 0; l < numLayers; l++ {
		b.bk[l] = make([][]float64, xn)
		for xi := range b.bk[l] {
			row := make([]float64, yn)
			for yi := range row {
				row[yi] = numeric.NegInf
			}
			b.bk[l][xi] = row
		}
	}
	xl, yl := xn-1, yn-1
	for h0 := layerIMM; h0 <= layerIDM; h0++ {
		b.bk[h0][xl][yl] = f.hmm.LogTrans(layerState(h0), ratemodel.End)
	}
	b.fill()
	return b
}

func (b *BackwardMatrix) fill() {
	f := b.f
	xLast, yLast := f.x.Size()-1, f.y.Size()-1
	for xi := xLast; xi >= 0; xi-- {
		for yi := yLast; yi >= 0; yi-- {
			if xi == xLast && yi == yLast {
				continue
			}
			if !f.admissible(xi, yi) {
				continue
			}
			for l := layerStart; l <= layerIDM; l++ {
				b.bk[l][xi][yi] = b.cellTotal(l, xi, yi)
			}
		}
	}
}

// cellTotal sums, over every move leaving (xi, yi) while in layer l,
// the probability of completing the alignment from wherever that move
// lands -- the mirror image of ForwardMatrix.candidates, which instead
// sums over moves arriving at a cell.
func (b *BackwardMatrix) cellTotal(l, xi, yi int) float64 {
	f := b.f
	xSt, ySt := &f.x.State[xi], &f.y.State[yi]
	total := numeric.NegInf

	// Moves are classified by their destination state, as in Forward:
	// NullOut leads to null states (a null move within layer l, which
	// Forward never makes from the Start layer), AbsorbOut to absorbing
	// states (an absorb move into IMM/IMD/IDM).
	if l != layerStart {
		for _, ti := range xSt.NullOut {
			t := &f.x.Trans[ti]
			if v := b.bk[l][t.Dest][yi]; !numeric.IsNegInf(v) {
				total = numeric.LogSumExp(total, v+t.LpTrans)
			}
		}
		for _, ti := range ySt.NullOut {
			t := &f.y.Trans[ti]
			if v := b.bk[l][xi][t.Dest]; !numeric.IsNegInf(v) {
				total = numeric.LogSumExp(total, v+t.LpTrans)
			}
		}
	}

	src := layerState(l)
	for _, txi := range xSt.AbsorbOut {
		tx := &f.x.Trans[txi]
		x2 := int(tx.Dest)
		for _, tyi := range ySt.AbsorbOut {
			ty := &f.y.Trans[tyi]
			y2 := int(ty.Dest)
			lpT := f.hmm.LogTrans(src, ratemodel.IMM)
			v := b.bk[layerIMM][x2][y2]
			if numeric.IsNegInf(lpT) || numeric.IsNegInf(v) {
				continue
			}
			emit := f.hmm.LogEmitAbsorb(ratemodel.IMM, f.xPrime.State[x2].LpAbsorb, f.yPrime.State[y2].LpAbsorb)
			total = numeric.LogSumExp(total, v+lpT+tx.LpTrans+ty.LpTrans+emit)
		}
	}
	for _, txi := range xSt.AbsorbOut {
		tx := &f.x.Trans[txi]
		x2 := int(tx.Dest)
		lpT := f.hmm.LogTrans(src, ratemodel.IMD)
		v := b.bk[layerIMD][x2][yi]
		if !numeric.IsNegInf(lpT) && !numeric.IsNegInf(v) {
			emit := f.hmm.LogEmitAbsorb(ratemodel.IMD, f.xPrime.State[x2].LpAbsorb, nil)
			total = numeric.LogSumExp(total, v+lpT+tx.LpTrans+emit)
		}
	}
	for _, tyi := range ySt.AbsorbOut {
		ty := &f.y.Trans[tyi]
		y2 := int(ty.Dest)
		lpT := f.hmm.LogTrans(src, ratemodel.IDM)
		v := b.bk[layerIDM][xi][y2]
		if !numeric.IsNegInf(lpT) && !numeric.IsNegInf(v) {
			emit := f.hmm.LogEmitAbsorb(ratemodel.IDM, nil, f.yPrime.State[y2].LpAbsorb)
			total = numeric.LogSumExp(total, v+lpT+ty.LpTrans+emit)
		}
	}
	return total
}

// LogLikelihood recomputes the total log-likelihood from the Backward
// matrix's own base case (bk[Start][0][0]), which must equal the paired
// Forward matrix's LpEnd() up to floating error; used as a consistency
// check between the two passes.
func (b *BackwardMatrix) LogLikelihood() float64 {
	return b.bk[layerStart][0][0]
}

// LogPosterior returns the log posterior probability that the
// alignment's true path visits cell (xi, yi) while in Pair-HMM state
// layerState(l).
func (b *BackwardMatrix) LogPosterior(l, xi, yi int) float64 {
	return b.f.lp[l][xi][yi] + b.bk[l][xi][yi] - b.f.LpEnd()
}

// Posterior is LogPosterior in probability space.
func (b *BackwardMatrix) Posterior(l, xi, yi int) float64 {
	return math.Exp(b.LogPosterior(l, xi, yi))
}

// PostProbProfile performs posterior-decoding traceback: it follows the
// Viterbi-best path (ForwardMatrix.trace with bestPick), then demotes
// any absorb step whose own cell posterior falls below minProb to a
// null move rather than materialising it as an ancestral state,
// folding its alignment fragment into the surrounding gap instead of
// dropping the trace entirely.
func (b *BackwardMatrix) PostProbProfile(minProb float64, strategy ProfilingStrategy) *profile.Profile {
	steps, _ := b.f.trace(bestPick)
	keep := func(st step) bool {
		return b.Posterior(st.l, st.xi, st.yi) >= minProb
	}
	return b.f.buildProfile(steps, strategy, keep)
}

// GetCounts accumulates expected sufficient statistics over every cell
// of the paired Forward/Backward matrices, weighted by posterior
// probability.
func (b *BackwardMatrix) GetCounts() *EigenCounts {
	f := b.f
	ec := newEigenCounts(f.x.Components, f.x.AlphSize)
	for l := layerIMM; l <= layerIDM; l++ {
		for xi := 0; xi < f.x.Size(); xi++ {
			for yi := 0; yi < f.y.Size(); yi++ {
				p := b.Posterior(l, xi, yi)
				if p <= 0 {
					continue
				}
				for c := 0; c < f.x.Components; c++ {
					ec.StateVisits[c][l] += p
				}
				if l != layerIMM {
					continue
				}
				xa, ya := leafSymbol(&f.x.State[xi]), leafSymbol(&f.y.State[yi])
				if xa < 0 || ya < 0 {
					continue
				}
				for c := 0; c < f.x.Components; c++ {
					ec.SymbolPairs[c][xa][ya] += p
				}
			}
		}
	}
	return ec
}

// leafSymbol resolves an absorbing state's LpAbsorb row to a concrete
// symbol when it is one-hot (a leaf residue), returning -1 for null,
// wildcard, or internal (already-marginalised mixture) states.
func leafSymbol(s *profile.State) int {
	if s.IsNull() {
		return -1
	}
	row := s.LpAbsorb[0]
	found := -1
	for a, lp := range row {
		switch {
		case lp == 0:
			if found >= 0 {
				return -1
			}
			found = a
		case !numeric.IsNegInf(lp):
			return -1
		}
	}
	return found
}
