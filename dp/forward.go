package dp

import (
	"math"
	"math/rand"

	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/numeric"
	"github.com/BurntSushi/profalign/profile"
	"github.com/BurntSushi/profalign/ratemodel"
)

// The Forward matrix is layered by which Pair-HMM state the alignment's
// last absorbing move left it in; layerStart only ever holds a value at
// (0,0), the product of the two profiles' START states.
const (
	layerStart = iota
	layerIMM
	layerIMD
	layerIDM
	numLayers
)

func layerState(l int) ratemodel.State {
	switch l {
	case layerIMM:
		return ratemodel.IMM
	case layerIMD:
		return ratemodel.IMD
	case layerIDM:
		return ratemodel.IDM
	}
	return ratemodel.Start
}

type moveKind int

const (
	moveNullX moveKind = iota
	moveNullY
	moveAbsorb
)

// candidate is one summand of a cell's log-sum-exp recurrence: either a
// single-sided null move carrying one profile forward along a
// non-emitting transition, or a joint absorb move landing in Pair-HMM
// state layerState(l) and combining a predecessor cell in layer h0 with
// the two profiles' own absorb transitions.
type candidate struct {
	lp     float64
	kind   moveKind
	x0, y0 int
	h0     int
	tx, ty profile.TransIndex
}

// ForwardMatrix is the Forward dynamic program of §4.6: the product
// recurrence over a left and a right child profile's state arenas under
// a shared Pair-HMM, optionally restricted to a GuideEnvelope band.
//
// Every state in x and y must already satisfy the Ready/Wait partition
// (profile.Profile.AddReadyStates); this lets the recurrence classify a
// transition as null or absorbing purely from whether its destination
// state is null, without separately consulting the source state.
type ForwardMatrix struct {
	x, y           *profile.Profile
	xPrime, yPrime *profile.Profile // x, y with LpAbsorb carried through their branch's substitution matrix
	hmm            *ratemodel.PairHMM
	env            *GuideEnvelope
	lRow, rRow     alignpath.Row

	lp [numLayers][][]float64
}

// NewForwardMatrix builds and fills the Forward matrix combining left
// and right under hmm. leftLogSub/rightLogSub are the branch
// substitution matrices (ratemodel.ProbModel.LogSub, reshaped per
// profile.Profile.LeftMultiply's signature) for the left and right
// branches respectively; lRow/rRow are the guide envelope's pivot rows
// within left and right (ignored if env is nil).
func NewForwardMatrix(left, right *profile.Profile, leftLogSub, rightLogSub [][][]float64, hmm *ratemodel.PairHMM, env *GuideEnvelope, lRow, rRow alignpath.Row) *ForwardMatrix {
	f := &ForwardMatrix{
		x:      left,
		y:      right,
		xPrime: left.LeftMultiply(leftLogSub),
		yPrime: right.LeftMultiply(rightLogSub),
		hmm:    hmm,
		env:    env,
		lRow:   lRow,
		rRow:   rRow,
	}
	for l := 0; l < numLayers; l++ {
		f.lp[l] = make([][]float64, left.Size())
		for xi := range f.lp[l] {
			row := make([]float64, right.Size())
			for yi := range row {
				row[yi] = numeric.NegInf
			}
			f.lp[l][xi] = row
		}
	}
	f.lp[layerStart][0][0] = 0
	f.fill()
	return f
}

func (f *ForwardMatrix) admissible(xi, yi int) bool {
	if f.env == nil {
		return true
	}
	return f.env.Admissible(f.x.State[xi].SeqCoords[f.lRow], f.y.State[yi].SeqCoords[f.rRow])
}

func (f *ForwardMatrix) fill() {
	for xi := 0; xi < f.x.Size(); xi++ {
		for yi := 0; yi < f.y.Size(); yi++ {
			if xi == 0 && yi == 0 {
				continue
			}
			if !f.admissible(xi, yi) {
				continue
			}
			for l := layerIMM; l <= layerIDM; l++ {
				f.lp[l][xi][yi] = f.cellTotal(l, xi, yi)
			}
		}
	}
}

func (f *ForwardMatrix) cellTotal(l, xi, yi int) float64 {
	total := numeric.NegInf
	for _, c := range f.candidates(l, xi, yi) {
		total = numeric.LogSumExp(total, c.lp)
	}
	return total
}

// candidates enumerates every way of arriving at (l, xi, yi): a null
// move on whichever side is currently a null (Wait) state, or a joint
// absorb move whose destination layer is layerState(l), combining every
// admissible predecessor layer h0 for which hmm.LogTrans(h0, l) is
// finite.
func (f *ForwardMatrix) candidates(l, xi, yi int) []candidate {
	var cs []candidate
	xSt, ySt := &f.x.State[xi], &f.y.State[yi]

	if xSt.IsNull() {
		for _, ti := range xSt.In {
			t := &f.x.Trans[ti]
			x0 := int(t.Src)
			if v := f.lp[l][x0][yi]; !numeric.IsNegInf(v) {
				cs = append(cs, candidate{lp: v + t.LpTrans, kind: moveNullX, x0: x0, y0: yi, tx: ti, ty: -1})
			}
		}
	}
	if ySt.IsNull() {
		for _, ti := range ySt.In {
			t := &f.y.Trans[ti]
			y0 := int(t.Src)
			if v := f.lp[l][xi][y0]; !numeric.IsNegInf(v) {
				cs = append(cs, candidate{lp: v + t.LpTrans, kind: moveNullY, x0: xi, y0: y0, tx: -1, ty: ti})
			}
		}
	}

	switch layerState(l) {
	case ratemodel.IMM:
		if xSt.IsNull() || ySt.IsNull() {
			break
		}
		emit := f.hmm.LogEmitAbsorb(ratemodel.IMM, f.xPrime.State[xi].LpAbsorb, f.yPrime.State[yi].LpAbsorb)
		for _, txi := range xSt.In {
			tx := &f.x.Trans[txi]
			for _, tyi := range ySt.In {
				ty := &f.y.Trans[tyi]
				x0, y0 := int(tx.Src), int(ty.Src)
				for h0 := 0; h0 < numLayers; h0++ {
					v := f.lp[h0][x0][y0]
					if numeric.IsNegInf(v) {
						continue
					}
					lpT := f.hmm.LogTrans(layerState(h0), ratemodel.IMM)
					if numeric.IsNegInf(lpT) {
						continue
					}
					cs = append(cs, candidate{
						lp: v + lpT + tx.LpTrans + ty.LpTrans + emit, kind: moveAbsorb,
						x0: x0, y0: y0, h0: h0, tx: txi, ty: tyi,
					})
				}
			}
		}
	case ratemodel.IMD:
		if xSt.IsNull() {
			break
		}
		emit := f.hmm.LogEmitAbsorb(ratemodel.IMD, f.xPrime.State[xi].LpAbsorb, nil)
		for _, txi := range xSt.In {
			tx := &f.x.Trans[txi]
			x0 := int(tx.Src)
			for h0 := 0; h0 < numLayers; h0++ {
				v := f.lp[h0][x0][yi]
				if numeric.IsNegInf(v) {
					continue
				}
				lpT := f.hmm.LogTrans(layerState(h0), ratemodel.IMD)
				if numeric.IsNegInf(lpT) {
					continue
				}
				cs = append(cs, candidate{
					lp: v + lpT + tx.LpTrans + emit, kind: moveAbsorb,
					x0: x0, y0: yi, h0: h0, tx: txi, ty: -1,
				})
			}
		}
	case ratemodel.IDM:
		if ySt.IsNull() {
			break
		}
		emit := f.hmm.LogEmitAbsorb(ratemodel.IDM, nil, f.yPrime.State[yi].LpAbsorb)
		for _, tyi := range ySt.In {
			ty := &f.y.Trans[tyi]
			y0 := int(ty.Src)
			for h0 := 0; h0 < numLayers; h0++ {
				v := f.lp[h0][xi][y0]
				if numeric.IsNegInf(v) {
					continue
				}
				lpT := f.hmm.LogTrans(layerState(h0), ratemodel.IDM)
				if numeric.IsNegInf(lpT) {
					continue
				}
				cs = append(cs, candidate{
					lp: v + lpT + ty.LpTrans + emit, kind: moveAbsorb,
					x0: xi, y0: y0, h0: h0, tx: -1, ty: tyi,
				})
			}
		}
	}
	return cs
}

// LpEnd returns the Forward total: log P(x's leaves, y's leaves | their
// shared ancestor), summed over every alignment and Pair-HMM state path
// reaching both profiles' END states.
func (f *ForwardMatrix) LpEnd() float64 {
	total := numeric.NegInf
	xLast, yLast := f.x.Size()-1, f.y.Size()-1
	for h0 := layerIMM; h0 <= layerIDM; h0++ {
		v := f.lp[h0][xLast][yLast]
		if numeric.IsNegInf(v) {
			continue
		}
		lpEnd := f.hmm.LogTrans(layerState(h0), ratemodel.End)
		if numeric.IsNegInf(lpEnd) {
			continue
		}
		total = numeric.LogSumExp(total, v+lpEnd)
	}
	return total
}

// step is one edge of a traced path through the matrix, in the
// direction it was walked forward (START -> END): it arrives at cell
// (xi, yi) in layer l from (x0, y0), via transition tx on x's side
// and/or ty on y's side (either may be -1, meaning that side didn't
// move).
type step struct {
	kind   moveKind
	l      int
	xi, yi int
	x0, y0 int
	h0     int
	tx, ty profile.TransIndex
}

// trace walks backward from the single virtual exit cell to (Start,
// 0, 0), picking one candidate at each step via pick, and returns the
// walked steps in forward order together with the total log-probability
// of the traced path.
func (f *ForwardMatrix) trace(pick func([]candidate) int) ([]step, float64) {
	xLast, yLast := f.x.Size()-1, f.y.Size()-1
	var exit []candidate
	for h0 := layerIMM; h0 <= layerIDM; h0++ {
		v := f.lp[h0][xLast][yLast]
		if numeric.IsNegInf(v) {
			continue
		}
		lpEnd := f.hmm.LogTrans(layerState(h0), ratemodel.End)
		if numeric.IsNegInf(lpEnd) {
			continue
		}
		exit = append(exit, candidate{lp: v + lpEnd, h0: h0, x0: xLast, y0: yLast})
	}
	if len(exit) == 0 {
		return nil, numeric.NegInf
	}
	ei := pick(exit)
	total := exit[ei].lp
	l, xi, yi := exit[ei].h0, xLast, yLast

	var rev []step
	for !(xi == 0 && yi == 0 && l == layerStart) {
		cs := f.candidates(l, xi, yi)
		if len(cs) == 0 {
			break
		}
		ci := pick(cs)
		c := cs[ci]
		rev = append(rev, step{kind: c.kind, l: l, xi: xi, yi: yi, x0: c.x0, y0: c.y0, h0: c.h0, tx: c.tx, ty: c.ty})
		if c.kind == moveAbsorb {
			l = c.h0
		}
		xi, yi = c.x0, c.y0
	}
	steps := make([]step, len(rev))
	for i, s := range rev {
		steps[len(rev)-1-i] = s
	}
	return steps, total
}

func bestPick(cs []candidate) int {
	best := 0
	for i := 1; i < len(cs); i++ {
		if cs[i].lp > cs[best].lp {
			best = i
		}
	}
	return best
}

func samplePick(rng *rand.Rand, cs []candidate) int {
	maxLp := cs[0].lp
	for _, c := range cs[1:] {
		if c.lp > maxLp {
			maxLp = c.lp
		}
	}
	weights := make([]float64, len(cs))
	sum := 0.0
	for i, c := range cs {
		weights[i] = math.Exp(c.lp - maxLp)
		sum += weights[i]
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(cs) - 1
}

// ProfilingStrategy is a bit set controlling how BestProfile,
// SampleProfile and PostProbProfile materialise a traced path as a
// profile, per §4.6.
type ProfilingStrategy uint8

const (
	// CollapseChains folds a run of null moves into the surrounding
	// transition's log-probability and alignment fragment, rather than
	// emitting one Wait state per null move. This is the default
	// behaviour (the absence of KeepGapsOpen); the bit is defined for
	// symmetry with KeepGapsOpen and isn't tested directly.
	CollapseChains ProfilingStrategy = 1 << iota
	// KeepGapsOpen emits an explicit Wait state for every null move
	// instead of collapsing runs of them into their surrounding
	// transition.
	KeepGapsOpen
	// IncludeBestTrace forces SampleProfile's first draw to be the
	// Viterbi-best trace rather than a stochastic one.
	IncludeBestTrace
	// CountSubstEvents and CountIndelEvents are accepted for
	// compatibility with the Backward matrix's counting strategy; they
	// have no effect on profile construction itself (counts come from
	// BackwardMatrix.GetCounts, not from a traced profile).
	CountSubstEvents
	CountIndelEvents
)

// BestProfile materialises the Viterbi-best traced path as a new
// profile representing this node's ancestral sequence.
func (f *ForwardMatrix) BestProfile(strategy ProfilingStrategy) *profile.Profile {
	steps, _ := f.trace(bestPick)
	return f.buildProfile(steps, strategy, nil)
}

// BestAlignPath returns the alignment (over every row descended from x
// or y) implied by the Viterbi-best traced path.
func (f *ForwardMatrix) BestAlignPath() alignpath.AlignPath {
	steps, _ := f.trace(bestPick)
	return f.buildAlignPath(steps)
}

// SampleProfile draws nSamples traces (stochastic traceback, weighted
// by each candidate's share of its cell's total probability) and
// returns the single highest-probability draw as a profile. stateLimit
// is accepted for interface compatibility with a future multi-trace
// union but is not yet enforced, since this implementation keeps only
// the best of the nSamples draws rather than merging them into one DAG.
func (f *ForwardMatrix) SampleProfile(rng *rand.Rand, nSamples, stateLimit int, strategy ProfilingStrategy) *profile.Profile {
	if nSamples <= 0 {
		nSamples = 1
	}
	_ = stateLimit
	var bestSteps []step
	bestLp := numeric.NegInf
	for i := 0; i < nSamples; i++ {
		var steps []step
		var lp float64
		if strategy&IncludeBestTrace != 0 && i == 0 {
			steps, lp = f.trace(bestPick)
		} else {
			steps, lp = f.trace(func(cs []candidate) int { return samplePick(rng, cs) })
		}
		if lp > bestLp {
			bestLp, bestSteps = lp, steps
		}
	}
	return f.buildProfile(bestSteps, strategy, nil)
}

// buildProfile materialises steps as a new linear-chain profile: one
// absorbing state per absorb-kind step (unless keep rejects it, in
// which case it is treated like a null step), with intervening null
// moves collapsed into the surrounding transition unless
// strategy&KeepGapsOpen is set. keep may be nil, meaning every absorb
// step is kept.
func (f *ForwardMatrix) buildProfile(steps []step, strategy ProfilingStrategy, keep func(step) bool) *profile.Profile {
	out := &profile.Profile{
		Components: f.x.Components,
		AlphSize:   f.x.AlphSize,
		Seq:        mergeSeq(f.x.Seq, f.y.Seq),
	}
	appendState(out, profile.State{Name: "START", SeqCoords: f.coordsAt(0, 0)})
	cur := profile.StateIndex(0)
	pendingLp := 0.0
	var pendingFrag []alignpath.AlignPath

	flushNull := func(st step) {
		pendingLp += f.stepLpTrans(st)
		if frag := f.stepAlignFragment(st); frag != nil {
			pendingFrag = append(pendingFrag, frag)
		}
	}

	for _, st := range steps {
		if st.kind != moveAbsorb || (keep != nil && !keep(st)) {
			flushNull(st)
			if st.kind == moveAbsorb || strategy&KeepGapsOpen == 0 {
				continue
			}
			next := appendState(out, profile.State{Name: "wait", SeqCoords: f.coordsAt(st.xi, st.yi)})
			linkNull(out, cur, next, pendingLp, concatOrNil(pendingFrag))
			cur, pendingLp, pendingFrag = next, 0, nil
			continue
		}
		next := appendState(out, profile.State{
			Name:      "anc",
			LpAbsorb:  f.combinedAbsorb(st),
			AlignPath: f.stepAlignFragment(st),
			SeqCoords: f.coordsAt(st.xi, st.yi),
		})
		linkAbsorb(out, cur, next, pendingLp+f.stepLpTrans(st), concatOrNil(pendingFrag))
		cur, pendingLp, pendingFrag = next, 0, nil
	}
	end := appendState(out, profile.State{Name: "END", SeqCoords: f.coordsAt(f.x.Size()-1, f.y.Size()-1)})
	linkNull(out, cur, end, pendingLp, concatOrNil(pendingFrag))
	return out
}

func (f *ForwardMatrix) buildAlignPath(steps []step) alignpath.AlignPath {
	var frags []alignpath.AlignPath
	for _, st := range steps {
		if frag := f.stepAlignFragment(st); frag != nil {
			frags = append(frags, frag)
		}
	}
	return alignpath.Concat(frags...)
}

func (f *ForwardMatrix) stepLpTrans(st step) float64 {
	lp := 0.0
	if st.tx >= 0 {
		lp += f.x.Trans[st.tx].LpTrans
	}
	if st.ty >= 0 {
		lp += f.y.Trans[st.ty].LpTrans
	}
	if st.kind == moveAbsorb {
		lp += f.hmm.LogTrans(layerState(st.h0), layerState(st.l))
	}
	return lp
}

// combinedAbsorb returns the new profile's lpAbsorb table for an absorb
// step: the (already branch-shifted) child distribution(s) the step
// combines, not yet marginalised over the ancestral symbol (that
// marginalisation happens one level up, exactly as
// profile.Profile.CalcSumPathAbsorbProbs does for a finished profile).
func (f *ForwardMatrix) combinedAbsorb(st step) [][]float64 {
	out := make([][]float64, f.x.Components)
	for c := 0; c < f.x.Components; c++ {
		row := make([]float64, f.x.AlphSize)
		switch layerState(st.l) {
		case ratemodel.IMM:
			xa, ya := f.xPrime.State[st.xi].LpAbsorb[c], f.yPrime.State[st.yi].LpAbsorb[c]
			for a := range row {
				row[a] = xa[a] + ya[a]
			}
		case ratemodel.IMD:
			copy(row, f.xPrime.State[st.xi].LpAbsorb[c])
		case ratemodel.IDM:
			copy(row, f.yPrime.State[st.yi].LpAbsorb[c])
		}
		out[c] = row
	}
	return out
}

func (f *ForwardMatrix) stepAlignFragment(st step) alignpath.AlignPath {
	var xFrag, yFrag alignpath.AlignPath
	if st.tx >= 0 {
		xFrag = stepFragment(f.x.Trans[st.tx].AlignPath, f.x.State[st.xi].AlignPath)
	}
	if st.ty >= 0 {
		yFrag = stepFragment(f.y.Trans[st.ty].AlignPath, f.y.State[st.yi].AlignPath)
	}
	width := alignpath.Columns(xFrag)
	if w := alignpath.Columns(yFrag); w > width {
		width = w
	}
	if width == 0 {
		return nil
	}
	combined := padFragment(xFrag, width)
	for row, bits := range padFragment(yFrag, width) {
		combined[row] = bits
	}
	return combined
}

func stepFragment(tPath, sPath alignpath.AlignPath) alignpath.AlignPath {
	var paths []alignpath.AlignPath
	if len(tPath) > 0 {
		paths = append(paths, tPath)
	}
	if len(sPath) > 0 {
		paths = append(paths, sPath)
	}
	if len(paths) == 0 {
		return nil
	}
	return alignpath.Concat(paths...)
}

func padFragment(p alignpath.AlignPath, width int) alignpath.AlignPath {
	out := make(alignpath.AlignPath, len(p))
	for row, bits := range p {
		if len(bits) >= width {
			out[row] = bits
			continue
		}
		padded := make(alignpath.BitSequence, width)
		copy(padded, bits)
		out[row] = padded
	}
	return out
}

func concatOrNil(frags []alignpath.AlignPath) alignpath.AlignPath {
	if len(frags) == 0 {
		return nil
	}
	return alignpath.Concat(frags...)
}

func (f *ForwardMatrix) coordsAt(xi, yi int) profile.SeqCoords {
	xc, yc := f.x.State[xi].SeqCoords, f.y.State[yi].SeqCoords
	out := make(profile.SeqCoords, len(xc)+len(yc))
	for r, n := range xc {
		out[r] = n
	}
	for r, n := range yc {
		out[r] = n
	}
	return out
}

func mergeSeq(a, b map[alignpath.Row]string) map[alignpath.Row]string {
	out := make(map[alignpath.Row]string, len(a)+len(b))
	for r, s := range a {
		out[r] = s
	}
	for r, s := range b {
		out[r] = s
	}
	return out
}

func appendState(p *profile.Profile, s profile.State) profile.StateIndex {
	idx := profile.StateIndex(len(p.State))
	p.State = append(p.State, s)
	return idx
}

func linkNull(p *profile.Profile, src, dest profile.StateIndex, lpTrans float64, path alignpath.AlignPath) {
	ti := profile.TransIndex(len(p.Trans))
	p.Trans = append(p.Trans, profile.Transition{Src: src, Dest: dest, LpTrans: lpTrans, AlignPath: path})
	p.State[src].NullOut = append(p.State[src].NullOut, ti)
	p.State[dest].In = append(p.State[dest].In, ti)
}

func linkAbsorb(p *profile.Profile, src, dest profile.StateIndex, lpTrans float64, path alignpath.AlignPath) {
	ti := profile.TransIndex(len(p.Trans))
	p.Trans = append(p.Trans, profile.Transition{Src: src, Dest: dest, LpTrans: lpTrans, AlignPath: path})
	p.State[src].AbsorbOut = append(p.State[src].AbsorbOut, ti)
	p.State[dest].In = append(p.State[dest].In, ti)
}
