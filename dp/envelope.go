// Package dp implements the Pair-HMM Forward and Backward dynamic
// programs of §4.6/§4.7: the product recurrence over two child
// profiles, restricted to a guide-derived band, producing a
// log-likelihood, tracebacks, and posterior-weighted profile
// construction.
package dp

import "github.com/BurntSushi/profalign/alignpath"

// GuideEnvelope restricts the (xSeqPos, ySeqPos) grid of a profile-pair
// DP to a band around a precomputed guide alignment, pivoted on one row
// from each child's subtree (§4.9's closestLeaf). A nil *GuideEnvelope
// (or one built with MaxDist < 0) imposes no restriction.
type GuideEnvelope struct {
	maxDist int
	// lColCumLen[col] / rColCumLen[col] are the cumulative residue
	// count of the pivot rows through column col (0..Columns).
	lColCumLen, rColCumLen []int
	columns                int
}

// NewGuideEnvelope builds a band around guide, pivoted on rows l and r,
// with half-width maxDist. maxDist < 0 means unconstrained.
func NewGuideEnvelope(guide alignpath.AlignPath, l, r alignpath.Row, maxDist int) *GuideEnvelope {
	if maxDist < 0 {
		return &GuideEnvelope{maxDist: maxDist}
	}
	cols := alignpath.Columns(guide)
	e := &GuideEnvelope{
		maxDist:    maxDist,
		columns:    cols,
		lColCumLen: cumulativeResidues(guide, l, cols),
		rColCumLen: cumulativeResidues(guide, r, cols),
	}
	return e
}

func cumulativeResidues(p alignpath.AlignPath, row alignpath.Row, cols int) []int {
	out := make([]int, cols+1)
	bits := p[row]
	n := 0
	for c := 0; c < cols; c++ {
		out[c] = n
		if c < len(bits) && bits[c] {
			n++
		}
	}
	out[cols] = n
	return out
}

// Columns returns the guide's column count this envelope was built
// from, used by the band-doubling retry loop of §4.9.c to decide
// whether to double maxDist again or remove the envelope outright.
func (e *GuideEnvelope) Columns() int {
	if e == nil {
		return 0
	}
	return e.columns
}

// MaxDist returns the current band half-width.
func (e *GuideEnvelope) MaxDist() int {
	if e == nil {
		return -1
	}
	return e.maxDist
}

// Admissible reports whether (xSeqPos, ySeqPos) falls inside the band.
func (e *GuideEnvelope) Admissible(xSeqPos, ySeqPos int) bool {
	if e == nil || e.maxDist < 0 {
		return true
	}
	lo, hi := e.yRangeFor(xSeqPos)
	return ySeqPos >= lo-e.maxDist && ySeqPos <= hi+e.maxDist
}

// yRangeFor returns the range of the right pivot's cumulative residue
// count over every guide column where the left pivot's cumulative
// count equals xSeqPos (there may be a run of such columns, e.g. when
// the right pivot has an unmatched insertion there).
func (e *GuideEnvelope) yRangeFor(xSeqPos int) (lo, hi int) {
	lo, hi = -1, -1
	for c := 0; c <= e.columns; c++ {
		if e.lColCumLen[c] != xSeqPos {
			continue
		}
		y := e.rColCumLen[c]
		if lo == -1 || y < lo {
			lo = y
		}
		if hi == -1 || y > hi {
			hi = y
		}
	}
	if lo == -1 {
		// xSeqPos never occurs on the left pivot's cumulative count
		// (shouldn't happen for valid seqPos in [0,len]); fall back to
		// unconstrained for this coordinate rather than wrongly
		// excluding every cell.
		return 0, e.rColCumLen[e.columns]
	}
	return lo, hi
}
