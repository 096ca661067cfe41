// Package diagenv implements the sparse banded-diagonal DP storage
// described in §4.4: given two sequences, it selects a set of "active"
// anti-diagonals either by seeding from k-mer matches or by falling back
// to the full grid, then lays out a compact per-row storage scheme so the
// Pair-HMM DP (package dp) only ever touches cells inside the envelope.
package diagenv

import (
	"sort"

	"github.com/rdleal/intervalst/interval"
	"github.com/twotwotwo/sorts"

	"github.com/BurntSushi/profalign/kmer"
)

// Params configures envelope construction.
type Params struct {
	// CellSize is the per-cell storage cost in bytes, used to translate
	// a diagonal count into a memory estimate.
	CellSize int
	// MemBudget is the maximum number of bytes the envelope's storage
	// may occupy. Zero/negative means "unconstrained" (full mode always
	// fits).
	MemBudget int64
	// KmerThreshold is T in §4.4: T>=0 means "include every diagonal
	// with at least this many k-mer hits"; T<0 means "greedily include
	// diagonals by descending hit count until the memory budget is
	// exhausted".
	KmerThreshold int
	// KmerLen is k, the k-mer length used for seeding (only read when
	// sparse mode is used).
	KmerLen int
	// BandHalfWidth is B/2 in §4.4: each seed diagonal contributes
	// [d-BandHalfWidth, d+BandHalfWidth] to D.
	BandHalfWidth int
}

// ival is a closed, inclusive diagonal range [Lo, Hi].
type ival struct{ Lo, Hi int }

// Envelope is the sparse banded DP storage for one sequence pair.
type Envelope struct {
	X, Y int // len(x), len(y)

	// dBands and dPlusBands are sorted, pairwise-disjoint, merged
	// interval lists representing D and D+ respectively.
	dBands     []ival
	dPlusBands []ival

	tree *interval.SearchTree[ival, int]

	storageSize      []int // per row j in [0,Y]
	storageOffset    []int // cumulative offset per row
	storageFirstDiag []int // first diagonal (by value) intersecting row j, or 0 if empty
	totalStorageSize int
}

// Build constructs the envelope for sequences of length X and Y, using
// xTokens/yTokens (tokenised residues, alphabet size alphaSize) for
// k-mer seeding in sparse mode.
func Build(xTokens, yTokens []int, alphaSize int, p Params) (*Envelope, error) {
	X, Y := len(xTokens), len(yTokens)
	e := &Envelope{X: X, Y: Y}

	if full, err := shouldUseFullMode(X, Y, p); err != nil {
		return nil, err
	} else if full {
		e.dBands = []ival{{-Y, X}}
		e.dPlusBands = []ival{{-Y - 1, X + 1}}
		e.initStorage()
		return e, nil
	}

	seeds, err := seedDiagonals(xTokens, yTokens, alphaSize, p)
	if err != nil {
		return nil, err
	}

	var dList, dPlusList []ival
	half := p.BandHalfWidth
	for _, d := range seeds {
		dList = mergeInsert(dList, ival{d - half, d + half})
		dPlusList = mergeInsert(dPlusList, ival{d - half - 1, d + half + 1})
	}
	dList = mergeInsert(dList, ival{0, 0})
	dPlusList = mergeInsert(dPlusList, ival{0, 0})

	// When the seeded D⁺ would exceed the memory budget, Build falls
	// back to the main diagonal alone (D = {0}, D⁺ = [-1, 1]); no error
	// is returned.
	if p.MemBudget > 0 {
		size := storageSizeOf(dPlusList, X, Y)
		if int64(size)*int64(p.CellSize) > p.MemBudget {
			dList = []ival{{0, 0}}
			dPlusList = []ival{{-1, 1}}
		}
	}

	e.dBands = dList
	e.dPlusBands = dPlusList
	e.initStorage()
	return e, nil
}

func shouldUseFullMode(X, Y int, p Params) (bool, error) {
	if p.KmerThreshold >= 0 {
		threshold := 2 * (p.KmerLen + p.KmerThreshold)
		return X < threshold || Y < threshold, nil
	}
	if p.MemBudget <= 0 {
		return true, nil
	}
	full := int64(X) * int64(Y) * int64(p.CellSize)
	return full <= p.MemBudget, nil
}

// seedDiagonals returns the list of diagonals selected as seeds, per the
// reverse-histogram procedure of §4.4.
func seedDiagonals(xTokens, yTokens []int, alphaSize int, p Params) ([]int, error) {
	yIndex, err := kmer.New(yTokens, alphaSize, p.KmerLen)
	if err != nil {
		return nil, err
	}

	counts := map[int]int{}
	for i := 0; i+p.KmerLen <= len(xTokens); i++ {
		code, ok := kmer.Code(xTokens, i, p.KmerLen, alphaSize)
		if !ok {
			continue
		}
		for _, j := range yIndex.Positions(code) {
			counts[i-j]++
		}
	}

	all := make(diagCountSlice, 0, len(counts))
	for d, c := range counts {
		all = append(all, diagCount{d, c})
	}
	// Sort descending by count, using the pack's large-slice sorter the
	// way this engine's seeding histogram (potentially one entry per
	// k-mer match across the whole sequence) is sorted in the reference
	// implementation.
	sorts.Quicksort(all)

	if p.KmerThreshold >= 0 {
		seeds := make([]int, 0, len(all))
		for _, dc := range all {
			if dc.count >= p.KmerThreshold {
				seeds = append(seeds, dc.diag)
			}
		}
		return seeds, nil
	}

	// T < 0: greedily add diagonals by descending count until the
	// storage budget would be exceeded.
	var dPlusList []ival
	seeds := make([]int, 0, len(all))
	half := p.BandHalfWidth
	X, Y := len(xTokens), len(yTokens)
	for _, dc := range all {
		trial := mergeInsert(append([]ival(nil), dPlusList...), ival{dc.diag - half - 1, dc.diag + half + 1})
		if p.MemBudget > 0 {
			size := storageSizeOf(trial, X, Y)
			if int64(size)*int64(p.CellSize) > p.MemBudget {
				break
			}
		}
		dPlusList = trial
		seeds = append(seeds, dc.diag)
	}
	return seeds, nil
}

type diagCount struct{ diag, count int }

type diagCountSlice []diagCount

func (s diagCountSlice) Len() int      { return len(s) }
func (s diagCountSlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s diagCountSlice) Less(i, j int) bool {
	// Descending by count, so the greedy T<0 budget search and the
	// T>=0 threshold filter both just walk the slice front to back.
	return s[i].count > s[j].count
}

// mergeInsert inserts iv into a sorted, disjoint list of closed intervals,
// merging with any overlapping or adjacent neighbours, and returns the
// updated sorted, disjoint list.
func mergeInsert(bands []ival, iv ival) []ival {
	bands = append(bands, iv)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Lo < bands[j].Lo })
	merged := bands[:0]
	for _, b := range bands {
		if len(merged) > 0 && b.Lo <= merged[len(merged)-1].Hi+1 {
			last := &merged[len(merged)-1]
			if b.Hi > last.Hi {
				last.Hi = b.Hi
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// storageSizeOf computes Σ_j |bands ∩ [-j, X-j]| for j in [0,Y], the
// total cell count the given band list would occupy as DP storage.
func storageSizeOf(bands []ival, X, Y int) int {
	total := 0
	for j := 0; j <= Y; j++ {
		lo, hi := -j, X-j
		for _, b := range bands {
			l, h := max(lo, b.Lo), min(hi, b.Hi)
			if l <= h {
				total += h - l + 1
			}
		}
	}
	return total
}

// initStorage builds the per-row offset table and the interval search
// tree backing ForwardI/ReverseI, per §4.4.
func (e *Envelope) initStorage() {
	e.tree = interval.NewSearchTree[ival, int](func(a, b int) int { return a - b })
	for _, b := range e.dPlusBands {
		e.tree.Insert(b.Lo, b.Hi, b)
	}

	e.storageSize = make([]int, e.Y+1)
	e.storageOffset = make([]int, e.Y+1)
	e.storageFirstDiag = make([]int, e.Y+1)
	offset := 0
	for j := 0; j <= e.Y; j++ {
		lo, hi := -j, e.X-j
		size := 0
		first := 0
		firstSet := false
		hits, _ := e.tree.AllIntersections(lo, hi)
		sort.Slice(hits, func(i, k int) bool { return hits[i].Lo < hits[k].Lo })
		for _, b := range hits {
			l, h := max(lo, b.Lo), min(hi, b.Hi)
			if l > h {
				continue
			}
			if !firstSet {
				first = l
				firstSet = true
			}
			size += h - l + 1
		}
		e.storageSize[j] = size
		e.storageOffset[j] = offset
		e.storageFirstDiag[j] = first
		offset += size
	}
	e.totalStorageSize = offset
}

// IsFull reports whether the envelope covers the entire DP grid
// (|D| == X+Y+1).
func (e *Envelope) IsFull() bool {
	return bandsSize(e.dBands) == e.X+e.Y+1
}

func bandsSize(bands []ival) int {
	n := 0
	for _, b := range bands {
		n += b.Hi - b.Lo + 1
	}
	return n
}

// HasDiagonal reports whether d is an active diagonal (d ∈ D).
func (e *Envelope) HasDiagonal(d int) bool {
	return containsAny(e.dBands, d)
}

// HasStorageDiagonal reports whether d ∈ D⁺.
func (e *Envelope) HasStorageDiagonal(d int) bool {
	return containsAny(e.dPlusBands, d)
}

func containsAny(bands []ival, d int) bool {
	i := sort.Search(len(bands), func(i int) bool { return bands[i].Hi >= d })
	return i < len(bands) && bands[i].Lo <= d
}

// TotalStorageSize returns Σⱼ storageSize[j].
func (e *Envelope) TotalStorageSize() int { return e.totalStorageSize }

// StorageSize returns the number of D⁺ cells stored for row j.
func (e *Envelope) StorageSize(j int) int { return e.storageSize[j] }

// StorageOffset returns the cumulative cell offset of row j's storage.
func (e *Envelope) StorageOffset(j int) int { return e.storageOffset[j] }

// ForwardI returns, for row j, the ascending list of i-values i=d+j for
// every diagonal d ∈ D⁺ that intersects row j.
func (e *Envelope) ForwardI(j int) []int {
	return e.rowIs(j, false)
}

// ReverseI returns the same set as ForwardI but in descending order.
func (e *Envelope) ReverseI(j int) []int {
	return e.rowIs(j, true)
}

func (e *Envelope) rowIs(j int, descending bool) []int {
	lo, hi := -j, e.X-j
	hits, _ := e.tree.AllIntersections(lo, hi)
	sort.Slice(hits, func(i, k int) bool { return hits[i].Lo < hits[k].Lo })
	is := make([]int, 0, e.storageSize[j])
	for _, b := range hits {
		l, h := max(lo, b.Lo), min(hi, b.Hi)
		for d := l; d <= h; d++ {
			is = append(is, d+j)
		}
	}
	if descending {
		for i, k := 0, len(is)-1; i < k; i, k = i+1, k-1 {
			is[i], is[k] = is[k], is[i]
		}
	}
	return is
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
