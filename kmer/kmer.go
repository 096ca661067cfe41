// Package kmer builds, for a single tokenised sequence, a mapping from
// k-mer code to the sorted list of start positions where that k-mer
// occurs. It is the seeding structure the diagonal envelope (package
// diagenv) uses to find candidate DP diagonals without computing the full
// O(X*Y) grid.
package kmer

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/wyhash"
)

// MinLen and MaxLen bound the k-mer length accepted by New, per the
// engine's configuration contract (k in [5,32]).
const (
	MinLen = 5
	MaxLen = 32
)

// InvalidToken marks a tokenised position that cannot participate in any
// k-mer window (a wildcard or otherwise invalid symbol).
const InvalidToken = -1

// Index maps k-mer code to an ascending list of start positions in the
// sequence that produced it.
type Index struct {
	k       int
	alpha   int
	table   *openTable
	nWindow int
}

// New builds a k-mer index over tokens (values in [0,alphaSize), or
// InvalidToken) using the given alphabet size and k-mer length. Windows
// containing any invalid token are skipped entirely, per §3/§4.3.
func New(tokens []int, alphaSize, k int) (*Index, error) {
	if k < MinLen || k > MaxLen {
		return nil, fmt.Errorf("kmer: length %d out of range [%d,%d]", k, MinLen, MaxLen)
	}
	if alphaSize < 1 {
		return nil, fmt.Errorf("kmer: alphabet size %d must be positive", alphaSize)
	}

	idx := &Index{k: k, alpha: alphaSize, table: newOpenTable(estimateBuckets(len(tokens)))}
	if len(tokens) < k {
		return idx, nil
	}

	for start := 0; start+k <= len(tokens); start++ {
		code, ok := Code(tokens, start, k, alphaSize)
		if !ok {
			continue
		}
		idx.table.insert(code, start)
		idx.nWindow++
	}
	return idx, nil
}

// K returns the k-mer length this index was built with.
func (idx *Index) K() int { return idx.k }

// NumWindows returns the number of valid (all-tokens-valid) k-mer windows
// folded into the index.
func (idx *Index) NumWindows() int { return idx.nWindow }

// Positions returns the ascending list of start positions where the given
// k-mer code occurs, or nil if it never occurs.
func (idx *Index) Positions(code uint64) []int {
	return idx.table.get(code)
}

// Code computes the k-mer code of a single window starting at a known-valid
// position: Σ token[i+j]·A^(k-1-j). It is exposed so callers (diagenv) can
// compute query-side codes with the same encoding without re-deriving it.
func Code(tokens []int, start, k, alphaSize int) (code uint64, ok bool) {
	var c int64
	for j := 0; j < k; j++ {
		tok := tokens[start+j]
		if tok < 0 || tok >= alphaSize {
			return 0, false
		}
		c = c*int64(alphaSize) + int64(tok)
	}
	return uint64(c), true
}

// openTable is a small open-addressed hash table from uint64 k-mer code to
// a growing []int of positions, hashed with wyhash in place of Go's
// built-in map hash, matching the way this engine's seeding structures
// trade a slower bucketed hash for a faster fixed one at k-mer-index
// scale.
type openTable struct {
	keys     []uint64
	used     []bool
	vals     [][]int
	mask     uint64
	size     int
	capacity int
}

func newOpenTable(hint int) *openTable {
	cap := nextPow2(hint)
	if cap < 16 {
		cap = 16
	}
	return &openTable{
		keys:     make([]uint64, cap),
		used:     make([]bool, cap),
		vals:     make([][]int, cap),
		mask:     uint64(cap - 1),
		capacity: cap,
	}
}

func estimateBuckets(seqLen int) int {
	return seqLen / 2
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

var seed = binary.LittleEndian.Uint64([]byte("kmer-idx"))

func hash(code uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], code)
	return wyhash.Hash(buf[:], seed)
}

func (t *openTable) insert(code uint64, pos int) {
	if t.size*2 >= t.capacity {
		t.grow()
	}
	i := hash(code) & t.mask
	for t.used[i] {
		if t.keys[i] == code {
			t.vals[i] = append(t.vals[i], pos)
			return
		}
		i = (i + 1) & t.mask
	}
	t.used[i] = true
	t.keys[i] = code
	t.vals[i] = []int{pos}
	t.size++
}

func (t *openTable) get(code uint64) []int {
	i := hash(code) & t.mask
	for t.used[i] {
		if t.keys[i] == code {
			return t.vals[i]
		}
		i = (i + 1) & t.mask
	}
	return nil
}

func (t *openTable) grow() {
	old := *t
	*t = *newOpenTable(t.capacity * 2)
	for i, used := range old.used {
		if !used {
			continue
		}
		for _, pos := range old.vals[i] {
			t.insert(old.keys[i], pos)
		}
	}
}
