package kmer

import (
	"reflect"
	"testing"
)

// DNA tokens: A=0 C=1 G=2 T=3.
func tok(s string) []int {
	out := make([]int, len(s))
	for i, c := range s {
		switch c {
		case 'A':
			out[i] = 0
		case 'C':
			out[i] = 1
		case 'G':
			out[i] = 2
		case 'T':
			out[i] = 3
		default:
			out[i] = InvalidToken
		}
	}
	return out
}

func TestRejectsOutOfRangeLength(t *testing.T) {
	if _, err := New(tok("ACGTACGTAC"), 4, 4); err == nil {
		t.Fatal("expected error for k=4 (< MinLen)")
	}
	if _, err := New(tok("ACGTACGTAC"), 4, 33); err == nil {
		t.Fatal("expected error for k=33 (> MaxLen)")
	}
}

func TestBasicPositions(t *testing.T) {
	seq := "AAAAAACGTACGTAAAAA"
	idx, err := New(tok(seq), 4, 5)
	if err != nil {
		t.Fatal(err)
	}
	code, ok := Code(tok("ACGTA"), 0, 5, 4)
	if !ok {
		t.Fatal("Code should succeed on valid window")
	}
	got := idx.Positions(code)
	want := []int{5, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Positions(ACGTA) = %v, want %v", got, want)
	}
}

func TestSkipsInvalidWindows(t *testing.T) {
	seq := "ACGTNACGTACGT"
	idx, err := New(tok(seq), 4, 5)
	if err != nil {
		t.Fatal(err)
	}
	// len=13, k=5 gives 9 candidate windows; every window whose span
	// covers index 4 (the N) must be skipped, leaving windows starting
	// at 5..8 (4 windows).
	if idx.NumWindows() != 4 {
		t.Errorf("NumWindows = %d, want 4", idx.NumWindows())
	}
}

func TestCodeDistinctForDistinctKmers(t *testing.T) {
	c1, _ := Code(tok("ACGTA"), 0, 5, 4)
	c2, _ := Code(tok("ACGTC"), 0, 5, 4)
	if c1 == c2 {
		t.Error("distinct k-mers produced the same code")
	}
}

func TestCodeInvalidOnWildcard(t *testing.T) {
	if _, ok := Code(tok("ACGNA"), 0, 5, 4); ok {
		t.Error("Code should fail on a window containing an invalid token")
	}
}
