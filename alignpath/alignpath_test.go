package alignpath

import "testing"

func TestResiduesInRowConcat(t *testing.T) {
	a := AlignPath{0: BitSequence{true, false, true}}
	b := AlignPath{0: BitSequence{false, true}}
	c := Concat(a, b)

	if got, want := ResiduesInRowOf(c, 0), ResiduesInRowOf(a, 0)+ResiduesInRowOf(b, 0); got != want {
		t.Errorf("residuesInRow(concat) = %d, want %d", got, want)
	}
	if got, want := Columns(c), Columns(a)+Columns(b); got != want {
		t.Errorf("columns(concat) = %d, want %d", got, want)
	}
}

func TestConcatDisjointRows(t *testing.T) {
	a := AlignPath{0: BitSequence{true, true}}
	b := AlignPath{1: BitSequence{false, true, true}}
	c := Concat(a, b)

	if got, want := Columns(c), 5; got != want {
		t.Fatalf("columns = %d, want %d", got, want)
	}
	row0 := c[0]
	row1 := c[1]
	if len(row0) != 5 || len(row1) != 5 {
		t.Fatalf("rows not padded to full width: %v %v", row0, row1)
	}
	if ResiduesInRowOf(c, 0) != 2 {
		t.Errorf("row 0 residues = %d, want 2", ResiduesInRowOf(c, 0))
	}
	if ResiduesInRowOf(c, 1) != 2 {
		t.Errorf("row 1 residues = %d, want 2", ResiduesInRowOf(c, 1))
	}
}

func TestUnionDisjointRows(t *testing.T) {
	a := AlignPath{0: BitSequence{true, false}}
	b := AlignPath{1: BitSequence{true, true, false}}
	u := Union(a, b)
	if Columns(u) != 3 {
		t.Errorf("columns(union) = %d, want 3", Columns(u))
	}
	if ResiduesInRowOf(u, 0) != 1 {
		t.Errorf("row 0 residues = %d, want 1", ResiduesInRowOf(u, 0))
	}
}

func TestUnionPanicsOnOverlap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Union to panic on overlapping rows")
		}
	}()
	a := AlignPath{0: BitSequence{true}}
	b := AlignPath{0: BitSequence{false}}
	Union(a, b)
}

func TestMergeCommutativeOnResidueCounts(t *testing.T) {
	a := AlignPath{0: BitSequence{true, false}, 1: BitSequence{false, true}}
	b := AlignPath{0: BitSequence{true}, 2: BitSequence{true}}

	m1 := Merge([]AlignPath{a, b})
	m2 := Merge([]AlignPath{b, a})

	if Columns(m1) != Columns(m2) {
		t.Errorf("columns differ by order: %d vs %d", Columns(m1), Columns(m2))
	}
	for _, row := range []Row{0, 1, 2} {
		if ResiduesInRowOf(m1, row) != ResiduesInRowOf(m2, row) {
			t.Errorf("row %d residues differ by order: %d vs %d",
				row, ResiduesInRowOf(m1, row), ResiduesInRowOf(m2, row))
		}
	}
}

func TestMergeAssociativeOnResidueCounts(t *testing.T) {
	a := AlignPath{0: BitSequence{true}}
	b := AlignPath{1: BitSequence{true, false}}
	c := AlignPath{2: BitSequence{false, true, true}}

	left := Merge([]AlignPath{Merge([]AlignPath{a, b}), c})
	right := Merge([]AlignPath{a, Merge([]AlignPath{b, c})})

	if Columns(left) != Columns(right) {
		t.Errorf("columns differ by grouping: %d vs %d", Columns(left), Columns(right))
	}
	for _, row := range []Row{0, 1, 2} {
		if ResiduesInRowOf(left, row) != ResiduesInRowOf(right, row) {
			t.Errorf("row %d residues differ by grouping", row)
		}
	}
}

func TestColumnsEmptyPath(t *testing.T) {
	if Columns(AlignPath{}) != 0 {
		t.Errorf("columns(empty) = %d, want 0", Columns(AlignPath{}))
	}
}
