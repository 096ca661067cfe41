package profile

import (
	"math"
	"strings"
	"testing"

	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/numeric"
)

type stubSeq struct {
	name, seq string
}

func (s stubSeq) Name() string { return s.name }
func (s stubSeq) Seq() string  { return s.seq }

func (s stubSeq) Tokens(alphabet string) ([]int, error) {
	out := make([]int, len(s.seq))
	for i := 0; i < len(s.seq); i++ {
		idx := strings.IndexByte(alphabet, s.seq[i])
		if idx < 0 {
			out[i] = -1
		} else {
			out[i] = idx
		}
	}
	return out, nil
}

func TestNewLeafChainShape(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "ACG"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Size() != 5 {
		t.Fatalf("Size() = %d, want 5 (START + 3 residues + END)", p.Size())
	}
	if p.State[0].Name != "START" || p.State[4].Name != "END" {
		t.Errorf("state names = %q, %q", p.State[0].Name, p.State[4].Name)
	}
	// START and every residue but the last exit only into an absorbing
	// residue state (Ready); the last residue exits only into the null
	// END (Wait).
	for i := 0; i <= 2; i++ {
		if !p.State[i].IsReady() {
			t.Errorf("state %d should be Ready", i)
		}
	}
	if !p.State[3].IsWait() {
		t.Error("last residue state should be Wait")
	}
	if !p.State[4].IsWaitOrReady() {
		t.Error("END should satisfy Wait/Ready trivially")
	}
}

func TestNewLeafSeqCoordsConsistent(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "ACGT"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AssertSeqCoordsConsistent(); err != nil {
		t.Error(err)
	}
	if got := p.State[4].SeqCoords[0]; got != 4 {
		t.Errorf("END seqCoord = %d, want 4", got)
	}
}

func TestCalcSumPathAbsorbProbsUniformInsertion(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "ACGT"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	logCptWeight := []float64{0}
	logInsDist := [][]float64{{
		math.Log(0.25), math.Log(0.25), math.Log(0.25), math.Log(0.25),
	}}
	got := p.CalcSumPathAbsorbProbs(logCptWeight, logInsDist)
	want := 4 * math.Log(0.25)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CalcSumPathAbsorbProbs = %v, want %v", got, want)
	}
}

func TestAlignColumnLooksUpResidue(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "ACGT"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	col := p.AlignColumn(2) // second residue state, 'C'
	if col[0] != 'C' {
		t.Errorf("AlignColumn(2)[0] = %q, want 'C'", col[0])
	}
}

func TestGetTransFindsExisting(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "AC"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	tr := p.GetTrans(0, 1)
	if tr == nil {
		t.Fatal("expected transition from START to state 1")
	}
	if p.GetTrans(0, 2) != nil {
		t.Error("expected no direct transition from START to state 2")
	}
}

func TestLeftMultiplyIdentityPreservesAbsorb(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "AC"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	identity := make([][][]float64, 1)
	identity[0] = make([][]float64, 4)
	for a := range identity[0] {
		identity[0][a] = make([]float64, 4)
		for b := range identity[0][a] {
			if a == b {
				identity[0][a][b] = 0
			} else {
				identity[0][a][b] = numeric.NegInf
			}
		}
	}
	out := p.LeftMultiply(identity)
	for i := 1; i <= 2; i++ {
		for a := 0; a < 4; a++ {
			if out.State[i].LpAbsorb[0][a] != p.State[i].LpAbsorb[0][a] {
				t.Errorf("state %d symbol %d: LeftMultiply by identity changed lpAbsorb", i, a)
			}
		}
	}
}

func TestAddReadyStatesSplitsMixedState(t *testing.T) {
	p := &Profile{
		AlphSize:   4,
		Components: 1,
		State: []State{
			{Name: "START"},
			{Name: "mixed", LpAbsorb: [][]float64{{0, 0, 0, 0}}},
			{Name: "absorbTarget", LpAbsorb: [][]float64{{0, 0, 0, 0}}},
			{Name: "END"},
		},
		Trans: []Transition{
			{Src: 0, Dest: 1},
			{Src: 1, Dest: 2}, // absorb-outgoing
			{Src: 1, Dest: 3}, // null-outgoing
			{Src: 2, Dest: 3},
		},
	}
	p.State[0].NullOut = []TransIndex{0}
	p.State[1].In = []TransIndex{0}
	p.State[1].AbsorbOut = []TransIndex{1}
	p.State[1].NullOut = []TransIndex{2}
	p.State[2].In = []TransIndex{1}
	p.State[2].NullOut = []TransIndex{3}
	p.State[3].In = []TransIndex{2, 3}

	if p.State[1].IsReady() || p.State[1].IsWait() {
		t.Fatal("test fixture state 1 should start out neither Ready nor Wait")
	}

	out := p.AddReadyStates()
	if out.Size() != p.Size()+1 {
		t.Fatalf("AddReadyStates should add exactly one state, got %d -> %d", p.Size(), out.Size())
	}
	for i, s := range out.State {
		if !s.IsWaitOrReady() {
			t.Errorf("state %d (%s) is neither Wait nor Ready after split", i, s.Name)
		}
	}
	for _, tr := range out.Trans {
		if tr.Src >= tr.Dest {
			t.Errorf("transition %+v violates topological order after renumbering", tr)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	p, err := NewLeaf(1, "ACGT", stubSeq{"x", "ACG"}, alignpath.Row(3))
	if err != nil {
		t.Fatal(err)
	}
	data, err := p.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Size() != p.Size() {
		t.Fatalf("round-tripped size = %d, want %d", back.Size(), p.Size())
	}
	for i := range p.State {
		if back.State[i].Name != p.State[i].Name {
			t.Errorf("state %d name = %q, want %q", i, back.State[i].Name, p.State[i].Name)
		}
	}
}
