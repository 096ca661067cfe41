package ratemodel

import (
	"math"
	"testing"
)

const testAlphabet = "ACGT"

func jukesCantor(alpha int, lambda, mu float64) *GTRModel {
	pi := make([]float64, alpha)
	exch := make([][]float64, alpha)
	for i := range pi {
		pi[i] = 1 / float64(alpha)
		exch[i] = make([]float64, alpha)
		for j := range exch[i] {
			if i != j {
				exch[i][j] = 1
			}
		}
	}
	return NewGTRModel(testAlphabet[:alpha], pi, exch, lambda, mu)
}

func TestSubstitutionMatrixRowStochastic(t *testing.T) {
	m := jukesCantor(4, 0.1, 0.1)
	mat := m.SubstitutionMatrix(0, 0.5)
	for i, row := range mat {
		sum := 0.0
		for _, p := range row {
			if p < 0 {
				t.Errorf("row %d has negative entry %v", i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %v, want 1", i, sum)
		}
	}
}

func TestSubstitutionMatrixIdentityAtZero(t *testing.T) {
	m := jukesCantor(4, 0.1, 0.1)
	mat := m.SubstitutionMatrix(0, 0)
	for i, row := range mat {
		for j, p := range row {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(p-want) > 1e-6 {
				t.Errorf("exp(Q*0)[%d][%d] = %v, want %v", i, j, p, want)
			}
		}
	}
}

func TestSurvivalProbDecaysWithLength(t *testing.T) {
	short := survivalProb(0.2, 1)
	long := survivalProb(0.2, 5)
	if !(long < short) {
		t.Errorf("survival should decrease with branch length: short=%v long=%v", short, long)
	}
	if survivalProb(0.2, 0) != 1 {
		t.Error("survival at t=0 should be 1")
	}
}

func TestTKFBetaBounds(t *testing.T) {
	b := tkfBeta(0.1, 0.2, 1.0)
	if b < 0 || b > 1 {
		t.Errorf("tkfBeta out of [0,1]: %v", b)
	}
	if tkfBeta(0.1, 0.2, 0) != 0 {
		t.Error("tkfBeta at t=0 should be 0")
	}
	// lambda == mu is the removable-singularity branch; check it agrees
	// with the general formula in the limit.
	same := tkfBeta(0.15, 0.15, 2.0)
	near := tkfBeta(0.15, 0.150001, 2.0)
	if math.Abs(same-near) > 1e-3 {
		t.Errorf("tkfBeta discontinuous at lambda=mu: %v vs %v", same, near)
	}
}

func TestProbModelLogSubMatchesSubstitutionMatrix(t *testing.T) {
	rate := jukesCantor(4, 0.1, 0.1)
	pm := NewProbModel(rate, 0.3)
	mat := rate.SubstitutionMatrix(0, 0.3)
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			got := math.Exp(pm.LogSub(0, a, b))
			if math.Abs(got-mat[a][b]) > 1e-9 {
				t.Errorf("LogSub(%d,%d) = %v, want %v", a, b, got, mat[a][b])
			}
		}
	}
}

func rootDistFor(rate RateModel) [][]float64 {
	dists := make([][]float64, rate.NumComponents())
	for c := range dists {
		dists[c] = rate.InsertionDist(c)
	}
	return dists
}

func TestPairHMMTransitionsSumToOne(t *testing.T) {
	rate := jukesCantor(4, 0.05, 0.05)
	left := NewProbModel(rate, 0.2)
	right := NewProbModel(rate, 0.4)
	h := NewPairHMM(left, right, rootDistFor(rate))

	// Continuing-only transitions (everything except the End transitions) must
	// exhaust each state's probability mass exactly.
	contMass := func(s State, dests ...State) float64 {
		sum := 0.0
		for _, d := range dests {
			if lp := h.LogTrans(s, d); !math.IsInf(lp, -1) {
				sum += math.Exp(lp)
			}
		}
		return sum
	}

	cases := map[State][]State{
		Start: {IMM, IMD, IDM},
		IMM:   {IMM, IMD, IDM},
		IMD:   {IMD, IMM},
		IDM:   {IDM, IMM},
	}
	for s, dests := range cases {
		if got := contMass(s, dests...); math.Abs(got-1) > 1e-9 {
			t.Errorf("state %v: continuing transition mass = %v, want 1", s, got)
		}
	}
}

func TestPairHMMEmitSymmetricWhenBranchesEqual(t *testing.T) {
	rate := jukesCantor(4, 0.05, 0.05)
	left := NewProbModel(rate, 0.3)
	right := NewProbModel(rate, 0.3)
	h := NewPairHMM(left, right, rootDistFor(rate))

	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			ab := h.LogEmit(IMM, a, b)
			ba := h.LogEmit(IMM, b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("LogEmit(IMM,%d,%d)=%v != LogEmit(IMM,%d,%d)=%v", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestPairHMMIndelEmitMatchesSingleBranch(t *testing.T) {
	rate := jukesCantor(4, 0.05, 0.05)
	left := NewProbModel(rate, 0.3)
	right := NewProbModel(rate, 0.6)
	h := NewPairHMM(left, right, rootDistFor(rate))

	for a := 0; a < 4; a++ {
		got := h.LogEmit(IMD, a, -1)
		want := h.logSingleEmit(left, 0, a)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("LogEmit(IMD,%d,-1) = %v, want %v", a, got, want)
		}
	}
}

func TestPairHMMDeltaIncreasesWithInsertionProbability(t *testing.T) {
	rate := jukesCantor(4, 0.01, 0.01)
	shortBranches := NewPairHMM(NewProbModel(rate, 0.1), NewProbModel(rate, 0.1), rootDistFor(rate))
	longBranches := NewPairHMM(NewProbModel(rate, 5.0), NewProbModel(rate, 5.0), rootDistFor(rate))

	if shortBranches.delta >= longBranches.delta {
		t.Errorf("delta should grow with branch length: short=%v long=%v", shortBranches.delta, longBranches.delta)
	}
}

func TestStateStringAndEnumeration(t *testing.T) {
	states := States()
	if len(states) != 5 {
		t.Fatalf("States() returned %d states, want 5", len(states))
	}
	if states[0] != Start || states[len(states)-1] != End {
		t.Errorf("States() = %v, want Start first and End last", states)
	}
	if IMM.String() != "IMM" {
		t.Errorf("IMM.String() = %q, want IMM", IMM.String())
	}
	if State(99).String() != "Invalid" {
		t.Errorf("out-of-range State.String() = %q, want Invalid", State(99).String())
	}
}
