package ratemodel

import "gonum.org/v1/gonum/mat"

// GTRModel is a single-component, general time-reversible substitution
// model: a stationary distribution pi over an alphabet of size A and a
// symmetric exchangeability matrix, combined into a rate matrix Q with
// Q[a][a] = -sum(Q[a][b] for b != a), normalised so the expected number
// of substitutions per unit time is 1. SubstitutionMatrix computes
// exp(Q*t) by repeated squaring, the way this engine's reference model
// exercises gonum/mat rather than hand-rolling a matrix exponential.
type GTRModel struct {
	alphabet    string
	alpha       int
	pi          []float64
	lambda, mu  float64
	insertDist  []float64
	q           *mat.Dense // the normalised rate matrix
}

// NewGTRModel builds a single-component GTR model over alphabet (whose
// length fixes A) from a stationary distribution pi (length A) and a
// symmetric exchangeability matrix exch (A x A; each pair uses the
// larger of exch[i][j] and exch[j][i], so either triangle may be
// filled). lambda and mu are the insertion and deletion rates shared
// with the indel process.
func NewGTRModel(alphabet string, pi []float64, exch [][]float64, lambda, mu float64) *GTRModel {
	a := len(pi)
	q := mat.NewDense(a, a, nil)
	for i := 0; i < a; i++ {
		for j := 0; j < a; j++ {
			if i == j {
				continue
			}
			r := exch[i][j]
			if exch[j][i] > r {
				r = exch[j][i]
			}
			q.Set(i, j, r*pi[j])
		}
	}
	for i := 0; i < a; i++ {
		sum := 0.0
		for j := 0; j < a; j++ {
			if j != i {
				sum += q.At(i, j)
			}
		}
		q.Set(i, i, -sum)
	}

	rate := 0.0
	for i := 0; i < a; i++ {
		rate += pi[i] * -q.At(i, i)
	}
	if rate > 0 {
		q.Scale(1/rate, q)
	}

	return &GTRModel{
		alphabet:   alphabet,
		alpha:      a,
		pi:         append([]float64(nil), pi...),
		lambda:     lambda,
		mu:         mu,
		insertDist: append([]float64(nil), pi...),
		q:          q,
	}
}

func (g *GTRModel) Alphabet() string        { return g.alphabet }
func (g *GTRModel) AlphabetSize() int       { return g.alpha }
func (g *GTRModel) NumComponents() int      { return 1 }
func (g *GTRModel) ComponentWeight(int) float64 { return 1 }
func (g *GTRModel) InsertionRate() float64  { return g.lambda }
func (g *GTRModel) DeletionRate() float64   { return g.mu }

func (g *GTRModel) InsertionDist(c int) []float64 {
	return g.insertDist
}

// SubstitutionMatrix returns exp(Q*t), computed via gonum/mat's scaling
// and squaring exponential.
func (g *GTRModel) SubstitutionMatrix(c int, t float64) [][]float64 {
	scaled := mat.NewDense(g.alpha, g.alpha, nil)
	scaled.Scale(t, g.q)

	var expQt mat.Dense
	expQt.Exp(scaled)

	out := make([][]float64, g.alpha)
	for i := 0; i < g.alpha; i++ {
		out[i] = make([]float64, g.alpha)
		rowSum := 0.0
		for j := 0; j < g.alpha; j++ {
			v := expQt.At(i, j)
			if v < 0 {
				v = 0
			}
			out[i][j] = v
			rowSum += v
		}
		// Renormalise away the small negative/overshoot entries scaling
		// and squaring can leave near machine epsilon, so callers always
		// see a genuinely row-stochastic matrix.
		if rowSum > 0 {
			for j := 0; j < g.alpha; j++ {
				out[i][j] /= rowSum
			}
		}
	}
	return out
}
