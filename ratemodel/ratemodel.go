// Package ratemodel derives, for a single branch length, the substitution
// and geometric-indel probabilities the Pair-HMM DP (package dp) runs
// over, and composes a left/right branch pair plus a root distribution
// into the actual three-state Pair-HMM used to align two subtree
// profiles under their common ancestor (§4.5).
package ratemodel

import (
	"math"

	"github.com/BurntSushi/profalign/numeric"
)

// RateModel is the external continuous-time substitution and indel model
// (§6): alphabet, mixture weights, insertion/deletion rates, and a
// branch-length-indexed substitution matrix. Concrete RateModels (e.g.
// package ratemodel's Reference GTR implementation, or a caller's own)
// are collaborators supplied to the engine, not part of the core.
type RateModel interface {
	// Alphabet returns the characters recognised by this model, in
	// token order: Alphabet()[a] is the character for token a.
	Alphabet() string
	AlphabetSize() int
	NumComponents() int
	ComponentWeight(c int) float64
	InsertionRate() float64
	DeletionRate() float64
	// InsertionDist returns insProb[c][a] for component c: the
	// stationary distribution new insertions are drawn from.
	InsertionDist(c int) []float64
	// SubstitutionMatrix returns the A x A row-stochastic matrix
	// P(a -> b | t) for mixture component c and branch length t.
	SubstitutionMatrix(c int, t float64) [][]float64
}

// ProbModel holds the per-branch derived quantities for one child branch
// of length t: the log substitution matrices (one per mixture component)
// and the geometric indel survival/insertion probabilities.
type ProbModel struct {
	rate RateModel
	t    float64

	// logSub[c][a][b] = log P(b | a) for component c over this branch.
	logSub [][][]float64

	// pSurvive is the probability an ancestral residue is not deleted
	// over this branch; pInsert is the TKF91 "beta" function governing
	// the geometric run-length of new insertions linked to a position.
	pSurvive float64
	pInsert  float64
}

// NewProbModel derives the per-branch quantities for rate model `rate`
// over branch length t.
func NewProbModel(rate RateModel, t float64) *ProbModel {
	c := rate.NumComponents()
	logSub := make([][][]float64, c)
	for comp := 0; comp < c; comp++ {
		mat := rate.SubstitutionMatrix(comp, t)
		logMat := make([][]float64, len(mat))
		for a, row := range mat {
			logMat[a] = make([]float64, len(row))
			for b, p := range row {
				logMat[a][b] = safeLog(p)
			}
		}
		logSub[comp] = logMat
	}

	lambda, mu := rate.InsertionRate(), rate.DeletionRate()
	return &ProbModel{
		rate:     rate,
		t:        t,
		logSub:   logSub,
		pSurvive: survivalProb(mu, t),
		pInsert:  tkfBeta(lambda, mu, t),
	}
}

func safeLog(p float64) float64 {
	if p <= 0 {
		return numeric.NegInf
	}
	return math.Log(p)
}

// survivalProb is exp(-mu*t), the probability a single ancestral residue
// is not deleted over a branch of length t under a rate-mu Poisson
// deletion process.
func survivalProb(mu, t float64) float64 {
	if mu <= 0 || t <= 0 {
		return 1
	}
	return math.Exp(-mu * t)
}

// tkfBeta is the TKF91 beta function: the geometric-run-length parameter
// governing how many new insertions, on average, become "linked" after
// any given alignment position over a branch of length t, under
// insertion rate lambda and deletion rate mu.
func tkfBeta(lambda, mu, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if lambda <= 0 {
		return 0
	}
	if lambda == mu {
		return (lambda * t) / (1 + lambda*t)
	}
	diff := mu - lambda
	num := lambda * (1 - math.Exp(-diff*t))
	den := mu - lambda*math.Exp(-diff*t)
	if den <= 0 {
		return 0
	}
	return num / den
}

// LogSub returns log P(b | a) for mixture component c over this branch.
func (m *ProbModel) LogSub(c, a, b int) float64 {
	return m.logSub[c][a][b]
}

// LogSubAll returns the full logSub[c][a][b] table for this branch, in
// the shape profile.Profile.LeftMultiply expects.
func (m *ProbModel) LogSubAll() [][][]float64 {
	return m.logSub
}

// PSurvive returns the probability a residue present at the parent
// survives (is not deleted) along this branch.
func (m *ProbModel) PSurvive() float64 { return m.pSurvive }

// PInsert returns the TKF91 beta-function insertion-linkage probability
// for this branch.
func (m *ProbModel) PInsert() float64 { return m.pInsert }

// RateModel returns the rate model this ProbModel was derived from.
func (m *ProbModel) RateModel() RateModel { return m.rate }
