// Package numeric provides stable log-space arithmetic shared by every
// component that accumulates probabilities in the Pair-HMM engine. All DP
// recurrences and profile probability sums go through this package; direct
// multiplication of probabilities is a defect (it underflows on anything
// but the shortest sequences).
package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NegInf is the log-probability of an impossible event.
var NegInf = math.Inf(-1)

// LogSumExp returns log(exp(a) + exp(b)), computed without leaving log
// space. LogSumExp(x, NegInf) == x for any x, and LogSumExp(NegInf,
// NegInf) == NegInf.
func LogSumExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// LogAccumExp sets *acc to LogSumExp(*acc, x). It is the in-place form
// used inside DP inner loops to avoid repeated pointer dereferences.
func LogAccumExp(acc *float64, x float64) {
	*acc = LogSumExp(*acc, x)
}

// LogSumExpAll reduces a slice of log-probabilities to their combined
// log-sum-exp, using gonum's vectorised implementation once the running
// maximum is known. An empty slice returns NegInf.
func LogSumExpAll(xs []float64) float64 {
	if len(xs) == 0 {
		return NegInf
	}
	return floats.LogSumExp(xs)
}

// LogInnerProduct computes log(sum_i exp(logP[i] + logQ[i])), i.e. the
// log-space inner product of two probability vectors given in log form.
// logP and logQ must have equal length.
func LogInnerProduct(logP, logQ []float64) float64 {
	if len(logP) != len(logQ) {
		panic("numeric: LogInnerProduct: vectors of unequal length")
	}
	if len(logP) == 0 {
		return NegInf
	}
	terms := make([]float64, len(logP))
	for i := range logP {
		terms[i] = logP[i] + logQ[i]
	}
	return LogSumExpAll(terms)
}

// IsNegInf reports whether x is the log-probability of an impossible
// event.
func IsNegInf(x float64) bool {
	return math.IsInf(x, -1)
}
