package numeric

import (
	"math"
	"testing"
)

func TestLogSumExpIdentities(t *testing.T) {
	tests := []struct {
		a, b float64
	}{
		{0, NegInf},
		{NegInf, 0},
		{NegInf, NegInf},
		{1.5, 1.5},
		{-3.2, 4.1},
	}
	for _, test := range tests {
		got := LogSumExp(test.a, test.b)
		if math.IsInf(test.a, -1) && math.IsInf(test.b, -1) {
			if !math.IsInf(got, -1) {
				t.Errorf("LogSumExp(-Inf, -Inf) = %v, want -Inf", got)
			}
			continue
		}
		if math.IsInf(test.a, -1) {
			if got != test.b {
				t.Errorf("LogSumExp(-Inf, %v) = %v, want %v", test.b, got, test.b)
			}
			continue
		}
		if math.IsInf(test.b, -1) {
			if got != test.a {
				t.Errorf("LogSumExp(%v, -Inf) = %v, want %v", test.a, got, test.a)
			}
			continue
		}
		max := math.Max(test.a, test.b)
		if got < max-1e-9 {
			t.Errorf("LogSumExp(%v, %v) = %v, want >= max(a,b) = %v",
				test.a, test.b, got, max)
		}
		if sym := LogSumExp(test.b, test.a); math.Abs(sym-got) > 1e-12 {
			t.Errorf("LogSumExp not symmetric: (%v,%v)=%v but (%v,%v)=%v",
				test.a, test.b, got, test.b, test.a, sym)
		}
	}
}

func TestLogAccumExp(t *testing.T) {
	acc := NegInf
	LogAccumExp(&acc, math.Log(0.25))
	LogAccumExp(&acc, math.Log(0.25))
	LogAccumExp(&acc, math.Log(0.5))
	if got := math.Exp(acc); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("LogAccumExp total = %v, want 1.0", got)
	}
}

func TestLogInnerProduct(t *testing.T) {
	logP := []float64{math.Log(0.5), math.Log(0.5)}
	logQ := []float64{math.Log(0.5), math.Log(0.5)}
	got := LogInnerProduct(logP, logQ)
	want := math.Log(0.5)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("LogInnerProduct = %v, want %v", got, want)
	}
}

func TestLogInnerProductEmpty(t *testing.T) {
	if got := LogInnerProduct(nil, nil); !math.IsInf(got, -1) {
		t.Errorf("LogInnerProduct(nil, nil) = %v, want -Inf", got)
	}
}
