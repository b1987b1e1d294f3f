package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
// It stays finite so that sums of log values never produce NaN.
const LogZero = -1e30

// IsLogZero reports whether x is at or below the LogZero floor.
func IsLogZero(x float64) bool {
	return x <= LogZero+1
}

// SafeLog returns log(p), mapping p <= 0 to LogZero.
func SafeLog(p float64) float64 {
	if p <= 0 {
		return LogZero
	}
	return math.Log(p)
}

// NegInf maps LogZero-floored values to math.Inf(-1) for callers outside the
// log-domain code, which compare against real negative infinity.
func NegInf(x float64) float64 {
	if IsLogZero(x) {
		return math.Inf(-1)
	}
	return x
}

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Skips exp/log1p when the smaller value contributes less than float64
// precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b == LogZero {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSum returns log(sum(exp(v))), or LogZero for an empty vector.
func LogSum(v []float64) float64 {
	s := LogZero
	for _, x := range v {
		s = LogAdd(s, x)
	}
	return s
}
