package acoustic

import (
	"fmt"
	"math"

	"github.com/ieee0824/wordrecog/internal/mathutil"
	"github.com/ieee0824/wordrecog/internal/simd"
)

// Gaussian represents a single multivariate Gaussian component with diagonal covariance.
type Gaussian struct {
	Mean      []float64 // [dim]
	Variance  []float64 // [dim] diagonal covariance
	LogWeight float64   // log mixture weight

	logNormConst float64
	invVariance  []float64 // [dim] 1/Variance
}

// Precompute recalculates cached normalization constants and inverse variances.
// Must be called after updating Mean, Variance, or LogWeight.
func (g *Gaussian) Precompute() {
	dim := len(g.Mean)
	g.logNormConst = float64(dim)/2.0*math.Log(2*math.Pi) + 0.5*sumLog(g.Variance)
	g.invVariance = make([]float64, dim)
	for i := range g.Variance {
		g.invVariance[i] = 1.0 / g.Variance[i]
	}
}

// LogProb computes the log density of observation x under this Gaussian,
// excluding the mixture weight.
func (g *Gaussian) LogProb(x []float64) float64 {
	maha := simd.MahalanobisAccum(x, g.Mean, g.invVariance)
	return -0.5*maha - g.logNormConst
}

func sumLog(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += math.Log(x)
	}
	return s
}

// GMM is a Gaussian Mixture Model with diagonal covariance.
type GMM struct {
	Components []Gaussian
	Dim        int

	// Component data packed contiguously, built by PrecomputeSoA.
	soaMean   []float64 // [k*dim]
	soaInvVar []float64 // [k*dim]
	soaConst  []float64 // [k] logWeight - logNormConst
}

// NewGMMWithParams creates a GMM from explicit parameters.
// means and variances are [k][dim]; logWeights is [k].
// Every variance must be positive and every row must share one dimension.
func NewGMMWithParams(means, variances [][]float64, logWeights []float64) (*GMM, error) {
	k := len(means)
	if k == 0 {
		return nil, fmt.Errorf("%w: gmm has no components", ErrMalformedModel)
	}
	if len(variances) != k || len(logWeights) != k {
		return nil, fmt.Errorf("%w: gmm has %d means, %d variances, %d weights",
			ErrMalformedModel, k, len(variances), len(logWeights))
	}
	dim := len(means[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: gmm dimension is zero", ErrMalformedModel)
	}
	g := &GMM{
		Components: make([]Gaussian, k),
		Dim:        dim,
	}
	for i := range g.Components {
		if len(means[i]) != dim || len(variances[i]) != dim {
			return nil, fmt.Errorf("%w: gmm component %d has dim %d/%d, want %d",
				ErrMalformedModel, i, len(means[i]), len(variances[i]), dim)
		}
		for d, v := range variances[i] {
			if !(v > 0) || math.IsInf(v, 1) {
				return nil, fmt.Errorf("%w: gmm component %d variance[%d] = %g",
					ErrMalformedModel, i, d, v)
			}
		}
		g.Components[i] = Gaussian{
			Mean:      append([]float64(nil), means[i]...),
			Variance:  append([]float64(nil), variances[i]...),
			LogWeight: logWeights[i],
		}
	}
	g.PrecomputeSoA()
	return g, nil
}

// NewDiagGaussian is shorthand for a single-component GMM with weight 1.
func NewDiagGaussian(mean, variance []float64) (*GMM, error) {
	return NewGMMWithParams([][]float64{mean}, [][]float64{variance}, []float64{0})
}

// PrecomputeSoA refreshes every component's cache and packs the
// component data for LogProb. Call after all components are set.
func (g *GMM) PrecomputeSoA() {
	k := len(g.Components)
	dim := g.Dim
	g.soaMean = make([]float64, k*dim)
	g.soaInvVar = make([]float64, k*dim)
	g.soaConst = make([]float64, k)
	for i := range g.Components {
		g.Components[i].Precompute()
		off := i * dim
		copy(g.soaMean[off:off+dim], g.Components[i].Mean)
		copy(g.soaInvVar[off:off+dim], g.Components[i].invVariance)
		g.soaConst[i] = g.Components[i].LogWeight - g.Components[i].logNormConst
	}
}

// validate checks the components against Dim and that PrecomputeSoA has
// been run since the component count last changed.
func (g *GMM) validate() error {
	k := len(g.Components)
	if k == 0 {
		return fmt.Errorf("%w: gmm has no components", ErrMalformedModel)
	}
	if g.Dim <= 0 {
		return fmt.Errorf("%w: gmm dimension %d", ErrMalformedModel, g.Dim)
	}
	for i := range g.Components {
		c := &g.Components[i]
		if len(c.Mean) != g.Dim || len(c.Variance) != g.Dim {
			return fmt.Errorf("%w: gmm component %d has dim %d/%d, want %d",
				ErrMalformedModel, i, len(c.Mean), len(c.Variance), g.Dim)
		}
		for d, v := range c.Variance {
			if !(v > 0) || math.IsInf(v, 1) {
				return fmt.Errorf("%w: gmm component %d variance[%d] = %g", ErrMalformedModel, i, d, v)
			}
		}
		if len(c.invVariance) != g.Dim {
			return fmt.Errorf("%w: gmm component %d is not precomputed", ErrMalformedModel, i)
		}
	}
	if len(g.soaMean) != k*g.Dim || len(g.soaInvVar) != k*g.Dim || len(g.soaConst) != k {
		return fmt.Errorf("%w: gmm cache is stale, call PrecomputeSoA", ErrMalformedModel)
	}
	return nil
}

// LogProb computes log P(x | this GMM) = log sum_k w_k * N(x; μ_k, σ_k).
func (g *GMM) LogProb(x []float64) float64 {
	if g.soaMean == nil {
		logSum := mathutil.LogZero
		for i := range g.Components {
			lp := g.Components[i].LogWeight + g.Components[i].LogProb(x)
			logSum = mathutil.LogAdd(logSum, lp)
		}
		return logSum
	}
	return g.logProbSoA(x)
}

func (g *GMM) logProbSoA(x []float64) float64 {
	dim := g.Dim
	logSum := mathutil.LogZero
	for c, cst := range g.soaConst {
		off := c * dim
		maha := simd.MahalanobisAccum(x, g.soaMean[off:off+dim], g.soaInvVar[off:off+dim])
		logSum = mathutil.LogAdd(logSum, cst-0.5*maha)
	}
	return logSum
}

// LogProbBatch computes LogProb for every observation in xs, writing into dst.
// dst must be at least len(xs) long.
func (g *GMM) LogProbBatch(xs [][]float64, dst []float64) {
	for i, x := range xs {
		dst[i] = g.LogProb(x)
	}
}
