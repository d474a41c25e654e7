package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// SampleWeights draws count independent weight vectors from the current
// posterior N(mean, covariance). The updater state is not touched.
func (lr *LinearRegression) SampleWeights(count int) ([][]float64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: sample count %d", ErrInvalidDimensions, count)
	}
	mu := []float64{lr.mean.AtVec(0), lr.mean.AtVec(1)}
	normal, ok := distmv.NewNormal(mu, lr.cov, lr.src)
	if !ok {
		return nil, fmt.Errorf("%w: posterior covariance", ErrNotPositiveDefinite)
	}
	samples := make([][]float64, count)
	for i := range samples {
		samples[i] = normal.Rand(nil)
	}
	return samples, nil
}

// GenerateObservation draws, for each x, one value from the predictive
// distribution N(mean(x), PredictiveVariance(x)). Draws are independent.
func (lr *LinearRegression) GenerateObservation(xs []float64) []float64 {
	ts := make([]float64, len(xs))
	for i, x := range xs {
		dist := distuv.Normal{
			Mu:    lr.mean.AtVec(0) + lr.mean.AtVec(1)*x,
			Sigma: math.Sqrt(lr.PredictiveVariance(x)),
			Src:   lr.src,
		}
		ts[i] = dist.Rand()
	}
	return ts
}
