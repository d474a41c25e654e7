// Package bayes implements conjugate-normal Bayesian linear regression
// for a scalar model t = w0 + w1*x with known Gaussian noise precision.
// The posterior over the two weights stays Gaussian, so an update is a
// closed-form recomputation of its mean vector and covariance matrix.
package bayes

import (
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidDimensions   = errors.New("bayes: invalid dimensions")
	ErrNoisePrecision      = errors.New("bayes: noise precision must be positive")
	ErrNotPositiveDefinite = errors.New("bayes: covariance is not positive definite")
	ErrSingularMatrix      = errors.New("bayes: singular matrix")
)

// weightDims is fixed to the bias weight and the slope weight.
const weightDims = 2

const defaultConditionLimit = 1e12

// LinearRegression maintains the Gaussian posterior over the weights of
// a straight-line model. It is not safe for concurrent use; each instance
// is expected to have a single owner.
type LinearRegression struct {
	noisePrecision float64
	conditionLimit float64

	priorMean     *mat.VecDense
	priorCov      *mat.SymDense
	priorPrec     *mat.SymDense
	priorPrecMean *mat.VecDense

	mean *mat.VecDense
	cov  *mat.SymDense

	src rand.Source
}

type Option func(*LinearRegression)

// WithRandomSource sets the random source used by SampleWeights and
// GenerateObservation. Mainly for reproducible tests.
func WithRandomSource(src rand.Source) Option {
	return func(lr *LinearRegression) {
		lr.src = src
	}
}

// WithConditionLimit sets the condition number above which Update
// refuses to invert and fails with ErrSingularMatrix.
func WithConditionLimit(limit float64) Option {
	return func(lr *LinearRegression) {
		lr.conditionLimit = limit
	}
}

// New returns a LinearRegression whose posterior is initialized to the
// given prior. priorMean must be a 2-vector, priorCov a 2x2 symmetric
// positive-definite matrix, noisePrecision the (known) precision of the
// observation noise.
func New(priorMean mat.Vector, priorCov mat.Symmetric, noisePrecision float64, opts ...Option) (*LinearRegression, error) {
	if priorMean == nil || priorCov == nil {
		return nil, fmt.Errorf("%w: nil prior", ErrInvalidDimensions)
	}
	if priorMean.Len() != weightDims {
		return nil, fmt.Errorf("%w: prior mean length %d, want %d", ErrInvalidDimensions, priorMean.Len(), weightDims)
	}
	if priorCov.SymmetricDim() != weightDims {
		return nil, fmt.Errorf("%w: prior covariance %dx%d, want %dx%d",
			ErrInvalidDimensions, priorCov.SymmetricDim(), priorCov.SymmetricDim(), weightDims, weightDims)
	}
	if !(noisePrecision > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrNoisePrecision, noisePrecision)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(priorCov); !ok {
		return nil, ErrNotPositiveDefinite
	}
	prec := mat.NewSymDense(weightDims, nil)
	if err := chol.InverseTo(prec); err != nil {
		return nil, fmt.Errorf("%w: prior covariance", ErrSingularMatrix)
	}

	lr := &LinearRegression{
		noisePrecision: noisePrecision,
		conditionLimit: defaultConditionLimit,
		priorMean:      mat.VecDenseCopyOf(priorMean),
		priorCov:       copySym(priorCov),
		priorPrec:      prec,
		mean:           mat.VecDenseCopyOf(priorMean),
		cov:            copySym(priorCov),
	}
	lr.priorPrecMean = mat.NewVecDense(weightDims, nil)
	lr.priorPrecMean.MulVec(lr.priorPrec, lr.priorMean)

	for _, opt := range opts {
		opt(lr)
	}
	if lr.src == nil {
		lr.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return lr, nil
}

// Mean returns the current posterior mean of the weights.
func (lr *LinearRegression) Mean() mat.Vector {
	return lr.mean
}

// Covariance returns the current posterior covariance of the weights.
func (lr *LinearRegression) Covariance() mat.Symmetric {
	return lr.cov
}

// NoisePrecision returns the fixed observation noise precision.
func (lr *LinearRegression) NoisePrecision() float64 {
	return lr.noisePrecision
}

// DesignMatrix builds the Nx2 design matrix for the straight-line basis:
// column 0 is all ones, column 1 is xs. Returns nil for an empty input.
func DesignMatrix(xs []float64) *mat.Dense {
	if len(xs) == 0 {
		return nil
	}
	phi := mat.NewDense(len(xs), weightDims, nil)
	for i, x := range xs {
		phi.Set(i, 0, 1)
		phi.Set(i, 1, x)
	}
	return phi
}

// Update replaces the posterior with the one implied by the ORIGINAL
// prior and the given batch. It does not chain posteriors across calls;
// to refine an estimate, pass the cumulative dataset. An empty batch
// leaves the posterior untouched.
//
// Update is atomic: when it returns an error the posterior is exactly
// what it was before the call.
func (lr *LinearRegression) Update(xs, ts []float64) error {
	if len(xs) != len(ts) {
		return fmt.Errorf("%w: %d x-values, %d t-values", ErrInvalidDimensions, len(xs), len(ts))
	}
	if len(xs) == 0 {
		return nil
	}

	phi := DesignMatrix(xs)

	var phiTphi mat.Dense
	phiTphi.Mul(phi.T(), phi)

	newPrec := mat.NewSymDense(weightDims, nil)
	for i := 0; i < weightDims; i++ {
		for j := i; j < weightDims; j++ {
			newPrec.SetSym(i, j, lr.priorPrec.At(i, j)+lr.noisePrecision*phiTphi.At(i, j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(newPrec); !ok {
		return fmt.Errorf("%w: posterior precision is not positive definite", ErrSingularMatrix)
	}
	if cond := chol.Cond(); cond > lr.conditionLimit {
		return fmt.Errorf("%w: condition number %.4g exceeds limit %.4g", ErrSingularMatrix, cond, lr.conditionLimit)
	}

	newCov := mat.NewSymDense(weightDims, nil)
	if err := chol.InverseTo(newCov); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}

	rhs := mat.NewVecDense(weightDims, nil)
	rhs.MulVec(phi.T(), mat.NewVecDense(len(ts), ts))
	rhs.AddScaledVec(lr.priorPrecMean, lr.noisePrecision, rhs)

	newMean := mat.NewVecDense(weightDims, nil)
	if err := chol.SolveVecTo(newMean, rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}

	lr.mean = newMean
	lr.cov = newCov
	return nil
}

func copySym(s mat.Symmetric) *mat.SymDense {
	d := mat.NewSymDense(s.SymmetricDim(), nil)
	d.CopySym(s)
	return d
}

// PredictiveVariance returns 1/beta + phi(x)' S phi(x), the variance of
// the predictive distribution at x under the current posterior.
func (lr *LinearRegression) PredictiveVariance(x float64) float64 {
	phi := mat.NewVecDense(weightDims, []float64{1, x})
	sp := mat.NewVecDense(weightDims, nil)
	sp.MulVec(lr.cov, phi)
	return 1/lr.noisePrecision + mat.Dot(phi, sp)
}

// PredictionBound evaluates, for each x, the predictive mean shifted by
// numStdevs predictive standard deviations. Positive numStdevs gives an
// upper bound, negative a lower bound, zero the mean line itself.
func (lr *LinearRegression) PredictionBound(xs []float64, numStdevs float64) []float64 {
	bounds := make([]float64, len(xs))
	for i, x := range xs {
		m := lr.mean.AtVec(0) + lr.mean.AtVec(1)*x
		bounds[i] = m + numStdevs*math.Sqrt(lr.PredictiveVariance(x))
	}
	return bounds
}
