package nums

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// LineFunc evaluates a ground-truth straight line.
type LineFunc func(x float64) float64

func Line(intercept, slope float64) LineFunc {
	return func(x float64) float64 {
		return intercept + slope*x
	}
}

// LineObservations returns one noisy target per x, drawn from
// N(fn(x), noiseSigma^2). A nil src falls back to a time-seeded source.
func LineObservations(fn LineFunc, noiseSigma float64, xs []float64, src rand.Source) []float64 {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	noise := distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: src}
	ts := make([]float64, len(xs))
	for i, x := range xs {
		ts[i] = fn(x) + noise.Rand()
	}
	return ts
}

// Observation is a single (x, t) pair emitted by ObservationGenerator.
type Observation struct {
	X float64 `json:"x"`
	T float64 `json:"t"`
}

// ObservationGenerator emits noisy observations of a line at the given
// sampling rate, x drawn uniformly from [XMin, XMax].
type ObservationGenerator struct {
	C <-chan Observation

	ch           chan Observation
	ticker       *time.Ticker
	done         chan struct{}
	stopOnce     sync.Once
	samplingRate int
	xdist        distuv.Uniform
	noise        distuv.Normal
	fn           LineFunc
}

type GeneratorConfig struct {
	XMin         float64
	XMax         float64
	NoiseSigma   float64
	SamplingRate int
	Seed         uint64
}

func NewObservationGenerator(fn LineFunc, conf GeneratorConfig) *ObservationGenerator {
	if conf.SamplingRate <= 0 {
		conf.SamplingRate = 1
	}
	if conf.XMax <= conf.XMin {
		conf.XMin, conf.XMax = -1, 1
	}
	seed := conf.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	gen := &ObservationGenerator{
		ch:           make(chan Observation, 100),
		done:         make(chan struct{}),
		fn:           fn,
		samplingRate: conf.SamplingRate,
		xdist:        distuv.Uniform{Min: conf.XMin, Max: conf.XMax, Src: src},
		noise:        distuv.Normal{Mu: 0, Sigma: conf.NoiseSigma, Src: src},
	}
	gen.C = gen.ch
	gen.ticker = time.NewTicker(time.Second / time.Duration(gen.samplingRate))

	go gen.run()
	return gen
}

// run owns gen.ch; it is the only goroutine that closes it.
func (gen *ObservationGenerator) run() {
	defer close(gen.ch)
	for {
		select {
		case <-gen.done:
			return
		case <-gen.ticker.C:
			x := gen.xdist.Rand()
			obs := Observation{X: x, T: gen.fn(x) + gen.noise.Rand()}
			select {
			case gen.ch <- obs:
			case <-gen.done:
				return
			}
		}
	}
}

// Stop halts the generator and closes C once the producer drains out.
// Safe to call more than once.
func (gen *ObservationGenerator) Stop() {
	gen.stopOnce.Do(func() {
		gen.ticker.Stop()
		close(gen.done)
	})
}
