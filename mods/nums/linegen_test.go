package nums_test

import (
	"testing"
	"time"

	"github.com/machbase/neo-bayes/mods/nums"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestLine(t *testing.T) {
	fn := nums.Line(-0.3, 0.5)
	require.Equal(t, -0.3, fn(0))
	require.InDelta(t, -0.05, fn(0.5), 1e-12)
	require.InDelta(t, -0.8, fn(-1), 1e-12)
}

func TestLineObservations(t *testing.T) {
	fn := nums.Line(1.0, 2.0)
	xs := []float64{-1, 0, 1, 2}

	// noiseless generation is exact
	ts := nums.LineObservations(fn, 0, xs, rand.NewSource(1))
	require.Equal(t, []float64{-1, 1, 3, 5}, ts)

	// same seed, same draws
	a := nums.LineObservations(fn, 0.2, xs, rand.NewSource(7))
	b := nums.LineObservations(fn, 0.2, xs, rand.NewSource(7))
	require.Equal(t, a, b)
	require.NotEqual(t, ts, a)
}

func TestObservationGenerator(t *testing.T) {
	gen := nums.NewObservationGenerator(nums.Line(-0.3, 0.5), nums.GeneratorConfig{
		XMin:         -1,
		XMax:         1,
		NoiseSigma:   0,
		SamplingRate: 1000,
		Seed:         42,
	})
	defer gen.Stop()

	for i := 0; i < 5; i++ {
		select {
		case obs := <-gen.C:
			require.GreaterOrEqual(t, obs.X, -1.0)
			require.LessOrEqual(t, obs.X, 1.0)
			require.InDelta(t, -0.3+0.5*obs.X, obs.T, 1e-12)
		case <-time.After(3 * time.Second):
			t.Fatal("no observation within deadline")
		}
	}
}

func TestObservationGeneratorStop(t *testing.T) {
	gen := nums.NewObservationGenerator(nums.Line(0, 1), nums.GeneratorConfig{
		NoiseSigma:   0,
		SamplingRate: 1000,
		Seed:         1,
	})

	select {
	case <-gen.C:
	case <-time.After(3 * time.Second):
		t.Fatal("no observation within deadline")
	}

	gen.Stop()
	gen.Stop() // idempotent

	// C must drain and close after Stop even with a busy producer
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-gen.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Stop")
		}
	}
}
