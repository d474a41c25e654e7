package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDemoRejectsBadBatch(t *testing.T) {
	for _, batch := range []int{0, -1} {
		cmd := &DemoCmd{Batch: batch}
		err := cmd.Run()
		require.Error(t, err)
		require.Contains(t, err.Error(), "batch")
	}
}

func TestFitRejectsBadFlags(t *testing.T) {
	cmd := &FitCmd{}
	cmd.NoiseSigma = 0
	cmd.Alpha = 2
	require.ErrorContains(t, cmd.Run(), "noise-sigma")

	cmd.NoiseSigma = 0.2
	cmd.Alpha = 0
	require.ErrorContains(t, cmd.Run(), "alpha")
}
