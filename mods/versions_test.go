package mods

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	versionString = "v0.3.1-rc1"
	versionGitSHA = "4ab91d02"
	buildTimestamp = "2026/07/14T09:41"
	goVersionString = "1.25.0"

	ver := GetVersion()
	require.NotNil(t, ver)
	require.Equal(t, 0, ver.Major)
	require.Equal(t, 3, ver.Minor)
	require.Equal(t, 1, ver.Patch)
	require.Equal(t, "4ab91d02", ver.GitSHA)
	require.Equal(t, "V0.3.1-RC1", DisplayVersion())
	require.Equal(t, "V0.3.1-RC1 (4ab91d02 2026/07/14T09:41)", VersionString())
	require.Equal(t, "1.25.0", BuildCompiler())
	require.Equal(t, "2026/07/14T09:41", BuildTimestamp())
}
