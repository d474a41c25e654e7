package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/machbase/neo-bayes/mods/logging"
	"github.com/stretchr/testify/require"
)

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logging.NewLog("test-filter", buf)
	log.SetLevel(logging.LevelInfo)

	log.Debugf("hidden %d", 1)
	log.Infof("visible %d", 2)
	log.Warn("warned")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "visible 2")
	require.Contains(t, out, "warned")
	require.Contains(t, out, "test-filter")
	// file writers must not carry terminal escapes
	require.NotContains(t, out, "\033[")
}

func TestLevelPattern(t *testing.T) {
	logging.SetLevel("quiet-*", logging.LevelError)

	require.Equal(t, logging.LevelError, logging.GetLevel("quiet-httpd"))
	require.Equal(t, logging.DefaultLevel(), logging.GetLevel("other"))
}

func TestParseLogLevel(t *testing.T) {
	for name, lvl := range map[string]logging.Level{
		"trace": logging.LevelTrace,
		"DEBUG": logging.LevelDebug,
		"Info":  logging.LevelInfo,
		"WARN":  logging.LevelWarn,
		"error": logging.LevelError,
	} {
		require.Equal(t, lvl, logging.ParseLogLevel(name))
		require.Equal(t, strings.ToUpper(name), logging.LogLevelName(lvl))
	}
}
