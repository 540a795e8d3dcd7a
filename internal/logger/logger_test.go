package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersByLevelAndWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Output: &buf})
	require.NoError(t, err)

	l.Info("dropped")
	l.WithFields(F("component", "token")).Warn("storage unavailable", F("error", "quota"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "storage unavailable | component=token error=quota")
}

func TestLogger_NilIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.WithFields(F("k", "v")).Error("still nothing")
		assert.NoError(t, l.Close())
	})
}

func TestLogger_WritesToFile(t *testing.T) {
	path := t.TempDir() + "/logs/app.log"
	l, err := New(Config{Level: DEBUG, FilePath: path, MaxSize: 1 << 20, MaxAge: 7, MaxBackups: 2})
	require.NoError(t, err)
	l.Debug("hello")
	require.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
