package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestConfigureWriter_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	ConfigureWriter(LevelWarn, &buf)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Infof("hidden %d", 1)
	assert.Zero(t, buf.Len())

	Warnf("shown %d", 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])

	buf.Reset()
	SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, CurrentLevel())

	l := WithField("session_id", "s1")
	l.Debug().Msg("scoped")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "s1", entry["session_id"])
}

func TestGetLogLevelFromEnv(t *testing.T) {
	t.Setenv("AIRA_DEBUG", "1")
	assert.Equal(t, LevelDebug, GetLogLevelFromEnv(LevelInfo))

	t.Setenv("AIRA_DEBUG", "")
	t.Setenv("DEBUG", "false")
	assert.Equal(t, LevelWarn, GetLogLevelFromEnv(LevelWarn))
}
