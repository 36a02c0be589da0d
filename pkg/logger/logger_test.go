package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	log.Warnf("[Indexer] %s failed", "rarbg")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "[Indexer] rarbg failed")
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug").With("provider", "alldebrid")

	log.Debugf("resolved")
	assert.Contains(t, buf.String(), `"provider":"alldebrid"`)
}
