package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Service: "lvcop", Level: "debug", Output: &buf})

	log.WithField("operation", "auth.login").WithError(errors.New("boom")).Warn("login failed")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "lvcop", event["service"])
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "auth.login", event["operation"])
	assert.Equal(t, "boom", event["error"])
	assert.Equal(t, "login failed", event["message"])
	assert.Contains(t, event, "time")
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("too quiet")
	assert.Empty(t, buf.String())

	log.Warnf("attempt %d failed", 2)
	assert.Contains(t, buf.String(), "attempt 2 failed")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "shout", Output: &buf})

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNop_DiscardsEverything(t *testing.T) {
	log := Nop()
	log.WithField("k", "v").Error("nothing happens")
	log.Infof("still nothing %d", 1)
}
