package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, ParseLevel("debug"))
	assert.Equal(t, log.WARN, ParseLevel(" WARN "))
	assert.Equal(t, log.ERROR, ParseLevel("error"))
	assert.Equal(t, log.OFF, ParseLevel("OFF"))
	assert.Equal(t, log.INFO, ParseLevel(""))
	assert.Equal(t, log.INFO, ParseLevel("verbose"))
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("checkout", "INFO")
	l.SetOutput(&buf)

	l.Infoj(log.JSON{"event": "checkout", "user_id": 1})

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "checkout", got["prefix"])
	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "checkout", got["event"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New("checkout", "ERROR")
	l.SetOutput(&buf)

	l.Infoj(log.JSON{"event": "ignored"})

	assert.Empty(t, buf.String())
}
