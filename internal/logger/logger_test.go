package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextOutputContainsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("kdc started", KeyRealm, "TEST.LOCAL", KeyPID, 4242)

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "kdc started")
	assert.Contains(t, out, "realm=TEST.LOCAL")
	assert.Contains(t, out, "pid=4242")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("not shown")
	Info("not shown either")
	Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "shown")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("bootstrap complete", KeyRealm, "TEST.LOCAL")

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "bootstrap complete", record["msg"])
	assert.Equal(t, "TEST.LOCAL", record["realm"])
}

func TestInvalidLevelIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	SetLevel("NOISY") // no-op
	Info("still at info")
	assert.Contains(t, buf.String(), "still at info")
}
