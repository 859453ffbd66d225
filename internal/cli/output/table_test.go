package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	err := PrintTable(&buf, toolTable{rows: [][]string{
		{"/usr/sbin/krb5kdc", "ok"},
		{"/usr/sbin/kadmind", "ok"},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TOOL")
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "/usr/sbin/krb5kdc")
	assert.Contains(t, lines[2], "/usr/sbin/kadmind")
}

func TestPrintTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, toolTable{}))
	assert.Contains(t, buf.String(), "TOOL")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	err := SimpleTable(&buf, [][2]string{
		{"kerberos version", "1.21.3"},
		{"plugin directory", "/usr/lib/x86_64-linux-gnu/krb5/plugins"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "kerberos version")
	assert.Contains(t, out, "1.21.3")
	assert.Contains(t, out, ":")
	assert.NotContains(t, out, "KERBEROS VERSION")
}
