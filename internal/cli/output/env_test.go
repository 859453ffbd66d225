package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintEnvExports(t *testing.T) {
	var buf bytes.Buffer
	err := PrintEnvExports(&buf, map[string]string{
		"KRB5CCNAME":  "/tmp/krb5test-x/ccache",
		"KRB5_CONFIG": "/tmp/krb5test-x/krb5.conf",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"export KRB5CCNAME='/tmp/krb5test-x/ccache'\n"+
			"export KRB5_CONFIG='/tmp/krb5test-x/krb5.conf'\n",
		buf.String())
}

func TestPrintEnvExportsQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := PrintEnvExports(&buf, map[string]string{"K": "it's a test"})
	require.NoError(t, err)

	assert.Equal(t, `export K='it'\''s a test'`+"\n", buf.String())
}

func TestPrintEnvUnsets(t *testing.T) {
	var buf bytes.Buffer
	err := PrintEnvUnsets(&buf, map[string]string{
		"KRB5_CONFIG": "x",
		"KRB5CCNAME":  "y",
	})
	require.NoError(t, err)

	assert.Equal(t, "unset KRB5CCNAME\nunset KRB5_CONFIG\n", buf.String())
}
