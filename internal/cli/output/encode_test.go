package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type realmSummary struct {
	Realm    string `json:"realm" yaml:"realm"`
	Provider string `json:"provider" yaml:"provider"`
	KDCPort  int    `json:"kdc_port" yaml:"kdc_port"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, realmSummary{Realm: "TEST.LOCAL", Provider: "mit", KDCPort: 61000})
	require.NoError(t, err)

	assert.JSONEq(t, `{"realm":"TEST.LOCAL","provider":"mit","kdc_port":61000}`, buf.String())
	assert.Contains(t, buf.String(), "\n  ")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, realmSummary{Realm: "TEST.LOCAL", Provider: "heimdal", KDCPort: 61000})
	require.NoError(t, err)

	assert.Equal(t, "realm: TEST.LOCAL\nprovider: heimdal\nkdc_port: 61000\n", buf.String())
}
