package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigToPath(t *testing.T) {
	t.Run("creates a loadable sample", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")

		require.NoError(t, InitConfigToPath(path, false))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "KRBTEST.COM", cfg.Realm.Realm)
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("realm: {}\n"), 0o600))

		err := InitConfigToPath(path, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force")
	})

	t.Run("force overwrites", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

		require.NoError(t, InitConfigToPath(path, true))

		_, err := Load(path)
		assert.NoError(t, err)
	})
}

func TestInitConfigDefaultLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())
}
