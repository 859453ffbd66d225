package krbtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/krb5test/pkg/realm"
)

func TestOptions(t *testing.T) {
	cfg := realm.DefaultConfig()

	WithProvider(realm.ProviderHeimdal)(&cfg)
	WithRealmName("OPTS.TEST")(&cfg)
	WithPrincipals(realm.Principal{Name: "alice", Password: "pw"})(&cfg)
	WithMinVersion("1.18")(&cfg)
	WithConfig(func(c *realm.Config) { c.StartKDC = false })(&cfg)

	assert.Equal(t, realm.ProviderHeimdal, cfg.Provider)
	assert.Equal(t, "OPTS.TEST", cfg.Realm)
	require.Len(t, cfg.ExtraPrincipals, 1)
	assert.Equal(t, "alice", cfg.ExtraPrincipals[0].Name)
	assert.Equal(t, "1.18", cfg.MinVersion)
	assert.False(t, cfg.StartKDC)
}

func TestMinVersionUnsatisfiable(t *testing.T) {
	// No realistic host carries this release.
	assert.False(t, MinVersion("999.0"))
}

func TestPluginInstalledAbsent(t *testing.T) {
	before := workspaceDirs(t)

	assert.False(t, PluginInstalled("preauth", "no-such-plugin"))

	// Predicates never provision anything.
	assert.Equal(t, before, workspaceDirs(t))
}

// workspaceDirs lists realm workspace directories under the system temp dir.
func workspaceDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "krb5test-") {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestWithRealm(t *testing.T) {
	r := WithRealm(t,
		WithRealmName("KRBTEST.LOCAL"),
		WithPrincipals(realm.Principal{Name: "alice", Password: "alicepw"}),
	)

	ctx := context.Background()

	t.Run("kdc address is exposed", func(t *testing.T) {
		assert.NotEmpty(t, r.KDCAddress())
	})

	t.Run("credential cache populated", func(t *testing.T) {
		out, err := r.Klist(ctx)
		require.NoError(t, err)
		assert.Contains(t, out, r.UserPrincipal())
	})

	t.Run("keytab holds the host principal", func(t *testing.T) {
		kt, err := r.Keytab()
		require.NoError(t, err)
		assert.NotEmpty(t, kt.Entries)
	})

	t.Run("extra principal can authenticate", func(t *testing.T) {
		_, err := r.Kinit(ctx, "alice", "alicepw")
		require.NoError(t, err)

		listing, err := r.Klist(ctx)
		require.NoError(t, err)
		assert.Contains(t, listing, "alice@KRBTEST.LOCAL")
	})

	t.Run("as exchange against the kdc", func(t *testing.T) {
		require.NoError(t, r.VerifyLogin(ctx))
	})

	t.Run("environment points into the workspace", func(t *testing.T) {
		env := r.Environ()
		assert.True(t, strings.HasPrefix(env["KRB5_CONFIG"], r.WorkspaceDir()))

		_, err := os.Stat(env["KRB5_CONFIG"])
		assert.NoError(t, err)
	})
}

func TestWithRealmTeardown(t *testing.T) {
	var root string
	t.Run("inner", func(t *testing.T) {
		r := WithRealm(t, WithConfig(func(c *realm.Config) {
			c.StartKDC = false
			c.StartKadmind = false
			c.GetCredentials = false
		}))
		root = r.WorkspaceDir()
	})

	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err), "workspace should be removed after the subtest")
}
