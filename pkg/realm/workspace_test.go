package realm

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionWorkspace(t *testing.T) {
	t.Run("creates a unique directory under the base", func(t *testing.T) {
		base := t.TempDir()

		ws, err := provisionWorkspace(base)
		require.NoError(t, err)
		defer ws.destroy()

		info, err := os.Stat(ws.root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, base, filepath.Dir(ws.root))
		assert.Contains(t, filepath.Base(ws.root), "krb5test-")
	})

	t.Run("concurrent provisions never collide", func(t *testing.T) {
		base := t.TempDir()
		const n = 16

		var mu sync.Mutex
		roots := make(map[string]struct{}, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ws, err := provisionWorkspace(base)
				assert.NoError(t, err)
				mu.Lock()
				roots[ws.root] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, roots, n)
	})

	t.Run("unwritable base returns a provisioning error", func(t *testing.T) {
		_, err := provisionWorkspace(filepath.Join(t.TempDir(), "missing", "deeper"))
		require.Error(t, err)
		var perr *ProvisioningError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestWorkspaceDestroy(t *testing.T) {
	t.Run("removes the tree", func(t *testing.T) {
		ws, err := provisionWorkspace(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, ws.writeFile("krb5.conf", "[libdefaults]\n"))

		ws.destroy()

		_, err = os.Stat(ws.root)
		assert.True(t, os.IsNotExist(err))
		assert.True(t, ws.gone())
	})

	t.Run("idempotent", func(t *testing.T) {
		ws, err := provisionWorkspace(t.TempDir())
		require.NoError(t, err)

		ws.destroy()
		ws.destroy() // must not panic or error
		assert.True(t, ws.gone())
	})
}

func TestWorkspacePaths(t *testing.T) {
	ws := &workspace{root: "/tmp/krb5test-x"}

	assert.Equal(t, "/tmp/krb5test-x/krb5.conf", ws.krb5Conf())
	assert.Equal(t, "/tmp/krb5test-x/kdc.conf", ws.kdcConf())
	assert.Equal(t, "/tmp/krb5test-x/ccache", ws.ccache())
	assert.Equal(t, "/tmp/krb5test-x/keytab", ws.keytab())
	assert.Equal(t, "/tmp/krb5test-x/client_keytab", ws.clientKeytab())
	assert.Equal(t, "/tmp/krb5test-x/acl", ws.aclFile())
	assert.Equal(t, "/tmp/krb5test-x/stash", ws.stashFile())
}

func TestWorkspaceWriteFile(t *testing.T) {
	ws, err := provisionWorkspace(t.TempDir())
	require.NoError(t, err)
	defer ws.destroy()

	require.NoError(t, ws.writeFile("dictfile", "weak_password\n"))

	data, err := os.ReadFile(ws.dictFile())
	require.NoError(t, err)
	assert.Equal(t, "weak_password\n", string(data))

	info, err := os.Stat(ws.dictFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
