package realm

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/marmos91/krb5test/internal/logger"
)

// workspace owns the temporary directory tree holding all realm state:
// database files, generated configs, keytabs, credential caches, and
// daemon logs. It is exclusively owned by one Realm and destroyed exactly
// once at teardown.
type workspace struct {
	root      string
	destroyed atomic.Bool
}

// provisionWorkspace allocates a unique directory under baseDir (or the
// system temp directory). os.MkdirTemp creates the directory atomically
// with a random suffix, so concurrent provisions never collide.
func provisionWorkspace(baseDir string) (*workspace, error) {
	root, err := os.MkdirTemp(baseDir, "krb5test-*")
	if err != nil {
		return nil, &ProvisioningError{Err: err}
	}
	logger.Debug("Workspace provisioned", logger.KeyWorkspace, root)
	return &workspace{root: root}, nil
}

// destroy removes the workspace tree. It is idempotent and tolerates files
// already removed by the external tooling; a stubborn tree is logged as a
// warning rather than surfaced, so teardown never masks a test result.
func (w *workspace) destroy() {
	if !w.destroyed.CompareAndSwap(false, true) {
		return
	}
	if err := os.RemoveAll(w.root); err != nil {
		logger.Warn("Failed to remove workspace", logger.KeyWorkspace, w.root, logger.KeyError, err)
		return
	}
	logger.Debug("Workspace removed", logger.KeyWorkspace, w.root)
}

// gone reports whether destroy already ran.
func (w *workspace) gone() bool { return w.destroyed.Load() }

func (w *workspace) path(name string) string { return filepath.Join(w.root, name) }

func (w *workspace) krb5Conf() string     { return w.path("krb5.conf") }
func (w *workspace) kdcConf() string      { return w.path("kdc.conf") }
func (w *workspace) database() string     { return w.path("db") }
func (w *workspace) ccache() string       { return w.path("ccache") }
func (w *workspace) kadminCCache() string { return w.path("kadmin_ccache") }
func (w *workspace) keytab() string       { return w.path("keytab") }
func (w *workspace) clientKeytab() string { return w.path("client_keytab") }
func (w *workspace) aclFile() string      { return w.path("acl") }
func (w *workspace) dictFile() string     { return w.path("dictfile") }
func (w *workspace) stashFile() string    { return w.path("stash") }
func (w *workspace) kdcLog() string       { return w.path("kdc.log") }

// writeFile creates a file inside the workspace with the given content.
func (w *workspace) writeFile(name, content string) error {
	return os.WriteFile(w.path(name), []byte(content), 0o600)
}
