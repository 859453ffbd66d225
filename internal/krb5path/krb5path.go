// Package krb5path locates installed Kerberos tooling: admin binaries,
// the krb5 plugin directory, and the implementation version.
//
// Discovery order for tools is caller override, then PATH, then the
// conventional install location. Nothing here touches ambient Kerberos
// configuration; the package only inspects the filesystem and runs
// krb5-config, which is read-only.
package krb5path

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/krb5test/internal/logger"
	"github.com/marmos91/krb5test/internal/vercmp"
)

// DefaultKrb5Config is the conventional location of the krb5-config script.
const DefaultKrb5Config = "/usr/bin/krb5-config"

// LookTool resolves the path of an external Kerberos tool.
//
// Resolution order:
//  1. overrides[name], if present
//  2. PATH lookup
//  3. the provided fallback path
//
// The returned path is not guaranteed to exist when resolution falls through
// to the fallback; callers surface the eventual exec error instead.
func LookTool(name, fallback string, overrides map[string]string) string {
	if overrides != nil {
		if p, ok := overrides[name]; ok && p != "" {
			return p
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		logger.Debug("Using discovered tool path", "tool", name, logger.KeyPath, p)
		return p
	}
	logger.Debug("Using fallback tool path", "tool", name, logger.KeyPath, fallback)
	return fallback
}

// ToolAvailable reports whether the tool resolves to an existing executable.
func ToolAvailable(name, fallback string, overrides map[string]string) bool {
	p := LookTool(name, fallback, overrides)
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode()&0111 != 0
}

var (
	versionOnce sync.Once
	versionStr  string
	versionErr  error
)

// Version returns the installed Kerberos implementation version, parsed from
// "krb5-config --version" output ("Kerberos 5 release 1.21.2" -> "1.21.2").
// The result is cached for the lifetime of the process.
func Version() (string, error) {
	versionOnce.Do(func() {
		versionStr, versionErr = queryVersion(LookTool("krb5-config", DefaultKrb5Config, nil))
	})
	return versionStr, versionErr
}

// queryVersion runs the given krb5-config binary and extracts the version.
func queryVersion(krb5config string) (string, error) {
	out, err := exec.Command(krb5config, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w", krb5config, err)
	}
	v := vercmp.FromToolOutput(string(out))
	if v == "" {
		return "", fmt.Errorf("unparseable version output from %s: %q", krb5config, string(out))
	}
	return v, nil
}

var (
	pluginOnce sync.Once
	pluginPath string
)

// PluginDir returns the krb5 plugin directory (the directory holding the
// "kdc", "kdb", "preauth" etc. plugin subdirectories), or "" when none can
// be found.
//
// Search order mirrors how developers usually run against a local build:
// LD_LIBRARY_PATH entries first, then the install prefix reported by
// krb5-config with lib64 and lib. A candidate only counts if it contains at
// least one shared object. The result is cached.
func PluginDir() string {
	pluginOnce.Do(func() {
		pluginPath = findPluginDir()
	})
	return pluginPath
}

// PluginInstalled reports whether the named plugin shared object exists,
// e.g. PluginInstalled("kdb", "db2") checks <plugindir>/kdb/db2.so.
func PluginInstalled(pluginType, name string) bool {
	dir := PluginDir()
	if dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, pluginType, name+".so"))
	return err == nil
}

func findPluginDir() string {
	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range strings.Split(ldPath, ":") {
			if dir == "" {
				continue
			}
			if found := pluginDirUnder(dir); found != "" {
				return found
			}
		}
	}

	prefix, err := queryPrefix()
	if err != nil {
		logger.Debug("Cannot determine krb5 install prefix", logger.KeyError, err)
		return ""
	}

	// lib64 is distinct from lib on Fedora/RHEL family installs.
	for _, lib := range []string{"lib64", "lib"} {
		if found := pluginDirUnder(filepath.Join(prefix, lib)); found != "" {
			return found
		}
	}
	return ""
}

// pluginDirUnder looks for a krb5/plugins directory below root that contains
// at least one shared object.
func pluginDirUnder(root string) string {
	candidate := filepath.Join(root, "krb5", "plugins")
	if info, err := os.Stat(candidate); err != nil || !info.IsDir() {
		return ""
	}
	if !containsSharedObject(candidate) {
		return ""
	}
	return filepath.Clean(candidate)
}

func containsSharedObject(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".so") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func queryPrefix() (string, error) {
	out, err := exec.Command(LookTool("krb5-config", DefaultKrb5Config, nil), "--prefix").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("run krb5-config --prefix: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
