// Package krbtest integrates ephemeral Kerberos realms with the standard
// testing package: one call provisions a realm, registers teardown with
// t.Cleanup, and skips the test when the host has no usable Kerberos
// tooling.
//
// Usage:
//
//	func TestGSSHandshake(t *testing.T) {
//		r := krbtest.WithRealm(t)
//		// test code using r.Environ(), r.KeytabPath(), ...
//	}
//
// The skip conditions are also exposed as plain predicates (ToolsAvailable,
// MinVersion, PluginInstalled) so callers can make their own decisions.
package krbtest

import (
	"context"
	"testing"

	"github.com/marmos91/krb5test/internal/krb5path"
	"github.com/marmos91/krb5test/internal/vercmp"
	"github.com/marmos91/krb5test/pkg/realm"
)

// ToolsAvailable reports whether every admin tool the provider needs
// exists on this host.
func ToolsAvailable(p realm.Provider) bool {
	return realm.ToolsAvailable(p, nil)
}

// MinVersion reports whether the installed Kerberos implementation is at
// least the given dotted version ("1.18"). False when no version can be
// determined.
func MinVersion(min string) bool {
	v, err := krb5path.Version()
	if err != nil {
		return false
	}
	return vercmp.AtLeast(v, min)
}

// PluginInstalled reports whether the named krb5 plugin shared object is
// installed, e.g. PluginInstalled("preauth", "spake").
func PluginInstalled(pluginType, name string) bool {
	return krb5path.PluginInstalled(pluginType, name)
}

// SkipIfNoTools skips the test when the provider's admin tools are not
// installed.
func SkipIfNoTools(t testing.TB, p realm.Provider) {
	t.Helper()
	if !ToolsAvailable(p) {
		t.Skipf("%s kerberos admin tools not installed", p)
	}
}

// SkipUnlessVersion skips the test when the installed Kerberos
// implementation is older than min.
func SkipUnlessVersion(t testing.TB, min string) {
	t.Helper()
	if !MinVersion(min) {
		t.Skipf("kerberos %s or newer not installed", min)
	}
}

// SkipUnlessPlugin skips the test when the named krb5 plugin is not
// installed.
func SkipUnlessPlugin(t testing.TB, pluginType, name string) {
	t.Helper()
	if !PluginInstalled(pluginType, name) {
		t.Skipf("krb5 %s plugin %q not installed", pluginType, name)
	}
}

// Option adjusts the realm configuration used by WithRealm.
type Option func(*realm.Config)

// WithProvider selects the Kerberos implementation.
func WithProvider(p realm.Provider) Option {
	return func(cfg *realm.Config) { cfg.Provider = p }
}

// WithRealmName overrides the realm name.
func WithRealmName(name string) Option {
	return func(cfg *realm.Config) { cfg.Realm = name }
}

// WithPrincipals adds principals to create during bootstrap.
func WithPrincipals(ps ...realm.Principal) Option {
	return func(cfg *realm.Config) {
		cfg.ExtraPrincipals = append(cfg.ExtraPrincipals, ps...)
	}
}

// WithMinVersion requires at least the given Kerberos version, skipping
// the test otherwise.
func WithMinVersion(min string) Option {
	return func(cfg *realm.Config) { cfg.MinVersion = min }
}

// WithConfig applies an arbitrary adjustment to the realm configuration.
func WithConfig(fn func(*realm.Config)) Option {
	return func(cfg *realm.Config) { fn(cfg) }
}

// WithRealm provisions a full realm for the test (database, default
// principals, running KDC, populated credential cache) and tears it down
// via t.Cleanup. The test is skipped when the host cannot run it and
// failed when bootstrap errors.
func WithRealm(t testing.TB, opts ...Option) *realm.Realm {
	t.Helper()

	cfg := realm.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	SkipIfNoTools(t, cfg.Provider)
	if cfg.MinVersion != "" {
		SkipUnlessVersion(t, cfg.MinVersion)
		cfg.MinVersion = "" // already enforced, skip instead of erroring
	}

	r, err := realm.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("bootstrap %s realm %s: %v", cfg.Provider, cfg.Realm, err)
	}
	t.Cleanup(r.Stop)
	return r
}
