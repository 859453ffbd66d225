// Package realm provisions throwaway Kerberos realms for test runs.
//
// A Realm owns an isolated temporary workspace holding a generated
// krb5.conf, KDC profile, principal database, keytabs, and credential
// cache, plus any KDC/kadmind daemon processes it started. Nothing
// outside the workspace is ever touched: the realm is wired together
// purely through environment variables (KRB5_CONFIG, KRB5CCNAME, ...)
// that the caller exports into the process under test.
//
// The actual Kerberos implementation is external: the package drives the
// MIT (kdb5_util, kadmin.local, krb5kdc) or Heimdal (kadmin, kdc) admin
// tools over their command-line interfaces. Which implementation to use
// is an explicit configuration choice, never auto-detected.
//
// Typical use:
//
//	cfg := realm.DefaultConfig()
//	cfg.Realm = "TEST.LOCAL"
//	r, err := realm.New(ctx, cfg)
//	if err != nil { ... }
//	defer r.Stop()
//
//	cmd.Env = append(os.Environ(), r.EnvironList()...)
//
// or scoped, with teardown guaranteed on every exit path:
//
//	err := realm.With(ctx, cfg, func(r *realm.Realm) error {
//	    return runTestWorkload(r)
//	})
//
// For go test integration (automatic teardown via t.Cleanup and skip
// predicates for missing tooling) see package pkg/krbtest.
package realm
