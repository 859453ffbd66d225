package realm

import (
	"context"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
)

// Programmatic access to the realm's artifacts, independent of the
// command-line tools: the generated krb5.conf, keytab, and credential
// cache can be loaded directly, and a real AS exchange can be run against
// the KDC to prove the realm works end to end.

// Krb5Config parses the realm's generated krb5.conf.
func (r *Realm) Krb5Config() (*krb5config.Config, error) {
	cfg, err := krb5config.Load(r.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load generated krb5.conf: %w", err)
	}
	return cfg, nil
}

// Keytab loads and parses the realm keytab.
func (r *Realm) Keytab() (*keytab.Keytab, error) {
	kt, err := keytab.Load(r.KeytabPath())
	if err != nil {
		return nil, fmt.Errorf("load realm keytab: %w", err)
	}
	return kt, nil
}

// Credentials loads and parses the default credential cache.
func (r *Realm) Credentials() (*credentials.CCache, error) {
	cc, err := credentials.LoadCCache(r.CCachePath())
	if err != nil {
		return nil, fmt.Errorf("load credential cache: %w", err)
	}
	return cc, nil
}

// VerifyLogin performs an AS exchange against the running KDC as the
// default user, proving the realm issues tickets. It requires StartKDC.
func (r *Realm) VerifyLogin(ctx context.Context) error {
	if r.KDCAddress() == "" {
		return fmt.Errorf("verify login: no KDC daemon is running")
	}
	cfg, err := r.Krb5Config()
	if err != nil {
		return err
	}

	cl := client.NewWithPassword("user", r.cfg.Realm, r.UserPassword(), cfg,
		client.DisablePAFXFAST(true))
	defer cl.Destroy()

	done := make(chan error, 1)
	go func() { done <- cl.Login() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("as exchange for %s: %w", r.UserPrincipal(), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
