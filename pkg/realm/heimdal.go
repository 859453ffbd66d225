package realm

import (
	"context"
	"errors"
	"fmt"
)

// heimdalOps drives a realm with the Heimdal admin tools. Heimdal keeps
// KDC settings inside krb5.conf (no separate profile), administers the
// database through `kadmin --local`, and announces KDC readiness in its
// log file rather than on stdout.
type heimdalOps struct{}

func (heimdalOps) provider() Provider { return ProviderHeimdal }

func (heimdalOps) toolSpecs() []toolSpec {
	return []toolSpec{
		{name: "kadmin", fallback: "/usr/bin/kadmin"},
		{name: "kdc", fallback: "/usr/libexec/kdc"},
		{name: "kstash", fallback: "/usr/sbin/kstash"},
		{name: "kinit", fallback: "/usr/bin/kinit"},
		{name: "klist", fallback: "/usr/bin/klist"},
		{name: "ktutil", fallback: "/usr/bin/ktutil"},
	}
}

func (heimdalOps) krb5Profile() Profile {
	return Profile{
		"libdefaults": Profile{
			"default_realm":  "$realm",
			"dns_lookup_kdc": "false",
		},
		"realms": Profile{
			"$realm": Profile{
				"kdc":            "$hostname:$port0",
				"admin_server":   "$hostname:$port1",
				"kpasswd_server": "$hostname:$port2",
			},
		},
		"logging": Profile{
			"default": "FILE:$tmpdir/others.log",
			"kdc":     "FILE:$tmpdir/kdc.log",
		},
		"kdc": Profile{
			"ports": "$port0/tcp, $port0/udp",
			"database": Profile{
				"dbname":    "$tmpdir/db",
				"mkey_file": "$tmpdir/stash",
				"log_file":  "$tmpdir/db.log",
				"acl_file":  "$tmpdir/acl",
			},
		},
	}
}

func (heimdalOps) kdcProfile() Profile { return nil }

// kadminLocal runs one `kadmin --local` command against the database.
func (o heimdalOps) kadminLocal(ctx context.Context, r *Realm, stage string, args ...string) (string, error) {
	argv := append([]string{r.tool("kadmin"), "--local"}, args...)
	return r.runTool(ctx, stage, "", argv...)
}

func (o heimdalOps) createDatabase(ctx context.Context, r *Realm) error {
	_, err := r.runTool(ctx, StageCreateDatabase, "",
		r.tool("kstash"), "--key-file="+r.ws.stashFile(), "--random-key")
	if err != nil {
		return err
	}
	_, err = o.kadminLocal(ctx, r, StageCreateDatabase,
		"init",
		"--realm-max-ticket-life=unlimited",
		"--realm-max-renewable-life=unlimited",
		r.cfg.Realm)
	return err
}

func (o heimdalOps) addPrincipal(ctx context.Context, r *Realm, principal, password string) error {
	args := []string{"add", "--use-defaults"}
	if password != "" {
		args = append(args, "--password="+password)
	} else {
		args = append(args, "--random-key")
	}
	args = append(args, principal)
	_, err := o.kadminLocal(ctx, r, StageAddPrincipal, args...)
	return err
}

func (o heimdalOps) changePassword(ctx context.Context, r *Realm, principal, password string) error {
	args := []string{"passwd"}
	if password != "" {
		args = append(args, "--password="+password)
	} else {
		args = append(args, "--random-key")
	}
	args = append(args, principal)
	_, err := o.kadminLocal(ctx, r, StageChangePassword, args...)
	return err
}

func (o heimdalOps) extractKeytab(ctx context.Context, r *Realm, principal, keytabPath string) error {
	_, err := o.kadminLocal(ctx, r, StageExtractKeytab,
		"ext_keytab", "--keytab="+keytabPath, principal)
	return err
}

func (o heimdalOps) kinit(ctx context.Context, r *Realm, principal, password string, flags ...string) (string, error) {
	argv := append([]string{r.tool("kinit")}, flags...)
	// Heimdal kinit prompts on the tty unless told to read stdin.
	if password != "" {
		argv = append(argv, "--password-file=STDIN")
	}
	argv = append(argv, principal)
	return r.runTool(ctx, StageKinit, password+"\n", argv...)
}

func (o heimdalOps) klist(ctx context.Context, r *Realm, ccache string) (string, error) {
	return r.runTool(ctx, StageKlist, "", r.tool("klist"), "-c", ccache)
}

func (o heimdalOps) klistKeytab(ctx context.Context, r *Realm, keytabPath string) (string, error) {
	return r.runTool(ctx, StageKlist, "", r.tool("ktutil"), "-k", keytabPath, "list")
}

func (o heimdalOps) runKadminLocal(ctx context.Context, r *Realm, input string, query ...string) (string, error) {
	argv := append([]string{r.tool("kadmin"), "--local"}, query...)
	return r.runTool(ctx, "kadmin-local", input, argv...)
}

func (o heimdalOps) startKDC(ctx context.Context, r *Realm) (*managedProcess, error) {
	argv := []string{
		r.tool("kdc"),
		"--config-file=" + r.ws.krb5Conf(),
		fmt.Sprintf("--ports=%d", r.ports[portOffsetKDC]),
	}
	proc, err := startDaemon("kdc", argv, r.commandEnv())
	if err != nil {
		return nil, err
	}
	probe := fileSentinelProbe(r.ws.kdcLog(), "KDC started")
	if err := proc.waitReady(ctx, probe, r.cfg.DaemonStartTimeout); err != nil {
		return nil, err
	}
	return proc, nil
}

func (o heimdalOps) startKadmind(ctx context.Context, r *Realm) (*managedProcess, error) {
	return nil, &BootstrapError{
		Stage:    StageStartKadmind,
		ExitCode: -1,
		Err:      errors.New("kadmind is not supported with the heimdal provider"),
	}
}
