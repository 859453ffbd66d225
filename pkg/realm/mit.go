package realm

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marmos91/krb5test/internal/krb5path"
)

// mitOps drives a realm with the MIT krb5 admin tools. The database lives
// in the workspace as a db2 file, kadmin.local operates on it directly,
// and krb5kdc/kadmind run as managed foreground daemons.
type mitOps struct{}

func (mitOps) provider() Provider { return ProviderMIT }

func (mitOps) toolSpecs() []toolSpec {
	return []toolSpec{
		{name: "kdb5_util", fallback: "/usr/sbin/kdb5_util"},
		{name: "kadmin.local", fallback: "/usr/sbin/kadmin.local"},
		{name: "kadmin", fallback: "/usr/bin/kadmin"},
		{name: "krb5kdc", fallback: "/usr/sbin/krb5kdc"},
		{name: "kadmind", fallback: "/usr/sbin/kadmind"},
		{name: "kinit", fallback: "/usr/bin/kinit"},
		{name: "klist", fallback: "/usr/bin/klist"},
	}
}

func (mitOps) krb5Profile() Profile {
	return Profile{
		"libdefaults": Profile{
			"default_realm":             "$realm",
			"dns_lookup_kdc":            "false",
			"dns_canonicalize_hostname": "fallback",
			"qualify_shortname":         "",
		},
		"realms": Profile{
			"$realm": Profile{
				"kdc":            "$hostname:$port0",
				"admin_server":   "$hostname:$port1",
				"kpasswd_server": "$hostname:$port2",
			},
		},
	}
}

func (mitOps) kdcProfile() Profile {
	dbmodules := Profile{
		"db": Profile{
			"db_library":    "db2",
			"database_name": "$tmpdir/db",
		},
	}
	// Point the KDC at the installed KDB plugin directory when one is
	// discoverable, so non-default install prefixes work too.
	if dir := krb5path.PluginDir(); dir != "" {
		dbmodules["db_module_dir"] = filepath.Join(dir, "kdb")
	}
	return Profile{
		"realms": Profile{
			"$realm": Profile{
				"database_module": "db",
				"iprop_port":      "$port4",
				"key_stash_file":  "$tmpdir/stash",
				"acl_file":        "$tmpdir/acl",
				"dict_file":       "$tmpdir/dictfile",
				"kadmind_port":    "$port1",
				"kpasswd_port":    "$port2",
				"kdc_listen":      "$port0",
				"kdc_tcp_listen":  "$port0",
			},
		},
		"dbmodules": dbmodules,
		"logging": Profile{
			"admin_server": "FILE:$tmpdir/kadmind5.log",
			"kdc":          "FILE:$tmpdir/kdc.log",
			"default":      "FILE:$tmpdir/others.log",
		},
	}
}

func (o mitOps) createDatabase(ctx context.Context, r *Realm) error {
	_, err := r.runTool(ctx, StageCreateDatabase, "",
		r.tool("kdb5_util"), "create", "-W", "-s", "-P", "master")
	return err
}

// kadminLocal runs one kadmin.local query against the workspace database.
func (o mitOps) kadminLocal(ctx context.Context, r *Realm, stage, query string) (string, error) {
	return r.runTool(ctx, stage, "", r.tool("kadmin.local"), "-q", query)
}

func (o mitOps) addPrincipal(ctx context.Context, r *Realm, principal, password string) error {
	query := "addprinc -randkey " + principal
	if password != "" {
		query = fmt.Sprintf("addprinc -pw %s %s", password, principal)
	}
	_, err := o.kadminLocal(ctx, r, StageAddPrincipal, query)
	return err
}

func (o mitOps) changePassword(ctx context.Context, r *Realm, principal, password string) error {
	query := "cpw -randkey " + principal
	if password != "" {
		query = fmt.Sprintf("cpw -pw %s %s", password, principal)
	}
	_, err := o.kadminLocal(ctx, r, StageChangePassword, query)
	return err
}

func (o mitOps) extractKeytab(ctx context.Context, r *Realm, principal, keytabPath string) error {
	// -norandkey keeps the principal's current keys valid after extraction.
	query := fmt.Sprintf("ktadd -k %s -norandkey %s", keytabPath, principal)
	_, err := o.kadminLocal(ctx, r, StageExtractKeytab, query)
	return err
}

func (o mitOps) kinit(ctx context.Context, r *Realm, principal, password string, flags ...string) (string, error) {
	argv := append([]string{r.tool("kinit")}, flags...)
	argv = append(argv, principal)
	return r.runTool(ctx, StageKinit, password+"\n", argv...)
}

func (o mitOps) klist(ctx context.Context, r *Realm, ccache string) (string, error) {
	return r.runTool(ctx, StageKlist, "", r.tool("klist"), ccache)
}

func (o mitOps) klistKeytab(ctx context.Context, r *Realm, keytabPath string) (string, error) {
	return r.runTool(ctx, StageKlist, "", r.tool("klist"), "-k", keytabPath)
}

func (o mitOps) runKadminLocal(ctx context.Context, r *Realm, input string, query ...string) (string, error) {
	return r.runTool(ctx, "kadmin-local", input, r.tool("kadmin.local"), "-q", strings.Join(query, " "))
}

func (o mitOps) startKDC(ctx context.Context, r *Realm) (*managedProcess, error) {
	proc, err := startDaemon("kdc", []string{r.tool("krb5kdc"), "-n"}, r.commandEnv())
	if err != nil {
		return nil, err
	}
	addr := r.hostname + ":" + strconv.Itoa(r.ports[portOffsetKDC])
	if err := proc.waitReady(ctx, tcpProbe(addr), r.cfg.DaemonStartTimeout); err != nil {
		return nil, err
	}
	return proc, nil
}

func (o mitOps) startKadmind(ctx context.Context, r *Realm) (*managedProcess, error) {
	proc, err := startDaemon("kadmind", []string{r.tool("kadmind"), "-nofork", "-W"}, r.commandEnv())
	if err != nil {
		return nil, err
	}
	addr := r.hostname + ":" + strconv.Itoa(r.ports[portOffsetKadmind])
	if err := proc.waitReady(ctx, tcpProbe(addr), r.cfg.DaemonStartTimeout); err != nil {
		return nil, err
	}
	return proc, nil
}
