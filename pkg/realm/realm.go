package realm

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marmos91/krb5test/internal/krb5path"
	"github.com/marmos91/krb5test/internal/logger"
	"github.com/marmos91/krb5test/internal/vercmp"
)

// Fixed port-offset layout shared with the generated configuration files.
const (
	portOffsetKDC     = 0
	portOffsetKadmind = 1
	portOffsetKpasswd = 2
	portOffsetKprop   = 3
	portOffsetIprop   = 4
)

// toolSpec names an external tool and its conventional install path, used
// when PATH lookup and config overrides both miss.
type toolSpec struct {
	name     string
	fallback string
}

// providerOps is the per-implementation strategy behind a Realm. Each
// method drives the corresponding MIT or Heimdal admin tool; the Realm
// owns sequencing, environment, and error policy.
type providerOps interface {
	provider() Provider
	toolSpecs() []toolSpec
	krb5Profile() Profile
	// kdcProfile returns nil for providers that keep KDC settings inside
	// krb5.conf (Heimdal).
	kdcProfile() Profile

	createDatabase(ctx context.Context, r *Realm) error
	addPrincipal(ctx context.Context, r *Realm, principal, password string) error
	changePassword(ctx context.Context, r *Realm, principal, password string) error
	extractKeytab(ctx context.Context, r *Realm, principal, keytabPath string) error
	kinit(ctx context.Context, r *Realm, principal, password string, flags ...string) (string, error)
	klist(ctx context.Context, r *Realm, ccache string) (string, error)
	klistKeytab(ctx context.Context, r *Realm, keytabPath string) (string, error)
	runKadminLocal(ctx context.Context, r *Realm, input string, query ...string) (string, error)
	startKDC(ctx context.Context, r *Realm) (*managedProcess, error)
	startKadmind(ctx context.Context, r *Realm) (*managedProcess, error)
}

// Realm is the live handle to an ephemeral Kerberos realm: generated
// configuration, registered principals, optionally running daemons, and
// the environment a process under test needs to use them.
//
// A Realm is either active or torn down. Stop is idempotent and safe to
// call after a failed bootstrap; all accessors remain valid (returning
// paths into the removed workspace) after teardown.
type Realm struct {
	cfg      Config
	ws       *workspace
	ops      providerOps
	hostname string
	ports    [10]int
	env      map[string]string
	tools    map[string]string

	mu      sync.Mutex
	kdc     *managedProcess
	kadmind *managedProcess

	stopped atomic.Bool
}

// New provisions a workspace, writes the realm configuration, and runs the
// bootstrap sequence described by cfg. On any bootstrap failure the
// partially created state is torn down (best effort) before the error is
// returned, so the caller never owns a half-built realm.
func New(ctx context.Context, cfg Config) (*Realm, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ops, err := opsFor(cfg.Provider)
	if err != nil {
		return nil, err
	}

	// Version gate runs before any side effects.
	if cfg.MinVersion != "" {
		installed, err := krb5path.Version()
		if err != nil {
			return nil, &BootstrapError{Stage: StageVersionCheck, ExitCode: -1, Err: err}
		}
		if vercmp.Compare(installed, cfg.MinVersion) < 0 {
			return nil, &BootstrapError{
				Stage:    StageVersionCheck,
				ExitCode: -1,
				Err:      fmt.Errorf("installed kerberos %s is older than required %s", installed, cfg.MinVersion),
			}
		}
	}

	ws, err := provisionWorkspace(cfg.BaseDir)
	if err != nil {
		return nil, err
	}

	r := &Realm{
		cfg:      cfg,
		ws:       ws,
		ops:      ops,
		hostname: realmHostname(),
		tools:    make(map[string]string),
	}
	for _, spec := range ops.toolSpecs() {
		r.tools[spec.name] = krb5path.LookTool(spec.name, spec.fallback, cfg.ToolPaths)
	}

	if err := r.allocatePorts(); err != nil {
		ws.destroy()
		return nil, &ProvisioningError{Err: err}
	}
	r.buildEnv()

	register(r)

	if err := r.writeConfigs(); err != nil {
		r.Stop()
		return nil, err
	}
	if err := r.bootstrap(ctx); err != nil {
		r.Stop()
		return nil, err
	}

	logger.Info("Realm ready",
		logger.KeyRealm, cfg.Realm,
		logger.KeyProvider, string(cfg.Provider),
		logger.KeyWorkspace, ws.root,
		logger.KeyAddress, r.KDCAddress())
	return r, nil
}

// With acquires a Realm, runs fn, and guarantees teardown on every exit
// path: normal return, error, panic, and context cancellation.
func With(ctx context.Context, cfg Config, fn func(*Realm) error) error {
	r, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Stop()
	return fn(r)
}

// opsFor maps a Provider to its implementation strategy.
func opsFor(p Provider) (providerOps, error) {
	switch p {
	case ProviderMIT:
		return mitOps{}, nil
	case ProviderHeimdal:
		return heimdalOps{}, nil
	default:
		return nil, fmt.Errorf("unknown kerberos provider %q", p)
	}
}

// RequiredTools resolves the external tool paths a provider needs,
// applying the same lookup order New uses (overrides, PATH, conventional
// install path). Callers can stat the results to decide whether a realm
// can be bootstrapped on this host.
func RequiredTools(p Provider, overrides map[string]string) ([]string, error) {
	ops, err := opsFor(p)
	if err != nil {
		return nil, err
	}
	specs := ops.toolSpecs()
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		out = append(out, krb5path.LookTool(spec.name, spec.fallback, overrides))
	}
	return out, nil
}

// ToolsAvailable reports whether every external tool the provider needs
// resolves to an existing executable on this host.
func ToolsAvailable(p Provider, overrides map[string]string) bool {
	ops, err := opsFor(p)
	if err != nil {
		return false
	}
	for _, spec := range ops.toolSpecs() {
		if !krb5path.ToolAvailable(spec.name, spec.fallback, overrides) {
			return false
		}
	}
	return true
}

// realmHostname picks the hostname written into the generated configs.
// macOS resists binding daemons to the fqdn, so localhost is used there,
// matching how the admin tools behave on that platform.
func realmHostname() string {
	if runtime.GOOS == "darwin" {
		return "localhost"
	}
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

// allocatePorts fills the realm's ten-slot port layout, either from the
// configured base or from free ephemeral ports. All listeners stay open
// until every port is collected so two slots never alias.
func (r *Realm) allocatePorts() error {
	if r.cfg.PortBase > 0 {
		for i := range r.ports {
			r.ports[i] = r.cfg.PortBase + i
		}
		return nil
	}

	listeners := make([]net.Listener, 0, len(r.ports))
	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()
	for i := range r.ports {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("allocate ephemeral port: %w", err)
		}
		listeners = append(listeners, l)
		r.ports[i] = l.Addr().(*net.TCPAddr).Port
	}
	return nil
}

// buildEnv assembles the environment variables that redirect every
// Kerberos tool and library into the workspace.
func (r *Realm) buildEnv() {
	kdcProfile := r.ws.kdcConf()
	if r.ops.kdcProfile() == nil {
		kdcProfile = os.DevNull
	}
	r.env = map[string]string{
		"KRB5_CONFIG":       r.ws.krb5Conf(),
		"KRB5_KDC_PROFILE":  kdcProfile,
		"KRB5CCNAME":        r.ws.ccache(),
		"KRB5_KTNAME":       r.ws.keytab(),
		"KRB5_CLIENT_KTNAME": r.ws.clientKeytab(),
		"KRB5RCACHEDIR":     r.ws.root,
		"KPROP_PORT":        strconv.Itoa(r.ports[portOffsetKprop]),
		"KPROPD_PORT":       strconv.Itoa(r.ports[portOffsetKprop]),
	}
}

// substitute expands $realm, $tmpdir, $hostname and $port0..$port9 in
// profile strings.
func (r *Realm) substitute(s string) string {
	pairs := []string{
		"$realm", r.cfg.Realm,
		"$tmpdir", r.ws.root,
		"$hostname", r.hostname,
	}
	for i, port := range r.ports {
		pairs = append(pairs, "$port"+strconv.Itoa(i), strconv.Itoa(port))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// writeConfigs renders krb5.conf, the KDC profile (when the provider has
// one), the kadmind ACL, and the password dictionary into the workspace.
func (r *Realm) writeConfigs() error {
	krb5Text, err := renderProfile(mergeProfiles(r.ops.krb5Profile(), r.cfg.Krb5ConfOverlay), r.substitute)
	if err != nil {
		return fmt.Errorf("render krb5.conf: %w", err)
	}
	if err := r.ws.writeFile("krb5.conf", krb5Text); err != nil {
		return fmt.Errorf("write krb5.conf: %w", err)
	}

	if kdcProfile := r.ops.kdcProfile(); kdcProfile != nil {
		kdcText, err := renderProfile(mergeProfiles(kdcProfile, r.cfg.KDCConfOverlay), r.substitute)
		if err != nil {
			return fmt.Errorf("render kdc.conf: %w", err)
		}
		if err := r.ws.writeFile("kdc.conf", kdcText); err != nil {
			return fmt.Errorf("write kdc.conf: %w", err)
		}
	}

	acl := fmt.Sprintf("%s *\nkiprop/%s@%s p\n", r.AdminPrincipal(), r.hostname, r.cfg.Realm)
	if err := r.ws.writeFile("acl", acl); err != nil {
		return fmt.Errorf("write acl: %w", err)
	}
	if err := r.ws.writeFile("dictfile", "weak_password\n"); err != nil {
		return fmt.Errorf("write dictfile: %w", err)
	}
	return r.writeEnvFile()
}

// bootstrap runs the external provisioning sequence: database, default
// principals, extra principals, daemons, credentials.
func (r *Realm) bootstrap(ctx context.Context) error {
	if !r.cfg.CreateDatabase {
		return nil
	}

	if err := r.ops.createDatabase(ctx, r); err != nil {
		return err
	}

	if r.cfg.CreateUser {
		if err := r.ops.addPrincipal(ctx, r, r.UserPrincipal(), r.Password("user")); err != nil {
			return err
		}
		if err := r.ops.addPrincipal(ctx, r, r.AdminPrincipal(), r.Password("admin")); err != nil {
			return err
		}
	}

	if r.cfg.CreateHost {
		if err := r.ops.addPrincipal(ctx, r, r.HostPrincipal(), ""); err != nil {
			return err
		}
		if err := r.ops.extractKeytab(ctx, r, r.HostPrincipal(), r.KeytabPath()); err != nil {
			return err
		}
	}

	for _, p := range r.cfg.ExtraPrincipals {
		if err := r.AddPrincipal(ctx, p); err != nil {
			return err
		}
	}

	if r.cfg.StartKDC {
		if err := r.StartKDC(ctx); err != nil {
			return err
		}
	}
	if r.cfg.StartKadmind {
		if err := r.StartKadmind(ctx); err != nil {
			return err
		}
	}

	if r.cfg.GetCredentials {
		if _, err := r.Kinit(ctx, r.UserPrincipal(), r.Password("user")); err != nil {
			return err
		}
		if _, err := r.Klist(ctx); err != nil {
			return err
		}
	}
	return nil
}

// qualify appends the realm suffix to a bare principal name.
func (r *Realm) qualify(name string) string {
	if strings.Contains(name, "@") {
		return name
	}
	return name + "@" + r.cfg.Realm
}

// tool returns the resolved path of an external tool by name.
func (r *Realm) tool(name string) string { return r.tools[name] }

// ============================================================================
// Principal and credential operations
// ============================================================================

// AddPrincipal registers a principal in the realm database and optionally
// extracts its key to the realm keytab.
func (r *Realm) AddPrincipal(ctx context.Context, p Principal) error {
	principal := r.qualify(p.Name)
	if err := r.ops.addPrincipal(ctx, r, principal, p.Password); err != nil {
		return err
	}
	logger.Debug("Principal created", logger.KeyRealm, r.cfg.Realm, logger.KeyPrincipal, principal)
	if p.ExtractKeytab {
		return r.ops.extractKeytab(ctx, r, principal, r.KeytabPath())
	}
	return nil
}

// ChangePassword sets a new password (or a fresh random key when password
// is empty) for an existing principal.
func (r *Realm) ChangePassword(ctx context.Context, name, password string) error {
	return r.ops.changePassword(ctx, r, r.qualify(name), password)
}

// ExtractKeytab writes the principal's current keys to the given keytab.
func (r *Realm) ExtractKeytab(ctx context.Context, name, keytabPath string) error {
	return r.ops.extractKeytab(ctx, r, r.qualify(name), keytabPath)
}

// Kinit obtains initial credentials for the principal into the realm's
// default credential cache, returning the tool output.
func (r *Realm) Kinit(ctx context.Context, principal, password string, flags ...string) (string, error) {
	return r.ops.kinit(ctx, r, r.qualify(principal), password, flags...)
}

// Klist lists the default credential cache contents.
func (r *Realm) Klist(ctx context.Context) (string, error) {
	return r.ops.klist(ctx, r, r.CCachePath())
}

// KlistKeytab lists the realm keytab contents.
func (r *Realm) KlistKeytab(ctx context.Context) (string, error) {
	return r.ops.klistKeytab(ctx, r, r.KeytabPath())
}

// RunKadminLocal runs an arbitrary local admin query against the realm
// database, returning the tool's combined output.
func (r *Realm) RunKadminLocal(ctx context.Context, query ...string) (string, error) {
	return r.ops.runKadminLocal(ctx, r, "", query...)
}

// PrepKadmin obtains admin credentials for the network kadmin tool into a
// dedicated cache, leaving the default cache untouched. MIT only, and the
// admin server must be running.
func (r *Realm) PrepKadmin(ctx context.Context) error {
	if r.Provider() != ProviderMIT {
		return fmt.Errorf("network kadmin is only supported with the mit provider")
	}
	_, err := r.ops.kinit(ctx, r, r.AdminPrincipal(), r.AdminPassword(),
		"-S", "kadmin/admin", "-c", r.ws.kadminCCache())
	return err
}

// RunKadmin runs a query through the network kadmin tool using the
// credentials obtained by PrepKadmin. MIT only.
func (r *Realm) RunKadmin(ctx context.Context, query ...string) (string, error) {
	if r.Provider() != ProviderMIT {
		return "", fmt.Errorf("network kadmin is only supported with the mit provider")
	}
	return r.runTool(ctx, "kadmin", "",
		r.tool("kadmin"), "-c", r.ws.kadminCCache(), "-q", strings.Join(query, " "))
}

// ============================================================================
// Daemon control
// ============================================================================

// StartKDC starts the realm's KDC daemon and waits until it accepts TCP
// connections on the KDC port, or fails with a BootstrapError after the
// configured timeout (killing the half-started process first).
func (r *Realm) StartKDC(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kdc != nil && r.kdc.running() {
		return fmt.Errorf("kdc already running (pid %d)", r.kdc.pid())
	}
	proc, err := r.ops.startKDC(ctx, r)
	if err != nil {
		return err
	}
	r.kdc = proc
	return nil
}

// StopKDC stops the KDC daemon if running.
func (r *Realm) StopKDC() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kdc != nil {
		r.kdc.stop(r.cfg.StopGraceTimeout)
		r.kdc = nil
	}
}

// StartKadmind starts the admin server daemon (MIT only).
func (r *Realm) StartKadmind(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kadmind != nil && r.kadmind.running() {
		return fmt.Errorf("kadmind already running (pid %d)", r.kadmind.pid())
	}
	proc, err := r.ops.startKadmind(ctx, r)
	if err != nil {
		return err
	}
	r.kadmind = proc
	return nil
}

// StopKadmind stops the admin server daemon if running.
func (r *Realm) StopKadmind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kadmind != nil {
		r.kadmind.stop(r.cfg.StopGraceTimeout)
		r.kadmind = nil
	}
}

// Stop tears the realm down: daemons get SIGTERM then SIGKILL after the
// grace period, and the workspace is removed. Stop is idempotent, never
// panics, and reports problems as warnings only, so a teardown hiccup
// cannot mask the original test outcome.
func (r *Realm) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}

	r.StopKadmind()
	r.StopKDC()
	r.ws.destroy()
	unregister(r)

	logger.Info("Realm torn down", logger.KeyRealm, r.cfg.Realm, logger.KeyWorkspace, r.ws.root)
}

// Active reports whether the realm has not been torn down.
func (r *Realm) Active() bool { return !r.stopped.Load() }

// ============================================================================
// Session accessors
// ============================================================================

// Name returns the realm name.
func (r *Realm) Name() string { return r.cfg.Realm }

// Provider returns the Kerberos implementation driving this realm.
func (r *Realm) Provider() Provider { return r.ops.provider() }

// WorkspaceDir returns the realm's temporary root directory.
func (r *Realm) WorkspaceDir() string { return r.ws.root }

// ConfigPath returns the generated krb5.conf path.
func (r *Realm) ConfigPath() string { return r.ws.krb5Conf() }

// KDCConfPath returns the generated KDC profile path ("" when the
// provider keeps KDC settings in krb5.conf).
func (r *Realm) KDCConfPath() string {
	if r.ops.kdcProfile() == nil {
		return ""
	}
	return r.ws.kdcConf()
}

// CCachePath returns the default credential cache path.
func (r *Realm) CCachePath() string { return r.ws.ccache() }

// KeytabPath returns the realm keytab path.
func (r *Realm) KeytabPath() string { return r.ws.keytab() }

// ClientKeytabPath returns the client keytab path.
func (r *Realm) ClientKeytabPath() string { return r.ws.clientKeytab() }

// UserPrincipal returns the default user principal (user@REALM).
func (r *Realm) UserPrincipal() string { return "user@" + r.cfg.Realm }

// AdminPrincipal returns the administrative principal (user/admin@REALM).
func (r *Realm) AdminPrincipal() string { return "user/admin@" + r.cfg.Realm }

// HostPrincipal returns the host service principal for this machine.
func (r *Realm) HostPrincipal() string {
	return fmt.Sprintf("host/%s@%s", r.hostname, r.cfg.Realm)
}

// KrbtgtPrincipal returns the ticket-granting service principal.
func (r *Realm) KrbtgtPrincipal() string {
	return fmt.Sprintf("krbtgt/%s@%s", r.cfg.Realm, r.cfg.Realm)
}

// UserPassword returns the default user's password.
func (r *Realm) UserPassword() string { return r.Password("user") }

// AdminPassword returns the administrative principal's password.
func (r *Realm) AdminPassword() string { return r.Password("admin") }

// Password derives the deterministic password used for a named default
// principal: the name plus the workspace's unique suffix, so passwords are
// stable within a session and differ across sessions.
func (r *Realm) Password(name string) string {
	return name + filepath.Base(r.ws.root)
}

// Hostname returns the hostname written into the generated configs.
func (r *Realm) Hostname() string { return r.hostname }

// KDCPort returns the port the KDC listens on.
func (r *Realm) KDCPort() int { return r.ports[portOffsetKDC] }

// KDCAddress returns host:port of the KDC daemon, or "" when no daemon
// was started.
func (r *Realm) KDCAddress() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kdc == nil {
		return ""
	}
	return net.JoinHostPort(r.hostname, strconv.Itoa(r.ports[portOffsetKDC]))
}

// AdminServerAddress returns host:port of the admin server.
func (r *Realm) AdminServerAddress() string {
	return net.JoinHostPort(r.hostname, strconv.Itoa(r.ports[portOffsetKadmind]))
}

// Environ returns a copy of the environment variables a process under
// test should see to use this realm.
func (r *Realm) Environ() map[string]string {
	out := make(map[string]string, len(r.env))
	for k, v := range r.env {
		out[k] = v
	}
	return out
}

// EnvironList returns the realm environment in "KEY=VALUE" form, sorted,
// ready to append to exec.Cmd.Env.
func (r *Realm) EnvironList() []string {
	out := make([]string, 0, len(r.env))
	for k, v := range r.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// SpecialEnv writes an alternate krb5.conf (and KDC profile, when the
// provider has one) with the given overlays under a distinct name inside
// the workspace, and returns the environment pointing at it. The realm's
// own configuration is untouched; the files share the realm's lifetime.
func (r *Realm) SpecialEnv(name string, krb5Overlay, kdcOverlay Profile) (map[string]string, error) {
	krb5Name := "krb5.conf." + name
	text, err := renderProfile(mergeProfiles(mergeProfiles(r.ops.krb5Profile(), r.cfg.Krb5ConfOverlay), krb5Overlay), r.substitute)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", krb5Name, err)
	}
	if err := r.ws.writeFile(krb5Name, text); err != nil {
		return nil, fmt.Errorf("write %s: %w", krb5Name, err)
	}

	env := r.Environ()
	env["KRB5_CONFIG"] = r.ws.path(krb5Name)

	if base := r.ops.kdcProfile(); base != nil {
		kdcName := "kdc.conf." + name
		text, err := renderProfile(mergeProfiles(mergeProfiles(base, r.cfg.KDCConfOverlay), kdcOverlay), r.substitute)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", kdcName, err)
		}
		if err := r.ws.writeFile(kdcName, text); err != nil {
			return nil, fmt.Errorf("write %s: %w", kdcName, err)
		}
		env["KRB5_KDC_PROFILE"] = r.ws.path(kdcName)
	}
	return env, nil
}
