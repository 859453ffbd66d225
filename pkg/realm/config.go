package realm

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Provider selects the Kerberos implementation whose tooling drives the
// realm. The choice is explicit configuration; nothing is auto-detected
// from the host.
type Provider string

const (
	// ProviderMIT uses the MIT krb5 admin tools (kdb5_util, kadmin.local,
	// krb5kdc, kadmind).
	ProviderMIT Provider = "mit"

	// ProviderHeimdal uses the Heimdal admin tools (kadmin --local, kdc).
	ProviderHeimdal Provider = "heimdal"
)

// Principal describes an identity to register in the realm database.
type Principal struct {
	// Name is the principal name without the realm suffix ("alice" or
	// "host/server.test.local"). The realm is appended automatically.
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Password sets an explicit password. Empty means a random key.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// ExtractKeytab additionally writes the principal's key to the realm
	// keytab, for unattended authentication.
	ExtractKeytab bool `mapstructure:"extract_keytab" yaml:"extract_keytab,omitempty"`
}

// Config describes the realm to create. It is read once by New; mutating
// it afterwards has no effect on a live Realm.
type Config struct {
	// Realm is the realm name, conventionally upper case ("KRBTEST.COM").
	Realm string `mapstructure:"realm" yaml:"realm" validate:"required"`

	// Provider selects the Kerberos implementation (mit or heimdal).
	Provider Provider `mapstructure:"provider" yaml:"provider" validate:"required,oneof=mit heimdal"`

	// PortBase, when non-zero, assigns the realm ports portBase..portBase+9
	// in the fixed layout the generated configs reference (KDC on +0,
	// kadmind on +1, kpasswd on +2, kprop on +3, iprop on +4). When zero,
	// free ephemeral ports are allocated, which is collision-free across
	// parallel test processes.
	PortBase int `mapstructure:"port_base" yaml:"port_base,omitempty" validate:"omitempty,min=1024,max=65525"`

	// ExtraPrincipals are created after the default ones during bootstrap.
	ExtraPrincipals []Principal `mapstructure:"extra_principals" yaml:"extra_principals,omitempty" validate:"dive"`

	// CreateDatabase controls creation of the principal database. Disabling
	// it yields a config-only realm (paths and env, no KDC state).
	CreateDatabase bool `mapstructure:"create_database" yaml:"create_database"`

	// CreateUser provisions the default user and user/admin principals.
	CreateUser bool `mapstructure:"create_user" yaml:"create_user"`

	// CreateHost provisions host/<hostname> and extracts it to the keytab.
	CreateHost bool `mapstructure:"create_host" yaml:"create_host"`

	// StartKDC starts a KDC daemon bound to the realm's KDC port and waits
	// for it to accept connections.
	StartKDC bool `mapstructure:"start_kdc" yaml:"start_kdc"`

	// StartKadmind starts the admin server daemon (MIT only).
	StartKadmind bool `mapstructure:"start_kadmind" yaml:"start_kadmind,omitempty"`

	// GetCredentials runs kinit for the default user after bootstrap so the
	// credential cache is populated. Requires CreateUser and StartKDC.
	GetCredentials bool `mapstructure:"get_credentials" yaml:"get_credentials"`

	// MinVersion aborts bootstrap when the installed Kerberos implementation
	// reports a lower version ("1.18"). Empty disables the gate.
	MinVersion string `mapstructure:"min_version" yaml:"min_version,omitempty"`

	// BaseDir overrides the parent directory for the realm workspace.
	// Empty uses the system temp directory.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir,omitempty"`

	// ToolPaths overrides discovery of individual external tools, keyed by
	// tool name ("kadmin.local": "/opt/krb5/sbin/kadmin.local").
	ToolPaths map[string]string `mapstructure:"tool_paths" yaml:"tool_paths,omitempty"`

	// Krb5ConfOverlay is merged over the generated krb5.conf profile.
	// Values support $realm, $tmpdir, $hostname and $port0..$port9
	// placeholders.
	Krb5ConfOverlay Profile `mapstructure:"krb5_conf" yaml:"krb5_conf,omitempty"`

	// KDCConfOverlay is merged over the generated KDC profile (MIT only).
	KDCConfOverlay Profile `mapstructure:"kdc_conf" yaml:"kdc_conf,omitempty"`

	// DaemonStartTimeout bounds the readiness poll after starting a daemon.
	DaemonStartTimeout time.Duration `mapstructure:"daemon_start_timeout" yaml:"daemon_start_timeout,omitempty" validate:"omitempty,gt=0"`

	// StopGraceTimeout is how long Stop waits after SIGTERM before SIGKILL.
	StopGraceTimeout time.Duration `mapstructure:"stop_grace_timeout" yaml:"stop_grace_timeout,omitempty" validate:"omitempty,gt=0"`
}

// DefaultConfig returns the configuration used by the test helpers: a full
// MIT realm with database, default principals, running KDC, and populated
// credential cache.
func DefaultConfig() Config {
	return Config{
		Realm:          "KRBTEST.COM",
		Provider:       ProviderMIT,
		CreateDatabase: true,
		CreateUser:     true,
		CreateHost:     true,
		StartKDC:       true,
		GetCredentials: true,
	}
}

// ApplyDefaults fills unset timeout fields. Boolean toggles are left as
// given; use DefaultConfig as the starting point for the usual full realm.
func (c *Config) ApplyDefaults() {
	if c.Realm == "" {
		c.Realm = "KRBTEST.COM"
	}
	if c.Provider == "" {
		c.Provider = ProviderMIT
	}
	if c.DaemonStartTimeout == 0 {
		c.DaemonStartTimeout = 30 * time.Second
	}
	if c.StopGraceTimeout == 0 {
		c.StopGraceTimeout = 5 * time.Second
	}
}

var validate = validator.New()

// Validate checks the configuration, returning a descriptive error for the
// first violated constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid realm config: %w", err)
	}
	if c.GetCredentials && !(c.CreateDatabase && c.CreateUser && c.StartKDC) {
		return fmt.Errorf("invalid realm config: get_credentials requires create_database, create_user and start_kdc")
	}
	if c.StartKadmind && c.Provider != ProviderMIT {
		return fmt.Errorf("invalid realm config: start_kadmind is only supported with the mit provider")
	}
	return nil
}
