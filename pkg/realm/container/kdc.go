// Package container runs a MIT Kerberos KDC in a Docker container via
// testcontainers, as an alternative to the host-tool backend for machines
// without Kerberos packages installed. The realm lives entirely inside
// the container; principals are managed through kadmin.local execs and
// keytabs are copied out on demand.
package container

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/krb5test/internal/logger"
)

const (
	kdcPort   = "88/tcp"
	adminPort = "749/tcp"
)

// Config holds configuration for the KDC container.
type Config struct {
	// Realm is the realm name. Default: "KRBTEST.LOCAL".
	Realm string

	// Image is a prebuilt KDC image. Empty builds the bundled Dockerfile
	// from the kdc/ directory next to this package.
	Image string

	// BuildContext overrides the Dockerfile directory when Image is empty.
	BuildContext string

	// MasterPassword is the database master password. Default: "master".
	MasterPassword string

	// StartupTimeout bounds the container start and KDC readiness wait.
	// Default: 120s (image builds are slow on first run).
	StartupTimeout time.Duration
}

// KDC is a running containerized Kerberos KDC.
type KDC struct {
	container testcontainers.Container
	realm     string
	host      string
	port      int
	workDir   string
}

// Start launches the KDC container and waits until it issues tickets.
// The returned KDC must be terminated by the caller.
func Start(ctx context.Context, cfg Config) (*KDC, error) {
	if cfg.Realm == "" {
		cfg.Realm = "KRBTEST.LOCAL"
	}
	if cfg.MasterPassword == "" {
		cfg.MasterPassword = "master"
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 120 * time.Second
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{kdcPort, "88/udp", adminPort},
		Env: map[string]string{
			"KRB5_REALM":           cfg.Realm,
			"KRB5_MASTER_PASSWORD": cfg.MasterPassword,
		},
		WaitingFor: wait.ForListeningPort(nat.Port(kdcPort)).
			WithStartupTimeout(cfg.StartupTimeout),
	}
	if cfg.Image == "" {
		buildContext := cfg.BuildContext
		if buildContext == "" {
			buildContext = "kdc"
		}
		req.FromDockerfile = testcontainers.FromDockerfile{
			Context:    buildContext,
			Dockerfile: "Dockerfile",
		}
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start kdc container: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("resolve kdc container host: %w", err)
	}
	mapped, err := ctr.MappedPort(ctx, nat.Port(kdcPort))
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("resolve kdc container port: %w", err)
	}

	workDir, err := os.MkdirTemp("", "krb5test-kdc-*")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("provision kdc work dir: %w", err)
	}

	k := &KDC{
		container: ctr,
		realm:     cfg.Realm,
		host:      host,
		port:      mapped.Int(),
		workDir:   workDir,
	}
	if err := k.writeKrb5Conf(); err != nil {
		k.Terminate(ctx)
		return nil, err
	}

	logger.Info("Containerized KDC ready",
		logger.KeyRealm, cfg.Realm,
		logger.KeyAddress, k.KDCAddress())
	return k, nil
}

// writeKrb5Conf generates a krb5.conf pointing client tools at the
// container's mapped port.
func (k *KDC) writeKrb5Conf() error {
	content := fmt.Sprintf(`[libdefaults]
	default_realm = %s
	dns_lookup_realm = false
	dns_lookup_kdc = false
	rdns = false
	udp_preference_limit = 1

[realms]
	%s = {
		kdc = %s
		admin_server = %s
	}
`, k.realm, k.realm, k.KDCAddress(), k.KDCAddress())

	path := filepath.Join(k.workDir, "krb5.conf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write container krb5.conf: %w", err)
	}
	return nil
}

// Realm returns the realm name.
func (k *KDC) Realm() string { return k.realm }

// KDCAddress returns host:port of the KDC as reachable from the host.
func (k *KDC) KDCAddress() string {
	return net.JoinHostPort(k.host, strconv.Itoa(k.port))
}

// Krb5ConfPath returns the generated client krb5.conf.
func (k *KDC) Krb5ConfPath() string {
	return filepath.Join(k.workDir, "krb5.conf")
}

// Environ returns the environment variables pointing client tools and
// libraries at the containerized realm.
func (k *KDC) Environ() map[string]string {
	return map[string]string{
		"KRB5_CONFIG": k.Krb5ConfPath(),
		"KRB5CCNAME":  filepath.Join(k.workDir, "ccache"),
	}
}

// AddPrincipal creates a principal with the given password inside the
// container's realm database.
func (k *KDC) AddPrincipal(ctx context.Context, name, password string) error {
	principal := k.qualify(name)
	query := fmt.Sprintf("addprinc -pw %s %s", password, principal)
	if password == "" {
		query = "addprinc -randkey " + principal
	}
	return k.kadminLocal(ctx, query)
}

// ExtractKeytab extracts a principal's keys into a keytab file on the
// host at localPath.
func (k *KDC) ExtractKeytab(ctx context.Context, name, localPath string) error {
	principal := k.qualify(name)
	remote := "/tmp/" + strings.NewReplacer("/", "_", "@", "_").Replace(principal) + ".keytab"

	if err := k.kadminLocal(ctx, fmt.Sprintf("ktadd -k %s -norandkey %s", remote, principal)); err != nil {
		return err
	}

	reader, err := k.container.CopyFileFromContainer(ctx, remote)
	if err != nil {
		return fmt.Errorf("copy keytab from container: %w", err)
	}
	defer reader.Close()

	out, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create local keytab: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("write local keytab: %w", err)
	}
	return nil
}

// kadminLocal runs one kadmin.local query inside the container.
func (k *KDC) kadminLocal(ctx context.Context, query string) error {
	code, outReader, err := k.container.Exec(ctx, []string{"kadmin.local", "-q", query})
	if err != nil {
		return fmt.Errorf("exec kadmin.local: %w", err)
	}
	if code != 0 {
		out, _ := io.ReadAll(outReader)
		return fmt.Errorf("kadmin.local %q exited %d: %s", query, code, strings.TrimSpace(string(out)))
	}
	return nil
}

func (k *KDC) qualify(name string) string {
	if strings.Contains(name, "@") {
		return name
	}
	return name + "@" + k.realm
}

// Terminate stops the container and removes the host work directory.
// Failures are logged as warnings, never surfaced.
func (k *KDC) Terminate(ctx context.Context) {
	if err := k.container.Terminate(ctx); err != nil {
		logger.Warn("Failed to terminate kdc container", logger.KeyError, err)
	}
	if err := os.RemoveAll(k.workDir); err != nil {
		logger.Warn("Failed to remove kdc work dir", logger.KeyPath, k.workDir, logger.KeyError, err)
	}
}
