package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/krb5test/internal/cli/output"
	"github.com/marmos91/krb5test/internal/logger"
	"github.com/marmos91/krb5test/pkg/realm"
)

var (
	upProvider string
	upRealm    string
	upPortBase int
	upNoDaemon bool
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create a realm and keep it running until interrupted",
	Long: `Create an ephemeral Kerberos realm and hold it until Ctrl-C.

The realm's environment variables are printed to stdout as shell export
statements; logs go to stderr, so the output can be eval'd:

  eval "$(krb5realm up &)"   # or copy the exports into another terminal

On SIGINT or SIGTERM the daemons are stopped and the workspace removed.

Examples:
  # Full MIT realm with defaults
  krb5realm up

  # Heimdal realm on a fixed port range
  krb5realm up --provider heimdal --port-base 61000

  # Database and configs only, no running daemons
  krb5realm up --no-daemon`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringVar(&upProvider, "provider", "", "kerberos implementation (mit or heimdal)")
	upCmd.Flags().StringVar(&upRealm, "realm", "", "realm name (default: KRBTEST.COM)")
	upCmd.Flags().IntVar(&upPortBase, "port-base", 0, "first port of the realm's port range (default: ephemeral)")
	upCmd.Flags().BoolVar(&upNoDaemon, "no-daemon", false, "skip starting the KDC; provision database and configs only")
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rc := cfg.Realm
	if upProvider != "" {
		rc.Provider = realm.Provider(upProvider)
	}
	if upRealm != "" {
		rc.Realm = upRealm
	}
	if upPortBase != 0 {
		rc.PortBase = upPortBase
	}
	if upNoDaemon {
		rc.StartKDC = false
		rc.StartKadmind = false
		rc.GetCredentials = false
	}

	r, err := realm.New(cmd.Context(), rc)
	if err != nil {
		return err
	}
	defer r.Stop()

	if err := output.PrintEnvExports(os.Stdout, r.Environ()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "# realm %s ready, workspace %s\n", r.Name(), r.WorkspaceDir())
	if addr := r.KDCAddress(); addr != "" {
		fmt.Fprintf(os.Stderr, "# kdc listening on %s\n", addr)
	}
	fmt.Fprintln(os.Stderr, "# press Ctrl-C to tear down")

	return waitForShutdown(cmd.Context())
}

// waitForShutdown blocks until the process receives SIGINT or SIGTERM, or
// the command context is cancelled.
func waitForShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
