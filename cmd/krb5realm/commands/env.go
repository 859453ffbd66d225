package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/krb5test/internal/cli/output"
	"github.com/marmos91/krb5test/pkg/realm"
)

var envUnset bool

var envCmd = &cobra.Command{
	Use:   "env <workspace-dir>",
	Short: "Print the environment of a live realm as shell exports",
	Long: `Print the environment variables of a previously created realm as POSIX
shell export statements. The workspace directory is the one reported by
"krb5realm up".

Examples:
  eval "$(krb5realm env /tmp/krb5test-1234)"
  eval "$(krb5realm env --unset /tmp/krb5test-1234)"`,
	Args: cobra.ExactArgs(1),
	RunE: runEnv,
}

func init() {
	envCmd.Flags().BoolVar(&envUnset, "unset", false, "print unset statements instead of exports")
}

func runEnv(cmd *cobra.Command, args []string) error {
	env, err := realm.LoadEnv(args[0])
	if err != nil {
		return fmt.Errorf("no realm environment at %s: %w", args[0], err)
	}

	if envUnset {
		return output.PrintEnvUnsets(os.Stdout, env)
	}
	return output.PrintEnvExports(os.Stdout, env)
}
