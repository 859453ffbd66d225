package realm

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/marmos91/krb5test/internal/logger"
)

// runTool invokes an external admin tool with the realm's environment and
// captures combined output. A non-zero exit aborts the current bootstrap
// stage with a BootstrapError carrying the tool's output; partially created
// state is left for Stop to clean up.
func (r *Realm) runTool(ctx context.Context, stage, input string, argv ...string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = r.commandEnv()
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	cmdline := strings.Join(argv, " ")
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	logger.Debug("External command finished",
		logger.KeyStage, stage,
		logger.KeyCommand, cmdline,
		logger.KeyExitCode, exitCode)
	if output != "" {
		logger.Debug("External command output", logger.KeyCommand, cmdline, "output", output)
	}

	if err != nil {
		return output, &BootstrapError{
			Stage:    stage,
			Cmd:      cmdline,
			ExitCode: exitCode,
			Output:   output,
			Err:      err,
		}
	}
	return output, nil
}

// commandEnv is the process environment for external tools: the ambient
// environment with the realm's variables layered on top, so every tool
// resolves configuration inside the workspace instead of any system file.
func (r *Realm) commandEnv() []string {
	return append(os.Environ(), r.EnvironList()...)
}
