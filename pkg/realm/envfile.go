package realm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Each workspace carries an "env" file recording the realm's environment
// variables, so other processes (and the krb5realm CLI) can point at a
// live realm knowing only its workspace directory.

const envFileName = "env"

// EnvFilePath returns the path of the realm's environment record.
func (r *Realm) EnvFilePath() string { return r.ws.path(envFileName) }

func (r *Realm) writeEnvFile() error {
	content := strings.Join(r.EnvironList(), "\n") + "\n"
	if err := r.ws.writeFile(envFileName, content); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// LoadEnv reads the environment record of a previously provisioned realm
// workspace, as written during bootstrap.
func LoadEnv(workspaceDir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(workspaceDir, envFileName))
	if err != nil {
		return nil, fmt.Errorf("read realm env file: %w", err)
	}

	env := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed realm env line: %q", line)
		}
		env[name] = value
	}
	return env, nil
}
