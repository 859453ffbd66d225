package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintEnvExports writes environment variables as POSIX shell export
// statements, sorted by name, suitable for `eval "$(krb5realm env ...)"`.
func PrintEnvExports(w io.Writer, env map[string]string) error {
	for _, name := range sortedEnvNames(env) {
		if _, err := fmt.Fprintf(w, "export %s=%s\n", name, shellQuote(env[name])); err != nil {
			return err
		}
	}
	return nil
}

// PrintEnvUnsets writes the matching unset statements, for restoring the
// caller's shell after teardown.
func PrintEnvUnsets(w io.Writer, env map[string]string) error {
	for _, name := range sortedEnvNames(env) {
		if _, err := fmt.Fprintf(w, "unset %s\n", name); err != nil {
			return err
		}
	}
	return nil
}

func sortedEnvNames(env map[string]string) []string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// shellQuote single-quotes a value for POSIX shells, escaping embedded
// single quotes with the '\'' idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
