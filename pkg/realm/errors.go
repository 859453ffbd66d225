package realm

import (
	"fmt"
	"strings"
)

// Bootstrap stage identifiers, reported in BootstrapError.Stage.
const (
	StageVersionCheck       = "version-check"
	StageCreateDatabase     = "create-db"
	StageAddPrincipal       = "add-principal"
	StageChangePassword     = "change-password"
	StageExtractKeytab      = "extract-keytab"
	StageKinit              = "kinit"
	StageKlist              = "klist"
	StageStartKDC           = "start-kdc"
	StageStartKadmind       = "start-kadmind"
	StageDaemonStartTimeout = "daemon-start-timeout"
)

// ProvisioningError reports that a workspace could not be allocated.
// It is fatal: no realm state exists when it is returned.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision workspace: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// BootstrapError reports a failed bootstrap step: an external admin tool
// exited non-zero, or a daemon did not become ready in time. Partially
// created realm state is left in place for Stop to clean up.
type BootstrapError struct {
	// Stage identifies the bootstrap step that failed (see Stage* constants).
	Stage string

	// Cmd is the external command line, when the failure came from one.
	Cmd string

	// ExitCode is the command's exit status (-1 when it never ran or the
	// failure was not a command exit).
	ExitCode int

	// Output is the command's captured combined output, trimmed.
	Output string

	// Err is the underlying error, if any.
	Err error
}

func (e *BootstrapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bootstrap stage %s failed", e.Stage)
	if e.Cmd != "" {
		fmt.Fprintf(&b, ": `%s`", e.Cmd)
	}
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Output != "" {
		fmt.Fprintf(&b, "\n%s", e.Output)
	}
	return b.String()
}

func (e *BootstrapError) Unwrap() error { return e.Err }
