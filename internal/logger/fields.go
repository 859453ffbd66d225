package logger

// Standard field keys for structured logging. Use these consistently so that
// realm lifecycle events can be filtered by realm, stage, or command.
const (
	KeyRealm     = "realm"     // Realm name: TEST.LOCAL
	KeyProvider  = "provider"  // Kerberos implementation: mit, heimdal, container
	KeyStage     = "stage"     // Bootstrap stage: create-db, add-principal, start-kdc, ...
	KeyPrincipal = "principal" // Principal name: alice@TEST.LOCAL
	KeyWorkspace = "workspace" // Workspace root directory
	KeyPath      = "path"      // File or directory path
	KeyCommand   = "cmd"       // External command line
	KeyExitCode  = "exit_code" // External command exit code
	KeyPID       = "pid"       // Daemon process ID
	KeyAddress   = "address"   // host:port of KDC or admin server
	KeyError     = "error"     // Error value
)
