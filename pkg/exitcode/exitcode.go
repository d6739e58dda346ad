// Package exitcode provides standardized exit codes for repopolicy
package exitcode

// Exit codes for the repopolicy CLI. PoliciesViolated shares its value with
// the generic failure code because pre-commit only distinguishes zero from
// non-zero.
const (
	Success          = 0
	PoliciesViolated = 1
	GeneralError     = 1
	ConfigError      = 2
	ValidationError  = 3
	FileSystemError  = 4
	ToolNotFound     = 9
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "Policy violations found"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Invalid options"
	case FileSystemError:
		return "File system error"
	case ToolNotFound:
		return "Tool not found"
	default:
		return "Unknown error"
	}
}
