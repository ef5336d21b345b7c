// Package emoji provides symbol constants for CLI output.
package emoji

// Symbols used for status indicators and user feedback in terminal output.
const (
	// Success marks a completed operation or a healthy provider.
	Success = "✓"

	// Error marks a failed operation or an unhealthy provider.
	Error = "✗"

	// Warning marks a non-fatal problem such as skipped records.
	Warning = "!"

	// Optional marks a skipped step, for example a dry run write.
	Optional = "-"

	// Info marks informational messages.
	Info = "i"
)
