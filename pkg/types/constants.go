package types

// Limit constants used across the codebase.
const (
	// DefaultProcessLimit is the number of processes get_process_info
	// reports when no limit argument is given.
	DefaultProcessLimit = 10

	// MaxProcessLimit caps the limit argument of get_process_info.
	MaxProcessLimit = 100

	// MaxToolOutputLines is the number of tool output lines echoed to the
	// terminal before truncation.
	MaxToolOutputLines = 20
)

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorBlue   = "\033[34m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
)
