package driven

import "context"

// CommandRunner executes external commands. Extraction backends that
// shell out (poppler's pdftotext and pdfinfo) depend on this interface
// so tests can substitute canned output.
type CommandRunner interface {
	// Run executes the named command with the given arguments and
	// returns its combined standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
