package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/render"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitUsage    = 2 // bad input, unknown records, rejected preconditions
	ExitConflict = 3 // concurrent writers won every retry
	ExitFatal    = 4 // store left in a state the merge cannot explain
)

// exitCodeError carries an explicit exit code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

// ExitCode maps an error returned from a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coded *exitCodeError
	if errors.As(err, &coded) {
		return coded.code
	}
	var etag *domain.ETagMismatchError
	switch {
	case errors.Is(err, domain.ErrFatalInconsistency):
		return ExitFatal
	case errors.Is(err, domain.ErrConflictRetryable):
		return ExitConflict
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrForbidden),
		errors.As(err, &etag):
		return ExitUsage
	default:
		return ExitError
	}
}

// newRenderer builds a renderer for the configured output format.
func newRenderer(app *appctx.App, cmd *cobra.Command) (*render.Renderer, error) {
	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return nil, exitError(ExitUsage, err)
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}), nil
}

// parseAssignments parses key=value arguments into a map.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected field=value", arg)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

// deref returns the pointed-to string or "" for nil.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
