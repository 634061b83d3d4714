package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shpitdev/leadfinder/internal/redact"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to an exit code: 2 for usage and configuration
// errors, 1 for failed runs.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ce *configError
	if errors.As(err, &ce) {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	_, _ = fmt.Fprintf(stderr, "run failed: %s\n", redact.Secrets(err.Error()))
	return 1
}

type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func configErrorf(format string, args ...any) error {
	return &configError{err: fmt.Errorf(format, args...)}
}

func asConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}
