package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/geogotchi/geogotchi/pkg/geonames"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if tdErr := a.teardown(); err == nil {
		err = tdErr
	}
	if err == nil {
		return exitOK
	}
	color.New(color.FgRed, color.Bold).Fprint(stderr, "error: ")
	fmt.Fprintln(stderr, err)
	if isUsageError(err) {
		fmt.Fprintf(stderr, "run '%s --help' for usage\n", root.Name())
		return exitUsage
	}
	if geonames.IsCreditLimit(err) {
		color.New(color.FgYellow).Fprintln(stderr, "the account is out of credits; set GEONAMES_USERNAME to your own geonames account")
	}
	return exitError
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue) || errors.Is(err, geonames.ErrInvalidArgument)
}
