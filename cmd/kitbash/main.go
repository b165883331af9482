package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/kitbash/internal/cli"
	kerrors "github.com/matzehuels/kitbash/pkg/errors"
)

// Exit statuses.
const (
	exitFailure     = 1
	exitInvalid     = 2   // input rejected before anything changed
	exitInterrupted = 130 // SIGINT
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	err := cli.New(os.Stderr, cli.LogInfo).RootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), kerrors.Is(err, kerrors.ErrCodeCanceled):
		return exitInterrupted
	}
	fmt.Fprintln(os.Stderr, "kitbash:", err)
	if kerrors.IsValidation(err) {
		return exitInvalid
	}
	return exitFailure
}
