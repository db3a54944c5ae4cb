// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/crashreporter/cmd"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
	"github.com/xkilldash9x/crashreporter/internal/observability"
)

func main() {
	// The sentinel turns our own panics into crash logs for the next check.
	sentinel := &crashlog.Sentinel{Dir: cmd.CrashDir, Flush: observability.Sync}
	defer sentinel.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		observability.Sync()
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	observability.Sync()
}
