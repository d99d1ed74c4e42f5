// Command visupdf-cli runs the verifier commands without the desktop
// viewer, for servers and scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/cli"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/config"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitError)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New("visupdf-cli", cfg, logger.NewLogger(cfg.LogLevel)).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
