// Command visupdf opens the desktop verifier and runs the shared
// commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/cli"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/config"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/gui"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitError)
	}
	log := logger.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := cli.New("visupdf", cfg, log)
	app.Extra["gui"] = cli.Command{
		Usage: "gui [file.pdf] [index.json]             Open the desktop verifier",
		Run: func(_ context.Context, args []string) error {
			return runGUI(cfg, log, args)
		},
	}

	args := os.Args[1:]
	// "visupdf cours.pdf" opens the viewer directly.
	if len(args) > 0 && strings.HasSuffix(strings.ToLower(args[0]), ".pdf") {
		args = append([]string{"gui"}, args...)
	}
	if len(args) == 0 {
		args = []string{"gui"}
	}
	code := app.Run(ctx, args)
	stop()
	os.Exit(code)
}

func runGUI(cfg *config.Config, log logger.Logger, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("gui takes at most a PDF and an index, got %d arguments", len(args))
	}
	var pdfPath, indexPath string
	if len(args) > 0 {
		pdfPath = args[0]
	}
	if len(args) > 1 {
		indexPath = args[1]
	}

	nav := navigator.New(
		navigator.WithLogger(log),
		navigator.WithRenderer(engine.NewRenderer(cfg.TextLayer)),
		navigator.WithLoadOptions(cfg.LoadOptions()...),
		navigator.WithWidth(cfg.ViewportWidth),
	)
	defer nav.Close()
	return gui.NewApp(session.New(nav, log), log).Run(pdfPath, indexPath)
}
