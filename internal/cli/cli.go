// Package cli implements the visupdf commands shared by both binaries.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/config"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/report"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/server"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitUsage  = 2
	ExitIssues = 3
)

var (
	errUsage  = errors.New("usage")
	errIssues = errors.New("index does not fit the document")
)

// Command is a subcommand. Args exclude the command name.
type Command struct {
	Usage string
	Run   func(ctx context.Context, args []string) error
}

// App dispatches subcommands.
type App struct {
	Name   string
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config
	Log    logger.Logger
	// Extra adds commands, such as gui, to the built-in set.
	Extra map[string]Command
}

// New returns an App writing to the process streams.
func New(name string, cfg *config.Config, log logger.Logger) *App {
	return &App{Name: name, Stdout: os.Stdout, Stderr: os.Stderr, Config: cfg, Log: log, Extra: map[string]Command{}}
}

func (a *App) commands() map[string]Command {
	cmds := map[string]Command{
		"info":   {"info <file.pdf>                       Show metadata and page count", a.info},
		"render": {"render <file.pdf> [-p N] [-w W] [-o out.png] [-overlay out.json]\n                                         Render a page fitted to a width", a.render},
		"text":   {"text <file.pdf> [-p N]                Print the text of a page", a.text},
		"search": {"search <file.pdf> <query>             Find the first page containing query", a.search},
		"check":  {"check <file.pdf> <index.json> [-html report.html]\n                                         List index entries outside the document", a.check},
		"serve":  {"serve                                 Serve the HTTP API on VISU_ADDR", a.serve},
	}
	for name, c := range a.Extra {
		cmds[name] = c
	}
	return cmds
}

// Run executes args[0] with the remaining arguments and returns the
// process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage(a.Stderr)
		return ExitUsage
	}
	name := args[0]
	switch name {
	case "help", "-h", "--help":
		a.usage(a.Stdout)
		return ExitOK
	}
	cmd, ok := a.commands()[name]
	if !ok {
		fmt.Fprintf(a.Stderr, "Unknown command: %s\n", name)
		a.usage(a.Stderr)
		return ExitUsage
	}

	err := cmd.Run(ctx, args[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(a.Stderr, "Usage: %s %s\n", a.Name, cmd.Usage)
		return ExitUsage
	case errors.Is(err, errIssues):
		return ExitIssues
	}
	fmt.Fprintf(a.Stderr, "Error: %v\n", err)
	return ExitError
}

func (a *App) usage(w io.Writer) {
	fmt.Fprintf(w, "%s checks a chapter or QCM index against a PDF.\n\nUsage:\n  %s <command> [arguments]\n\nCommands:\n", a.Name, a.Name)
	cmds := a.commands()
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", cmds[n].Usage)
	}
	fmt.Fprintf(w, "  help                                  Show this help\n\nExamples:\n")
	fmt.Fprintf(w, "  %s info cours.pdf\n  %s render cours.pdf -p 3 -w 1200 -o page3.png\n  %s check cours.pdf index.json\n", a.Name, a.Name, a.Name)
}

// flags splits args into leading positionals and trailing flags, so
// "render doc.pdf -p 2" works as the usage shows.
func flags(name string, args []string, positional int, fs *flag.FlagSet) ([]string, error) {
	if len(args) < positional {
		return nil, errUsage
	}
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args[positional:]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errUsage, name, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: %s: unexpected %q", errUsage, name, fs.Arg(0))
	}
	return args[:positional], nil
}

func (a *App) open(ctx context.Context, path string) (*engine.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := engine.Load(ctx, data, a.Config.LoadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (a *App) info(ctx context.Context, args []string) error {
	pos, err := flags("info", args, 1, flag.NewFlagSet("info", flag.ContinueOnError))
	if err != nil {
		return err
	}
	doc, err := a.open(ctx, pos[0])
	if err != nil {
		return err
	}
	defer doc.Release()

	pages, _ := doc.PageCount()
	info, _ := doc.Info()
	w := a.Stdout
	fmt.Fprintf(w, "File: %s\n", pos[0])
	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintf(w, "Backend: %s\n", a.Config.Backend)
	fmt.Fprintf(w, "Pages: %d\n", pages)
	for _, kv := range [][2]string{
		{"Version", info.Version},
		{"Title", info.Title},
		{"Author", info.Author},
		{"Subject", info.Subject},
		{"Creator", info.Creator},
		{"Producer", info.Producer},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1])
		}
	}
	return nil
}

func (a *App) render(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	page := fs.Int("p", 1, "page number, 1-based")
	width := fs.Float64("w", a.Config.ViewportWidth, "viewport width in pixels")
	output := fs.String("o", "output.png", "output PNG")
	overlay := fs.String("overlay", "", "also write the text overlay as JSON")
	pos, err := flags("render", args, 1, fs)
	if err != nil {
		return err
	}
	doc, err := a.open(ctx, pos[0])
	if err != nil {
		return err
	}
	defer doc.Release()

	fmt.Fprintf(a.Stdout, "Rendering page %d at width %.0f...\n", *page, *width)
	target, err := engine.NewRenderer(a.Config.TextLayer || *overlay != "").Render(ctx, doc, engine.RenderRequest{Page: *page, Width: *width})
	if err != nil {
		return err
	}
	if err := writeFile(*output, func(w io.Writer) error { return png.Encode(w, target.Image) }); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Saved %s (%dx%d pixels, scale %.3f)\n", *output, target.Width, target.Height, target.Scale)

	if *overlay != "" {
		err := writeFile(*overlay, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(target.Fragments)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "Saved %s (%d fragments)\n", *overlay, len(target.Fragments))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (a *App) text(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("text", flag.ContinueOnError)
	page := fs.Int("p", 1, "page number, 1-based")
	pos, err := flags("text", args, 1, fs)
	if err != nil {
		return err
	}
	doc, err := a.open(ctx, pos[0])
	if err != nil {
		return err
	}
	defer doc.Release()

	texts, err := engine.PageText(ctx, doc, *page)
	if err != nil {
		return err
	}
	for _, t := range texts {
		fmt.Fprintln(a.Stdout, t)
	}
	return nil
}

func (a *App) search(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	doc, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer doc.Release()

	res, err := engine.Search(ctx, doc, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if !res.Found {
		fmt.Fprintf(a.Stdout, "Not found (%d pages scanned)\n", res.Scanned)
		return nil
	}
	fmt.Fprintf(a.Stdout, "Found on page %d\n", res.Page)
	return nil
}

func (a *App) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	htmlOut := fs.String("html", "", "write an HTML report")
	pos, err := flags("check", args, 2, fs)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(pos[1])
	if err != nil {
		return err
	}
	ix, err := index.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", pos[1], err)
	}
	doc, err := a.open(ctx, pos[0])
	if err != nil {
		return err
	}
	pages, _ := doc.PageCount()
	doc.Release()

	c := report.Check{
		Document: filepath.Base(pos[0]),
		Pages:    pages,
		Mode:     ix.Mode(),
		Entries:  ix.Len(),
		Issues:   ix.Check(pages),
	}
	a.Stdout.Write(c.Markdown())
	if *htmlOut != "" {
		out, err := c.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*htmlOut, out, 0o644); err != nil {
			return err
		}
	}
	if !c.OK() {
		return errIssues
	}
	return nil
}

func (a *App) serve(ctx context.Context, args []string) error {
	if _, err := flags("serve", args, 0, flag.NewFlagSet("serve", flag.ContinueOnError)); err != nil {
		return err
	}
	nav := navigator.New(
		navigator.WithLogger(a.Log),
		navigator.WithRenderer(engine.NewRenderer(a.Config.TextLayer)),
		navigator.WithLoadOptions(a.Config.LoadOptions()...),
		navigator.WithWidth(a.Config.ViewportWidth),
	)
	defer nav.Close()
	sess := session.New(nav, a.Log)
	return server.New(sess, a.Config, a.Log).Run(ctx)
}
