// Package main provides avatarctl, a command line client for the user
// service that shares the console's load and upload flow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lllypuk/avatarconsole/internal/config"
	"github.com/lllypuk/avatarconsole/internal/console"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usageText = `Usage: avatarctl [global flags] <command> [flags]

Commands:
  list                          list users and their avatar content type
  upload -user U -file F -token T
                                upload F as the avatar of U

Global flags:
`

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options are the global flags shared by every command.
type options struct {
	backend string
	timeout time.Duration
	verbose bool
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Alerts and diagnostics from avatar goroutines share stderr.
	stderr = &lockedWriter{w: stderr}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitFailure
	}

	opts := options{
		backend: cfg.Backend.BaseURL,
		timeout: cfg.Backend.RequestTimeout,
	}

	global := flag.NewFlagSet("avatarctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&opts.backend, "backend", opts.backend, "user service base URL")
	global.DurationVar(&opts.timeout, "timeout", opts.timeout, "per request timeout, 0 for none")
	global.BoolVar(&opts.verbose, "v", false, "log diagnostics to stderr")
	global.Usage = func() {
		fmt.Fprint(stderr, usageText)
		global.PrintDefaults()
	}

	if err = global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	client := avatarapi.NewClient(avatarapi.Config{
		BaseURL: opts.backend,
		Timeout: opts.timeout,
	})
	manager := console.NewManager(client,
		console.WithLogger(logger),
		console.WithAlerter(&writerAlerter{w: stderr}),
	)

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "list":
		err = runList(ctx, manager, rest, stdout, stderr)
	case "upload":
		err = runUpload(ctx, manager, rest, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		global.Usage()
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		return exitFailure
	}
}

func runList(ctx context.Context, manager *console.Manager, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := manager.LoadUsers(ctx); err != nil {
		fmt.Fprintf(stderr, "failed to load users: %v\n", err)
		return err
	}
	manager.Wait()

	state := manager.Snapshot()
	if len(state.Users) == 0 {
		fmt.Fprintln(stdout, "No valid users available.")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, user := range state.Users {
		avatar := "(No Avatar)"
		if ref, ok := state.Avatar(user.UserName); ok {
			avatar = dataURIContentType(ref)
		}
		fmt.Fprintf(tw, "%s\t%s\n", user.UserName, avatar)
	}
	return tw.Flush()
}

func runUpload(ctx context.Context, manager *console.Manager, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", "", "target username")
	file := fs.String("file", "", "path of a JPEG or PNG image")
	token := fs.String("token", os.Getenv("AVATARCTL_TOKEN"), "bearer token (default $AVATARCTL_TOKEN)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	// A failed list load leaves the working set empty; the upload itself
	// does not depend on it.
	_ = manager.LoadUsers(ctx)
	manager.Wait()

	selection, err := readImage(*file)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read image: %v\n", err)
		return err
	}

	manager.SetToken(*token)
	manager.SelectUser(*user)
	manager.SetFile(selection)

	err = manager.Upload(ctx)
	manager.Wait()
	if err != nil {
		return err
	}

	if message := manager.Snapshot().Message; message != "" {
		fmt.Fprintln(stderr, message)
	}
	return nil
}

// readImage loads path into a file selection. An empty path yields an empty
// selection so the upload preconditions report it.
func readImage(path string) (console.FileSelection, error) {
	if path == "" {
		return console.FileSelection{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return console.FileSelection{}, err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return console.FileSelection{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// dataURIContentType returns the media type of a data URI.
func dataURIContentType(ref string) string {
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ";")
	return mediaType
}

// writerAlerter prints operator alerts as lines.
type writerAlerter struct {
	w io.Writer
}

func (a *writerAlerter) Alert(_ context.Context, alert console.Alert) {
	fmt.Fprintf(a.w, "%s: %s\n", alert.Level, alert.Text)
}

// lockedWriter serializes writes to w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
