package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"recstatus-dashboard/internal/dashboard"
	"recstatus-dashboard/internal/platform/config"
	"recstatus-dashboard/internal/platform/kvstore"
	"recstatus-dashboard/internal/platform/logger"
	"recstatus-dashboard/internal/platform/notify"

	"github.com/spf13/pflag"
)

// app holds the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer
	dash   *dashboard.Dashboard
	notes  *notify.Recorder

	flushed   int
	hadErrors bool
}

type command struct {
	name    string
	usage   string
	summary string
	flags   func(fs *pflag.FlagSet)
	run     func(ctx context.Context, a *app, args []string) error
}

// newApp parses the global flags and builds the dashboard core. It returns
// the arguments left for the subcommand.
func newApp(args []string, stdout, stderr io.Writer) (*app, []string, error) {
	_ = config.Load()
	cfg := config.LoadDashboard()

	fs := pflag.NewFlagSet("recctl", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	apiURL := fs.String("api", cfg.APIBaseURL, "aggregator API base URL")
	tokenFile := fs.String("token-file", cfg.TokenFile, "file holding the session token")
	timeout := fs.Duration("timeout", cfg.RequestTimeout, "per-request timeout")
	logLevel := fs.String("log-level", "error", "log level (debug, info, warn, error)")
	help := fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	rest := fs.Args()
	if *help || len(rest) == 0 {
		printUsage(stderr, fs)
		if *help {
			return nil, nil, pflag.ErrHelp
		}
		return nil, nil, fmt.Errorf("command required")
	}

	store, err := kvstore.OpenFile(*tokenFile)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWriter(stderr, *logLevel, "text")
	notes := notify.NewRecorder(0, nil)

	dash, err := dashboard.New(dashboard.Config{
		BaseURL:        *apiURL,
		RequestTimeout: *timeout,
	}, dashboard.Services{
		Notifier: notes,
		Store:    store,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}
	return &app{stdout: stdout, stderr: stderr, dash: dash, notes: notes}, rest, nil
}

func (a *app) dispatch(args []string) error {
	name := args[0]
	var cmd *command
	for _, c := range commands() {
		if c.name == name {
			cmd = c
			break
		}
	}
	if cmd == nil {
		return fmt.Errorf("unknown command %q, run 'recctl --help' for usage", name)
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%s: %w (usage: recctl %s)", cmd.name, err, cmd.usage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return cmd.run(ctx, a, fs.Args())
}

// flushNotifications prints what the core reported since the last flush.
func (a *app) flushNotifications() {
	if a == nil {
		return
	}
	msgs := a.notes.Messages()
	for _, m := range msgs[a.flushed:] {
		if m.Level == "error" {
			a.hadErrors = true
		}
		fmt.Fprintf(a.stderr, "%s: %s\n", m.Level, m.Text)
	}
	a.flushed = len(msgs)
}

// reported is true when the failure already reached the user as an error
// notification.
func (a *app) reported() bool {
	return a != nil && a.hadErrors
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: recctl [global flags] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, global.FlagUsages())
}

func passwordFromEnv() string {
	return strings.TrimSpace(os.Getenv("RECCTL_PASSWORD"))
}
