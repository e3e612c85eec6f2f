package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/getsentry/sentry-go"
	"github.com/pennywise-app/pennywise-go/internal/config"
	"github.com/pennywise-app/pennywise-go/internal/events"
	"github.com/pennywise-app/pennywise-go/internal/sqlitestore"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// cliNotifier prints provider outcome messages
type cliNotifier struct {
	out    io.Writer
	errOut io.Writer

	// quiet drops success messages during bulk operations
	quiet bool
}

func (n *cliNotifier) Success(msg string) {
	if n.quiet {
		return
	}
	fmt.Fprintln(n.out, successStyle.Render("✓ "+msg))
}

func (n *cliNotifier) Failure(msg string, err error) {
	if err != nil {
		fmt.Fprintln(n.errOut, failureStyle.Render(fmt.Sprintf("✗ %s: %v", msg, err)))
		return
	}
	fmt.Fprintln(n.errOut, failureStyle.Render("✗ "+msg))
}

// app is one command invocation's client and its backing resources
type app struct {
	cfg      *config.Config
	client   *pennywise.Client
	store    *sqlitestore.Store
	notifier *cliNotifier
	events   *events.Publisher
	unsub    func()
	out      io.Writer
	json     bool
}

// newApp builds a client for the configured backend
func newApp(cmd *cobra.Command) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	jsonOut := viper.GetBool("output.json")
	notifier := &cliNotifier{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	if jsonOut {
		// keep stdout parseable
		notifier.out = cmd.ErrOrStderr()
	}
	opts := &pennywise.ClientOptions{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		LoadTimeout: cfg.LoadTimeout,
		Logger:      logger,
		Notifier:    notifier,
		SentryDSN:   cfg.SentryDSN,
	}
	if cfg.SentryDSN != "" {
		opts.SentryOptions = &sentry.ClientOptions{Environment: cfg.Environment, Release: "pennywise@" + version}
	}

	a := &app{cfg: cfg, out: cmd.OutOrStdout(), json: jsonOut, notifier: notifier}

	switch cfg.Backend {
	case config.BackendREST:
		opts.SessionFile = cfg.SessionFile
		opts.SessionKey = cfg.SessionKey
		if cfg.MaxRetries > 0 {
			opts.RetryConfig = &pennywise.RetryConfig{
				MaxRetries: cfg.MaxRetries,
				RetryWait:  time.Second,
				MaxWait:    10 * time.Second,
			}
		}
	case config.BackendSQLite:
		store, err := sqlitestore.Open(cfg.SQLitePath, cfg.LocalUser, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
		opts.Adapter = store
	case config.BackendMemory:
		opts.Adapter = pennywise.NewMemoryAdapter(cfg.LocalUser, "")
	}

	client, err := pennywise.NewClient(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

// startedApp builds the client and runs the session-start loads
func startedApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.client.Start(cmd.Context()); err != nil {
		if pennywise.IsAuthError(err) {
			a.Close()
			return nil, fmt.Errorf("not signed in: run 'pennywise login' first (%w)", err)
		}
		// failed providers keep their error; commands on the others still work
		slog.Warn("Some data could not be loaded", "error", err)
	}
	if a.cfg.AMQPURL != "" {
		a.publishEvents()
	}
	return a, nil
}

// publishEvents forwards transaction changes made by this command to AMQP.
// A broker outage only costs the events, never the command.
func (a *app) publishEvents() {
	userID := a.cfg.LocalUser
	if session := a.client.GetSession(); session != nil && session.UserID != "" {
		userID = session.UserID
	}
	pub, err := events.Dial(a.cfg.AMQPURL, a.cfg.AMQPExchange, userID)
	if err != nil {
		slog.Warn("Change events disabled", "error", err)
		return
	}
	a.events = pub
	a.unsub = a.client.Transactions.Subscribe(pub)
}

func (a *app) Close() {
	if a.unsub != nil {
		a.unsub()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			slog.Warn("Failed to close event publisher", "error", err)
		}
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indicatorStyle(level pennywise.IndicatorLevel) lipgloss.Style {
	switch level {
	case pennywise.LevelGood:
		return successStyle
	case pennywise.LevelBad:
		return failureStyle
	case pennywise.LevelWarning:
		return warningStyle
	}
	return lipgloss.NewStyle()
}
