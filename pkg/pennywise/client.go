package pennywise

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pennywise-app/pennywise-go/internal/auth"
	"github.com/pennywise-app/pennywise-go/internal/transport"
	internalTypes "github.com/pennywise-app/pennywise-go/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the default hosted backend URL
	DefaultBaseURL = internalTypes.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// DefaultLoadTimeout bounds how long a provider load waits for the backend
	DefaultLoadTimeout = 5 * time.Second

	// UserAgent is the user agent string
	UserAgent = internalTypes.UserAgent
)

// Session represents an authenticated session
type Session = internalTypes.Session

// Logger interface for logging
type Logger = internalTypes.Logger

// RetryConfig configures retry behavior
type RetryConfig = internalTypes.RetryConfig

// Hooks provides lifecycle hooks for requests
type Hooks = internalTypes.Hooks

// Client is the application state for one signed-in user
type Client struct {
	// Service interfaces
	Transactions TransactionService
	Budgets      BudgetService
	Savings      SavingsService
	Profile      ProfileService

	// Auth is nil when a custom Adapter is supplied
	Auth AuthService

	// Internal fields
	adapter   Adapter
	transport *transport.RESTTransport
	auth      *authService
	options   *ClientOptions
	guard     *inflightGuard
	notifier  Notifier
	profile   *profileService
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default backend URL
	BaseURL string

	// APIKey is the public project key sent with every request
	APIKey string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// LoadTimeout bounds each provider load; defaults to DefaultLoadTimeout
	LoadTimeout time.Duration

	// Token provides a direct access token
	Token string

	// SessionFile path for session persistence
	SessionFile string

	// SessionKey encrypts the session file when set
	SessionKey string

	// Adapter replaces the hosted REST backend
	Adapter Adapter

	// Logger for debug logging
	Logger Logger

	// Notifier receives user-facing outcome messages
	Notifier Notifier

	// RetryConfig configures retry behavior
	RetryConfig *RetryConfig

	// RateLimiter for rate limiting
	RateLimiter RateLimiter

	// Hooks for observability
	Hooks *Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewClient creates a new client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}
		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}
		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}
		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}
		if err := sentry.Init(sentryOpts); err != nil {
			// Log error but don't fail client creation
			if opts.Logger != nil {
				opts.Logger.Error("Failed to initialize Sentry", "error", err)
			}
		}
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}

	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	c := &Client{
		options: opts,
		guard:   newInflightGuard(),
	}

	c.notifier = opts.Notifier
	if c.notifier == nil {
		c.notifier = &logNotifier{logger: opts.Logger}
	}

	if opts.Adapter != nil {
		c.adapter = opts.Adapter
	} else {
		c.transport = transport.NewRESTTransport(&transport.Options{
			BaseURL:     opts.BaseURL,
			APIKey:      opts.APIKey,
			HTTPClient:  opts.HTTPClient,
			RetryConfig: opts.RetryConfig,
			Logger:      opts.Logger,
			Hooks:       opts.Hooks,
		})
		if opts.Token != "" {
			c.transport.SetAuth(opts.Token)
		}
		authSvc := auth.NewService(opts.BaseURL, opts.APIKey, opts.HTTPClient, opts.Logger)
		authSvc.SetSessionKey(opts.SessionKey)
		c.auth = newAuthService(c, authSvc)
		c.Auth = c.auth

		restAdapter := NewRESTAdapter(c.transport, opts.Logger)
		restAdapter.ensureSession = c.auth.ensureSession
		c.adapter = restAdapter
	}

	c.initServices()

	if opts.SessionFile != "" && c.Auth != nil {
		switch err := c.Auth.LoadSession(opts.SessionFile); {
		case err == nil:
		case errors.Is(err, ErrSessionExpired):
			c.logInfo("Stored session expired; it is refreshed on first use", "path", opts.SessionFile)
		default:
			c.logWarn("Failed to load session", "error", err)
		}
	}

	return c, nil
}

// NewClientWithAdapter creates a client over a custom backend
func NewClientWithAdapter(adapter Adapter, logger Logger) (*Client, error) {
	return NewClient(&ClientOptions{
		Adapter: adapter,
		Logger:  logger,
	})
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	txns := newTransactionService(c)
	c.Transactions = txns
	c.Budgets = newBudgetService(c, txns)
	c.Savings = newSavingsService(c)
	c.profile = &profileService{client: c}
	c.Profile = c.profile
}

// SetToken sets the access token on the hosted backend
func (c *Client) SetToken(token string) {
	if c.transport != nil {
		c.transport.SetAuth(token)
	}
}

// GetSession returns the current session of the hosted backend
func (c *Client) GetSession() *Session {
	if c.transport == nil {
		return nil
	}
	return c.transport.Session()
}

// Start runs the session-start sequence: ensure the profile, then load
// every provider concurrently. Provider failures stay in provider state
// and are joined into the returned error.
func (c *Client) Start(ctx context.Context) error {
	if _, err := c.Profile.Ensure(ctx); err != nil {
		if IsAuthError(err) {
			return err
		}
		// a missing profile degrades preferences only
		c.logWarn("Failed to ensure user profile", "error", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	load := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	load("transactions", c.Transactions.Load)
	load("budgets", c.Budgets.Load)
	load("savings", c.Savings.Load)
	_ = g.Wait()

	c.logInfo("Session started",
		"transactions", len(c.Transactions.List()),
		"budgets", len(c.Budgets.List()),
		"goals", len(c.Savings.List()),
		"failures", len(errs))
	return errors.Join(errs...)
}

// SignOut disposes all provider state and ends the session
func (c *Client) SignOut(ctx context.Context) error {
	c.Transactions.Reset()
	c.Budgets.Reset()
	c.Savings.Reset()
	c.profile.reset()

	if c.Auth != nil {
		if err := c.Auth.Logout(ctx); err != nil {
			return err
		}
	}
	if c.options.SessionFile != "" {
		return auth.RemoveSession(c.options.SessionFile)
	}
	return nil
}

// HealthReport scores the currently loaded state
func (c *Client) HealthReport() HealthReport {
	return HealthScore(HealthInputs{
		TotalIncome:  c.Transactions.TotalByType(KindIncome),
		TotalExpense: c.Transactions.TotalByType(KindExpense),
		Budgets:      c.Budgets.List(),
		TotalSavings: c.Savings.TotalSavings(),
	})
}

// execute runs one adapter call with rate limiting, hooks and error capture
func (c *Client) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.options.RateLimiter != nil {
		if err := c.options.RateLimiter.Wait(ctx); err != nil {
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if c.options.Logger != nil {
		c.options.Logger.Debug("Adapter call", "operation", operation, "duration", duration, "error", err)
	}

	if err != nil && !IsAuthError(err) {
		capture := func(scope *sentry.Scope, capture func(error) *sentry.EventID) {
			scope.SetTag("pennywise.operation", operation)
			scope.SetContext("pennywise", map[string]interface{}{
				"operation": operation,
				"duration":  duration.String(),
			})
			capture(err)
		}
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.WithScope(func(scope *sentry.Scope) { capture(scope, hub.CaptureException) })
		} else {
			sentry.WithScope(func(scope *sentry.Scope) { capture(scope, sentry.CaptureException) })
		}
	}

	if err != nil && c.options.Hooks != nil && c.options.Hooks.OnError != nil {
		c.options.Hooks.OnError(ctx, err)
	}

	return err
}

// Close flushes any pending Sentry events and performs cleanup
func (c *Client) Close() {
	sentry.Flush(2 * time.Second)
}

func (c *Client) logWarn(msg string, keysAndValues ...interface{}) {
	if c.options.Logger != nil {
		c.options.Logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.options.Logger != nil {
		c.options.Logger.Info(msg, keysAndValues...)
	}
}

// logNotifier routes user-facing messages to the logger
type logNotifier struct {
	logger Logger
}

func (n *logNotifier) Success(msg string) {
	if n.logger != nil {
		n.logger.Info(msg)
	}
}

func (n *logNotifier) Failure(msg string, err error) {
	if n.logger != nil {
		n.logger.Error(msg, "error", err)
	}
}
