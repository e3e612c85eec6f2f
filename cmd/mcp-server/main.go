package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
)

func main() {
	// Hosted backend credentials from environment
	token := os.Getenv("PENNYWISE_TOKEN")
	sessionFile := os.Getenv("PENNYWISE_SESSION_FILE")
	if token == "" && sessionFile == "" {
		log.Fatal("PENNYWISE_TOKEN or PENNYWISE_SESSION_FILE environment variable is required")
	}

	opts := &pennywise.ClientOptions{
		BaseURL:     os.Getenv("PENNYWISE_BASE_URL"),
		APIKey:      os.Getenv("PENNYWISE_API_KEY"),
		Token:       token,
		SessionFile: sessionFile,
		SessionKey:  os.Getenv("PENNYWISE_SESSION_KEY"),
		SentryDSN:   os.Getenv("PENNYWISE_SENTRY_DSN"),
		// stdout carries the protocol, so outcome messages stay silent
		Notifier: quietNotifier{},
	}
	client, err := pennywise.NewClient(opts)
	if err != nil {
		log.Fatalf("failed to initialize pennywise client: %v", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startWithRetry(ctx, client, 30*time.Second); err != nil {
		if pennywise.IsAuthError(err) {
			log.Fatalf("not signed in: %v", err)
		}
		log.Printf("some data could not be loaded: %v", err)
	}

	impl := &mcp.Implementation{
		Name:    "pennywise",
		Version: "1.0.0",
	}

	server := mcp.NewServer(impl, nil)

	registerTools(server, client)

	// Run server over stdio transport
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatalf("server error: %v", err)
	}
}

// quietNotifier drops provider outcome messages
type quietNotifier struct{}

func (quietNotifier) Success(string)        {}
func (quietNotifier) Failure(string, error) {}

func registerTools(server *mcp.Server, client *pennywise.Client) {
	tools := &pennywiseTools{client: client}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_transactions",
		Description: "Query income and expense transactions, newest first, with optional filters for date range, type, category, text search and limit.",
	}, tools.GetTransactions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_budgets",
		Description: "Get all category budgets with their cap, period, amount spent, remaining amount and whether the cap is exceeded.",
	}, tools.GetBudgets)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_savings_goals",
		Description: "Get savings goals with target and current amounts, progress, status, priority and days left until the target date.",
	}, tools.GetSavingsGoals)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_financial_health",
		Description: "Get the 0-100 financial health score with its savings rate, budget adherence and emergency fund components.",
	}, tools.GetFinancialHealth)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_spending_summary",
		Description: "Summarize a period (day, week, month or year): income, expenses, balance, top expense categories and the monthly trend.",
	}, tools.GetSpendingSummary)
}
