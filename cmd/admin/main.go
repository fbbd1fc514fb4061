package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"bancolink/internal/infrastructure/crypto"
	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/postgres"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/config"
	"bancolink/internal/shared/logging"
)

const usage = `BancoLink Admin CLI - Management commands for the BancoLink server

Usage:
  admin <command> [options]

Commands:
  migrate-sessions   Create the Postgres session table and purge expired sessions
  link-summary       Print the accounts and total balance of a Fintoc link

Examples:
  # Prepare the session table before switching SESSION_STORE=postgres
  admin migrate-sessions

  # Inspect a link
  admin link-summary --link-token=link_abc_token_xyz

  # Include the latest movements of every account
  admin link-summary --link-token=link_abc_token_xyz --movements=10 --since=2024-01-01
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate-sessions":
		runMigrateSessions(os.Args[2:])
	case "link-summary":
		runLinkSummary(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runMigrateSessions(args []string) {
	fs := flag.NewFlagSet("migrate-sessions", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin migrate-sessions [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database.ConnectionString(), postgres.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	key, err := crypto.DeriveKey(cfg.Session.SecretKey, "session")
	if err != nil {
		log.Fatalf("Failed to derive session key: %v", err)
	}
	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	purged, err := session.NewPostgresStore(db, encryptor).Migrate(ctx)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Printf("Session table ready, %d expired session(s) purged\n", purged)
}

func runLinkSummary(args []string) {
	fs := flag.NewFlagSet("link-summary", flag.ExitOnError)

	linkToken := fs.String("link-token", "", "Fintoc link token to inspect")
	movements := fs.Int("movements", 0, "Also list up to N movements per account (0 disables)")
	since := fs.String("since", "", "Earliest movement date, YYYY-MM-DD")
	until := fs.String("until", "", "Latest movement date, YYYY-MM-DD")
	verbose := fs.Bool("verbose", false, "Log Fintoc requests")

	fs.Usage = func() {
		fmt.Println("Usage: admin link-summary [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *linkToken == "" {
		fmt.Println("Error: must specify --link-token")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = logging.New("debug", false); err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
	}

	client := fintoc.NewClient(fintoc.Config{
		APIKey:    cfg.Fintoc.APIKey,
		PublicKey: cfg.Fintoc.PublicKey,
		BaseURL:   cfg.Fintoc.BaseURL,
		Timeout:   cfg.Fintoc.Timeout,
	}, logger)
	if !client.Configured() {
		log.Fatal("FINTOC_API_KEY is not set")
	}

	ctx := context.Background()

	summary, err := client.GetLinkSummary(ctx, *linkToken)
	if err != nil {
		log.Fatalf("Failed to get link summary (%s): %v", fintoc.KindOf(err), err)
	}
	printSummary(summary)

	if *movements <= 0 {
		return
	}
	opts := fintoc.MovementsOptions{Limit: *movements, Since: *since, Until: *until}
	for _, acc := range summary.Accounts {
		list, err := client.GetAccountMovements(ctx, acc.ID, opts)
		if err != nil {
			fmt.Printf("\n  %s: error: %v\n", acc.ID, err)
			continue
		}
		printMovements(acc, list)
	}
}

func printSummary(summary *fintoc.Summary) {
	fmt.Printf("\n=== Link %s ===\n", logging.Mask(summary.LinkToken))
	fmt.Printf("  Accounts:       %d\n", summary.AccountsCount)
	fmt.Printf("  Total balance:  %s %s\n", summary.TotalBalance.String(), summary.Currency)
	if summary.MixedCurrencies {
		fmt.Println("  Warning:        accounts use different currencies, total mixes them")
	}

	for _, acc := range summary.Accounts {
		balance := "-"
		if acc.Balance != nil {
			balance = acc.Balance.Current.String() + " " + acc.Balance.Currency
		}
		fmt.Printf("    - %-24s %-12s %-10s %s\n", acc.ID, acc.Number, acc.Type, balance)
	}
}

func printMovements(acc fintoc.Account, movements []fintoc.Movement) {
	fmt.Printf("\n  Movements for %s (%d)\n", acc.ID, len(movements))
	for i, mv := range movements {
		if i >= 50 {
			fmt.Printf("    ... and %d more movements\n", len(movements)-50)
			break
		}
		fmt.Printf("    %s  %14s  %s\n", mv.PostDate, mv.Amount.String(), mv.Description)
	}
}
