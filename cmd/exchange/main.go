// Package main is the entrypoint for the coffee exchange supervisor.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/agent-exchange/internal/config"
	"github.com/morezero/agent-exchange/internal/server"
	"github.com/morezero/agent-exchange/pkg/db"
)

const usage = `Usage: exchange [command]
       exchange serve              Start the exchange (HTTP front door, worker transport, sessions).
       exchange migrate up         Run session store migrations.
       exchange migrate down       Roll back (not supported; migrations are forward-only).
       exchange migrate status     Show migration status.
       exchange ensure-db [name]   Create database if missing (default: name from DATABASE_URL).
       exchange clear              Delete all stored conversations; schema is preserved.

Commands:
  serve           (default) Start the exchange.
  migrate up      Run database migrations only.
  migrate down    Roll back last migration (no-op).
  migrate status  Show applied and pending migrations.
  ensure-db       Create the database on the DATABASE_URL host.
  clear           Truncate session tables.

Environment: TRANSPORT (A2A|NATS), TRANSPORT_SERVER_ENDPOINT, SESSION_STORE (memory|postgres),
DATABASE_URL, MIGRATION_PATH, HTTP_ADDR / HTTP_PORT (default 8000), AGENT_CARDS_FILE. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("exchange migrate: require subcommand (up, down, status)")
		}
		var err error
		switch sub := args[1]; sub {
		case "up":
			err = withPool(runMigrateUp)
		case "status":
			err = withPool(runMigrateStatus)
		case "down":
			err = withPool(runMigrateDown)
		default:
			log.Fatalf("exchange migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		if err != nil {
			log.Fatalf("exchange migrate %s: %v", args[1], err)
		}
		return
	case "clear":
		if err := withPool(runClear); err != nil {
			log.Fatalf("exchange clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := ""
		if len(args) > 1 {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("exchange ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("exchange: %v", err)
	}
}

// withPool loads config, connects to DATABASE_URL and runs fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	state, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	fmt.Print(formatStatus(state))
	return nil
}

func formatStatus(state *db.MigrationState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applied: %d, pending: %d\n", len(state.Applied), len(state.Pending))
	for _, name := range state.Applied {
		fmt.Fprintf(&b, "  [x] %s\n", name)
	}
	for _, name := range state.Pending {
		fmt.Fprintf(&b, "  [ ] %s\n", name)
	}
	return b.String()
}

func runMigrateDown(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
	if err := db.ClearSessions(ctx, pool); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := withDatabaseName(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	created, err := db.EnsureDatabase(context.Background(), targetURL)
	if err != nil {
		return err
	}
	if created {
		fmt.Println("Database created.")
	} else {
		fmt.Println("Database already exists.")
	}
	return nil
}

// withDatabaseName replaces the database in databaseURL when dbName is set. Query parameters are kept.
func withDatabaseName(databaseURL, dbName string) (string, error) {
	if dbName == "" {
		return databaseURL, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
