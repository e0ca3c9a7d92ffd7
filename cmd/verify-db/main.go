package main

import (
	"context"
	"fmt"
	"os"

	"invoice-agent/internal/config"
	"invoice-agent/internal/db"
	"invoice-agent/internal/logging"

	"go.uber.org/zap"
)

var requiredTables = []string{
	"users", "clients", "invoices", "estimates", "line_items",
	"payment_options", "business_settings", "conversation_memory",
}

// verify-db applies pending migrations and checks that every table the
// persistence gateway reads is present.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New("verify-db", cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal("verification failed", zap.Error(err))
	}
	log.Info("database verified", zap.Int("tables", len(requiredTables)))
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var missing []string
	for _, table := range requiredTables {
		var found *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1)::text", "public."+table).Scan(&found); err != nil {
			return fmt.Errorf("check %s: %w", table, err)
		}
		if found == nil {
			missing = append(missing, table)
			continue
		}
		log.Info("table present", zap.String("table", table))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %v", missing)
	}
	return nil
}
