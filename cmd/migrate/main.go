package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/kevin07696/settlement-recon/internal/adapters/postgres"
	"github.com/kevin07696/settlement-recon/internal/adapters/secrets"
	"github.com/kevin07696/settlement-recon/internal/app"
	"github.com/kevin07696/settlement-recon/internal/config"
	"github.com/kevin07696/settlement-recon/internal/db"
)

var (
	flags   = flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout = flags.Duration("timeout", 5*time.Minute, "overall migration timeout")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := migrate(ctx, cfg, args[0], args[1:], logger); err != nil {
		logger.Fatal("Migration failed", zap.String("command", args[0]), zap.Error(err))
	}
	logger.Info("Migration complete", zap.String("command", args[0]))
}

func migrate(ctx context.Context, cfg *config.Config, command string, args []string, logger *zap.Logger) error {
	provider, err := secrets.NewProvider(ctx, app.SecretsConfig(cfg.Secrets), logger)
	if err != nil {
		return fmt.Errorf("init secrets provider: %w", err)
	}
	cfg.Database.Password, err = secrets.Resolve(ctx, provider, cfg.Database.PasswordSecretPath, cfg.Database.Password)
	if err != nil {
		return err
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.ConnectionString())
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return db.Run(ctx, sqlDB, command, args...)
}

func usage() {
	fmt.Print(`Usage: migrate [-timeout 5m] COMMAND

Database settings are read from the same environment as the server
(DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE,
DB_PASSWORD_SECRET_PATH, CONFIG_FILE).

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database

Examples:
    migrate up
    migrate down
    migrate status
`)
}
