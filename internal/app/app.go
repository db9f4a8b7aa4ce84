// Package app builds the service graph shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/settlement-recon/internal/adapters/memory"
	"github.com/kevin07696/settlement-recon/internal/adapters/postgres"
	"github.com/kevin07696/settlement-recon/internal/adapters/redis"
	"github.com/kevin07696/settlement-recon/internal/adapters/retryfeed"
	"github.com/kevin07696/settlement-recon/internal/adapters/secrets"
	"github.com/kevin07696/settlement-recon/internal/config"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/internal/services/exception"
	"github.com/kevin07696/settlement-recon/internal/services/ingest"
	"github.com/kevin07696/settlement-recon/internal/services/pipeline"
	"github.com/kevin07696/settlement-recon/internal/services/reconciliation"
	"github.com/kevin07696/settlement-recon/internal/services/settlement"
)

// Dependencies is the wired service graph
type Dependencies struct {
	Pool    *pgxpool.Pool
	DB      *postgres.DBExecutor
	Secrets ports.SecretProvider

	// Redis is nil when the in-memory dedup store is used
	Redis       *goredis.Client
	Dedup       ports.DedupStore
	MemoryDedup *memory.DedupStore

	Engine     *reconciliation.Engine
	Recon      *reconciliation.Service
	Settlement *settlement.Service
	Exceptions *exception.Service
	Pipeline   *pipeline.Service
	Ingest     *ingest.Service

	CronSecret    string
	WebhookSecret string
}

// NewLogger builds the process logger: JSON in production, console otherwise
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Logger.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Logger.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	if cfg.IsProduction() && !cfg.Logger.Development {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		return zapCfg.Build()
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// SecretsConfig maps the loaded configuration onto the secrets adapter
func SecretsConfig(cfg config.SecretsConfig) secrets.Config {
	vault := secrets.DefaultVaultConfig(cfg.VaultAddress)
	if cfg.VaultAuth != "" {
		vault.AuthMethod = cfg.VaultAuth
	}
	if cfg.VaultMount != "" {
		vault.MountPath = cfg.VaultMount
	}
	if cfg.VaultKVVersion != "" {
		vault.KVVersion = cfg.VaultKVVersion
	}
	vault.Token = cfg.VaultToken
	vault.RoleID = cfg.VaultRoleID
	vault.SecretID = cfg.VaultSecretID
	vault.CacheTTL = cfg.CacheTTL

	return secrets.Config{
		Backend: cfg.Backend,
		BaseDir: cfg.BaseDir,
		AWS: secrets.AWSConfig{
			Region:   cfg.AWSRegion,
			Profile:  cfg.AWSProfile,
			Endpoint: cfg.AWSEndpoint,
			CacheTTL: cfg.CacheTTL,
		},
		Vault: vault,
		GCP: secrets.GCPConfig{
			ProjectID: cfg.GCPProjectID,
			CacheTTL:  cfg.CacheTTL,
		},
	}
}

// Build resolves secrets, connects to storage and constructs every service.
// On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (deps *Dependencies, err error) {
	deps = &Dependencies{}
	defer func() {
		if err != nil {
			deps.Close()
			deps = nil
		}
	}()

	deps.Secrets, err = secrets.NewProvider(ctx, SecretsConfig(cfg.Secrets), logger)
	if err != nil {
		return deps, fmt.Errorf("init secrets provider: %w", err)
	}
	if err = resolveSecrets(ctx, cfg, deps); err != nil {
		return deps, err
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.ConnectionString())
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	deps.Pool, err = postgres.NewPool(ctx, poolCfg, logger)
	if err != nil {
		return deps, fmt.Errorf("init database: %w", err)
	}
	deps.DB = postgres.NewDBExecutor(deps.Pool)

	if err = deps.initDedup(ctx, cfg, logger); err != nil {
		return deps, err
	}

	txnRepo := postgres.NewTransactionRepository(deps.DB)
	bankRepo := postgres.NewBankRecordRepository(deps.DB)
	tierRepo := postgres.NewCommissionTierRepository(deps.DB)
	excRepo := postgres.NewExceptionRepository(deps.DB)

	if cfg.Settlement.TiersFile != "" {
		if err = seedTiers(ctx, deps.DB, tierRepo, cfg.Settlement.TiersFile, logger); err != nil {
			return deps, err
		}
	}

	feed := retryfeed.New(txnRepo, bankRepo, retryfeed.DefaultConfig(), logger)
	deps.Engine = reconciliation.NewEngine(Thresholds(cfg.Reconciliation), cfg.Reconciliation.Workers, nil, logger)
	deps.Recon = reconciliation.NewService(deps.DB, feed, feed, txnRepo, bankRepo,
		postgres.NewMatchRepository(deps.DB), excRepo, deps.Engine, logger)
	deps.Settlement = settlement.NewService(deps.DB, txnRepo, postgres.NewSettlementRepository(deps.DB),
		tierRepo, Rates(cfg.Settlement), nil, logger)
	deps.Exceptions = exception.NewService(deps.DB, excRepo, nil, logger)
	deps.Pipeline = pipeline.NewService(deps.DB, postgres.NewPipelineRepository(deps.DB), nil, logger)
	deps.Ingest = ingest.NewService(deps.Dedup, bankRepo, cfg.Dedup.TTL, logger)

	return deps, nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config, deps *Dependencies) error {
	var err error
	cfg.Database.Password, err = secrets.Resolve(ctx, deps.Secrets, cfg.Database.PasswordSecretPath, cfg.Database.Password)
	if err != nil {
		return fmt.Errorf("database password: %w", err)
	}
	deps.CronSecret, err = secrets.Resolve(ctx, deps.Secrets, cfg.Auth.CronSecretPath, cfg.Auth.CronSecret)
	if err != nil {
		return fmt.Errorf("cron secret: %w", err)
	}
	deps.WebhookSecret, err = secrets.Resolve(ctx, deps.Secrets, cfg.Auth.WebhookSecretPath, cfg.Auth.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook secret: %w", err)
	}
	deps.CronSecret = strings.TrimSpace(deps.CronSecret)
	deps.WebhookSecret = strings.TrimSpace(deps.WebhookSecret)
	return nil
}

func (d *Dependencies) initDedup(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Redis.Addr == "" {
		d.MemoryDedup = memory.NewDedupStore(nil)
		d.Dedup = d.MemoryDedup
		logger.Warn("Using in-memory dedup store; deliveries are only deduplicated per process")
		return nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		KeyPrefix: cfg.Redis.KeyPrefix,
		DB:        cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	d.Redis = client
	d.Dedup = redis.NewDedupStore(client, cfg.Redis.KeyPrefix)
	logger.Info("Redis dedup store connected", zap.String("addr", cfg.Redis.Addr))
	return nil
}

func seedTiers(ctx context.Context, db *postgres.DBExecutor, repo ports.CommissionTierRepository, path string, logger *zap.Logger) error {
	tiers, err := config.LoadTiers(path)
	if err != nil {
		return err
	}
	err = db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, t := range tiers {
			if err := repo.Upsert(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed commission tiers: %w", err)
	}
	logger.Info("Commission tiers seeded", zap.String("file", path), zap.Int("tiers", len(tiers)))
	return nil
}

// Thresholds converts reconciliation config to classifier thresholds
func Thresholds(cfg config.ReconciliationConfig) reconciliation.Thresholds {
	return reconciliation.Thresholds{
		FeeMismatchMin:    cfg.FeeMismatchMin,
		FeeMismatchMax:    cfg.FeeMismatchMax,
		RoundingTolerance: cfg.RoundingTolerance,
		WindowDays:        cfg.WindowDays,
	}
}

// Rates converts settlement config to calculator rates
func Rates(cfg config.SettlementConfig) settlement.Rates {
	return settlement.Rates{
		GSTPercent:     cfg.GSTPercent,
		TDSPercent:     cfg.TDSPercent,
		ReservePercent: cfg.ReservePercent,
	}
}

// Close releases storage connections
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if c, ok := d.Secrets.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
