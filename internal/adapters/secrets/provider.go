package secrets

import (
	"context"
	"fmt"

	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"go.uber.org/zap"
)

// Config selects and configures a backend
type Config struct {
	Backend string // env, aws, vault or gcp
	BaseDir string
	AWS     AWSConfig
	Vault   VaultConfig
	GCP     GCPConfig
}

// NewProvider builds the provider named by cfg.Backend
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretProvider, error) {
	switch cfg.Backend {
	case "", "env":
		logger.Warn("Using environment secret provider - NOT for production use!")
		return NewEnvProvider(cfg.BaseDir), nil
	case "aws":
		return NewAWSProvider(ctx, cfg.AWS, logger)
	case "vault":
		return NewVaultProvider(ctx, cfg.Vault, logger)
	case "gcp":
		return NewGCPProvider(ctx, cfg.GCP, logger)
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}

// Resolve returns fallback when path is empty, otherwise the secret at path
func Resolve(ctx context.Context, p ports.SecretProvider, path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	v, err := p.GetSecret(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", path, err)
	}
	return v, nil
}
