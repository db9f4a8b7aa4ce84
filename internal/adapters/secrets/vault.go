package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"go.uber.org/zap"
)

// VaultConfig contains configuration for the HashiCorp Vault provider
type VaultConfig struct {
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	CacheTTL      time.Duration
	TLSSkipVerify bool
}

// DefaultVaultConfig returns token auth against a KV v2 mount at "secret"
func DefaultVaultConfig(address string) VaultConfig {
	return VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		CacheTTL:   DefaultCacheTTL,
	}
}

// VaultProvider reads secrets from a Vault KV engine
type VaultProvider struct {
	client *vault.Client
	cfg    VaultConfig
	cache  *secretCache
	logger *zap.Logger
}

// NewVaultProvider creates and authenticates a Vault client
func NewVaultProvider(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (*VaultProvider, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault provider initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
	)

	return &VaultProvider{client: client, cfg: cfg, cache: newSecretCache(cfg.CacheTTL), logger: logger}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads path and returns its "value" key
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (string, error) {
	if v, ok := p.cache.get(path); ok {
		return v, nil
	}

	secret, err := p.client.Logical().ReadWithContext(ctx, vaultPath(p.cfg, path))
	if err != nil {
		p.logger.Error("Failed to retrieve secret from Vault", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", path)
	}

	value, err := vaultValue(p.cfg.KVVersion, secret.Data)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", path, err)
	}

	p.cache.set(path, value)
	return value, nil
}

func vaultPath(cfg VaultConfig, path string) string {
	if cfg.KVVersion == "v1" {
		return fmt.Sprintf("%s/%s", cfg.MountPath, path)
	}
	return fmt.Sprintf("%s/data/%s", cfg.MountPath, path)
}

// vaultValue unwraps KV v2 payloads. The secret is stored under "value".
func vaultValue(kvVersion string, data map[string]interface{}) (string, error) {
	if kvVersion != "v1" {
		inner, ok := data["data"].(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("invalid secret format from Vault")
		}
		data = inner
	}
	value, _ := data["value"].(string)
	if value == "" {
		return "", fmt.Errorf("secret value is empty or not found")
	}
	return value, nil
}

var _ ports.SecretProvider = (*VaultProvider)(nil)
