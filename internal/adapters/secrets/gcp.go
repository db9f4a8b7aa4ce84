package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"go.uber.org/zap"
)

// GCPConfig contains configuration for GCP Secret Manager
type GCPConfig struct {
	ProjectID string
	CacheTTL  time.Duration
}

// GCPProvider reads the latest version of secrets from GCP Secret Manager.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or workload identity.
type GCPProvider struct {
	client    *secretmanager.Client
	projectID string
	cache     *secretCache
	logger    *zap.Logger
}

// NewGCPProvider creates a Secret Manager client
func NewGCPProvider(ctx context.Context, cfg GCPConfig, logger *zap.Logger) (*GCPProvider, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	logger.Info("GCP Secret Manager provider initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &GCPProvider{client: client, projectID: cfg.ProjectID, cache: newSecretCache(cfg.CacheTTL), logger: logger}, nil
}

// Close closes the underlying client
func (p *GCPProvider) Close() error {
	return p.client.Close()
}

// GetSecret accesses projects/{project}/secrets/{path}/versions/latest
func (p *GCPProvider) GetSecret(ctx context.Context, path string) (string, error) {
	if v, ok := p.cache.get(path); ok {
		return v, nil
	}

	name := gcpSecretName(p.projectID, path)
	result, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		p.logger.Error("Failed to access GCP secret", zap.String("secret_name", name), zap.Error(err))
		return "", fmt.Errorf("failed to access GCP secret %s: %w", path, err)
	}

	value := string(result.GetPayload().GetData())
	p.cache.set(path, value)
	return value, nil
}

func gcpSecretName(projectID, path string) string {
	if strings.HasPrefix(path, "projects/") {
		return path
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, path)
}

var _ ports.SecretProvider = (*GCPProvider)(nil)
