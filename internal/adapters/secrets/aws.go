package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"go.uber.org/zap"
)

// AWSConfig contains configuration for the AWS Secrets Manager provider
type AWSConfig struct {
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	CacheTTL time.Duration
}

type awsSecretsClient interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager
type AWSProvider struct {
	client awsSecretsClient
	cache  *secretCache
	logger *zap.Logger
}

// NewAWSProvider loads the default credential chain and creates a client
func NewAWSProvider(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (*AWSProvider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager provider initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return newAWSProvider(secretsmanager.NewFromConfig(awsConfig, clientOptions...), cfg.CacheTTL, logger), nil
}

func newAWSProvider(client awsSecretsClient, ttl time.Duration, logger *zap.Logger) *AWSProvider {
	return &AWSProvider{client: client, cache: newSecretCache(ttl), logger: logger}
}

// GetSecret returns the SecretString stored under path (name or ARN)
func (p *AWSProvider) GetSecret(ctx context.Context, path string) (string, error) {
	if v, ok := p.cache.get(path); ok {
		return v, nil
	}

	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(path)})
	if err != nil {
		p.logger.Error("Failed to retrieve secret", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to get secret %s: %w", path, err)
	}
	value := aws.ToString(result.SecretString)
	if value == "" {
		return "", fmt.Errorf("secret %s has no string value", path)
	}

	p.cache.set(path, value)
	return value, nil
}

var _ ports.SecretProvider = (*AWSProvider)(nil)
