package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// EnvProvider resolves secrets from the environment, or from files under
// BaseDir when set. Development only.
type EnvProvider struct {
	BaseDir string
	lookup  func(string) (string, bool)
}

// NewEnvProvider creates a provider over os.LookupEnv
func NewEnvProvider(baseDir string) *EnvProvider {
	return &EnvProvider{BaseDir: baseDir, lookup: os.LookupEnv}
}

// GetSecret maps "db/password" to $DB_PASSWORD, falling back to BaseDir/db/password
func (p *EnvProvider) GetSecret(_ context.Context, path string) (string, error) {
	if v, ok := p.lookup(envName(path)); ok && v != "" {
		return v, nil
	}
	if p.BaseDir != "" {
		data, err := os.ReadFile(filepath.Join(p.BaseDir, filepath.Clean("/"+path)))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
	}
	return "", fmt.Errorf("secret not found: %s", path)
}

func envName(path string) string {
	r := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToUpper(r.Replace(strings.Trim(path, "/")))
}

var _ ports.SecretProvider = (*EnvProvider)(nil)
