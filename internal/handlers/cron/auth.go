package cron

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Authenticator verifies scheduler requests against a shared secret
type Authenticator struct {
	secret string
	logger *zap.Logger
}

// NewAuthenticator creates an authenticator. An empty secret rejects everything.
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: secret, logger: logger}
}

// Authenticate accepts X-Cron-Secret, a Bearer token, or the secret query
// parameter (development only)
func (a *Authenticator) Authenticate(r *http.Request) bool {
	if a.secret == "" {
		return false
	}

	if a.matches(r.Header.Get("X-Cron-Secret")) {
		return true
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && a.matches(token) {
		return true
	}

	if a.matches(r.URL.Query().Get("secret")) {
		a.logger.Warn("Using query parameter authentication (insecure)",
			zap.String("remote_addr", r.RemoteAddr),
		)
		return true
	}

	return false
}

func (a *Authenticator) matches(candidate string) bool {
	return candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(a.secret)) == 1
}
