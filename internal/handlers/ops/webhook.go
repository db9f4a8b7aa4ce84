package ops

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/handlers/httpx"
	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-Signature"

const maxWebhookBody = 1 << 20

// Signature returns the hex HMAC-SHA256 of payload under secret
func Signature(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidSignature reports whether signature matches payload. An empty secret
// never validates.
func ValidSignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Signature(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// WebhookHandler accepts bank credits pushed by gateways
type WebhookHandler struct {
	ops    *Handler
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates a webhook handler verifying bodies with secret
func NewWebhookHandler(ops *Handler, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{ops: ops, secret: secret, logger: logger}
}

// BankCredit handles POST /webhooks/{gateway}/bank-credits
func (h *WebhookHandler) BankCredit(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if !ValidSignature(h.secret, payload, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("Rejected bank credit webhook",
			zap.String("gateway", gateway),
			zap.String("remote_addr", r.RemoteAddr))
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, "invalid signature")
		return
	}

	var record domain.BankRecord
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		httpx.WriteDomainError(w, h.logger, validationError("invalid request body", err))
		return
	}

	ctx, cancel := h.ops.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.ops.ingest.IngestBankCredit(ctx, gateway, record)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, h.logger, status, result)
}
