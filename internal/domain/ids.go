package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namespaces for name-based (v5) identifiers. Reconciliation output ids are
// derived from their inputs so a re-run over the same cycle produces the same
// rows instead of duplicates.
var (
	namespaceException  = uuid.NewSHA1(uuid.NameSpaceOID, []byte("settlement-recon/exception"))
	namespaceMatch      = uuid.NewSHA1(uuid.NameSpaceOID, []byte("settlement-recon/match"))
	namespaceSettlement = uuid.NewSHA1(uuid.NameSpaceOID, []byte("settlement-recon/settlement-batch"))
)

// CycleKey formats a cycle date as YYYY-MM-DD
func CycleKey(cycleDate time.Time) string {
	return cycleDate.UTC().Format("2006-01-02")
}

// ExceptionID derives the id of the exception raised for reason on the given records
func ExceptionID(cycleDate time.Time, reason ExceptionReason, pgTransactionID, bankRef string) string {
	name := strings.Join([]string{CycleKey(cycleDate), string(reason), pgTransactionID, bankRef}, "|")
	return uuid.NewSHA1(namespaceException, []byte(name)).String()
}

// MatchID derives the id of a match result from the paired records
func MatchID(cycleDate time.Time, pgTransactionID, bankRef string) string {
	name := strings.Join([]string{CycleKey(cycleDate), pgTransactionID, bankRef}, "|")
	return uuid.NewSHA1(namespaceMatch, []byte(name)).String()
}

// SettlementBatchID derives the batch id from its idempotency key
func SettlementBatchID(merchantID string, cycleDate time.Time) string {
	name := merchantID + "|" + CycleKey(cycleDate)
	return uuid.NewSHA1(namespaceSettlement, []byte(name)).String()
}
