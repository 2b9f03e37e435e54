// Package analytics computes derived facts over classified ledger rows.
//
// GUARDRAIL: everything here is a pure function of its inputs. No clocks, no
// storage, no goroutines. Classified kinds are never persisted; they are
// recomputed on every read so the rules can evolve without a migration.
package analytics

import "strings"

// Kind is the derived direction of a transaction.
type Kind string

const (
	KindIncome      Kind = "income"
	KindSpend       Kind = "spend"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

// transferMCCs are merchant codes that always mean a P2P / card-to-card
// transfer (Monobank uses 4829).
var transferMCCs = map[int]struct{}{
	4829: {},
}

// transferKeywords are matched case-insensitively as substrings of the
// description. The set is fixed: comparability of reports depends on it.
var transferKeywords = []string{
	"переказ",
	"перевод",
	"transfer",
	"card to card",
	"p2p",
}

// IsTransfer reports whether (mcc, description) identifies a transfer.
// mcc 0 means absent.
func IsTransfer(mcc int, description string) bool {
	if _, ok := transferMCCs[mcc]; ok {
		return true
	}
	d := strings.ToLower(description)
	for _, kw := range transferKeywords {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// Classify derives the kind from the amount sign and the transfer test.
// amount is signed minor units: negative = money out.
func Classify(amount int64, mcc int, description string) Kind {
	if IsTransfer(mcc, description) {
		if amount < 0 {
			return KindTransferOut
		}
		return KindTransferIn
	}
	if amount < 0 {
		return KindSpend
	}
	return KindIncome
}
