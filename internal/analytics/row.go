package analytics

import (
	"strings"

	"monobudget/internal/ledger"
)

// Row is a ledger record plus its derived kind. Rows only ever live in
// memory; the ledger stays canonical.
type Row struct {
	AccountID   string
	Time        int64
	Amount      int64 // signed minor units
	Description string
	MCC         int
	Kind        Kind
}

// FromLedger classifies ledger records into analytic rows.
func FromLedger(records []ledger.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		desc := strings.TrimSpace(r.Description)
		rows = append(rows, Row{
			AccountID:   r.AccountID,
			Time:        r.Time,
			Amount:      r.Amount,
			Description: desc,
			MCC:         r.MCC,
			Kind:        Classify(r.Amount, r.MCC, desc),
		})
	}
	return rows
}
