package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobudget/internal/ledger"
)

func rec(id, account string, ts, amount int64, desc string, mcc int) ledger.Record {
	return ledger.Record{
		ID:          id,
		Time:        ts,
		AccountID:   account,
		Amount:      amount,
		Description: desc,
		MCC:         mcc,
	}
}

func TestComputeFactsTotals(t *testing.T) {
	rows := FromLedger([]ledger.Record{
		rec("1", "a", 100, -10000, "Сільпо", 5411),
		rec("2", "a", 200, -5000, "Uber", 4121),
		rec("3", "a", 300, 250000, "зарплата", 0),
		rec("4", "b", 400, -30000, "Переказ на картку", 4829),
		rec("5", "b", 500, 7000, "transfer", 4829),
	})

	f := ComputeFacts(rows)

	assert.Equal(t, 5, f.TransactionsCount)
	assert.Equal(t, 150.0, f.Totals.SpendTotalUAH)
	assert.Equal(t, 150.0, f.Totals.RealSpendTotalUAH)
	assert.Equal(t, 2500.0, f.Totals.IncomeTotalUAH)
	assert.Equal(t, 300.0, f.Totals.TransferOutTotalUAH)
	assert.Equal(t, 70.0, f.Totals.TransferInTotalUAH)

	require.Contains(t, f.ByAccount, "a")
	require.Contains(t, f.ByAccount, "b")
	assert.Equal(t, 3, f.ByAccount["a"].Count)
	assert.Equal(t, 150.0, f.ByAccount["a"].SpendUAH)
	assert.Equal(t, 300.0, f.ByAccount["b"].TransferOutUAH)
}

func TestComputeFactsCategoriesAndShares(t *testing.T) {
	rows := FromLedger([]ledger.Record{
		rec("1", "a", 100, -15000, "Сільпо", 5411),
		rec("2", "a", 200, -5000, "Uber", 4121),
		rec("3", "a", 300, -5000, "невідомо", 0),
	})

	f := ComputeFacts(rows)

	assert.Equal(t, 150.0, f.CategoriesRealSpend["Подорожі"])
	assert.Equal(t, 50.0, f.CategoriesRealSpend["Транспорт"])
	assert.Equal(t, 50.0, f.UncategorizedSpendUAH)

	assert.Equal(t, 60.0, f.CategorySharesRealSpend["Подорожі"])
	assert.Equal(t, 20.0, f.CategorySharesRealSpend["Транспорт"])

	require.NotEmpty(t, f.TopMerchantsRealSpend)
	assert.Equal(t, "Сільпо", f.TopMerchantsRealSpend[0].Label)
	assert.Equal(t, 60.0, f.TopMerchantsSharesRealSpend["Сільпо"])
}

func TestComputeFactsTopNTieBreak(t *testing.T) {
	rows := FromLedger([]ledger.Record{
		rec("1", "a", 100, -5000, "bbb", 0),
		rec("2", "a", 200, -5000, "aaa", 0),
		rec("3", "a", 300, -9000, "ccc", 0),
	})

	f := ComputeFacts(rows)

	require.Len(t, f.TopMerchantsRealSpend, 3)
	assert.Equal(t, "ccc", f.TopMerchantsRealSpend[0].Label)
	assert.Equal(t, "aaa", f.TopMerchantsRealSpend[1].Label)
	assert.Equal(t, "bbb", f.TopMerchantsRealSpend[2].Label)
}

func TestComputeFactsPure(t *testing.T) {
	records := []ledger.Record{
		rec("1", "a", 100, -10000, "Сільпо", 5411),
		rec("2", "b", 200, -5000, "Uber", 4121),
		rec("3", "a", 300, 250000, "зарплата", 0),
	}

	first := ComputeFacts(FromLedger(records))
	second := ComputeFacts(FromLedger(records))
	assert.Equal(t, first, second)
}

func TestComputeFactsEmpty(t *testing.T) {
	f := ComputeFacts(nil)
	assert.Equal(t, 0, f.TransactionsCount)
	assert.Equal(t, 0.0, f.Totals.RealSpendTotalUAH)
	assert.Empty(t, f.TopMerchantsRealSpend)
	assert.Empty(t, f.ByAccount)
}
