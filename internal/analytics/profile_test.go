package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobudget/internal/ledger"
)

func TestBuildProfile(t *testing.T) {
	records := []ledger.Record{
		rec("1", "a", 100, -10000, "Сільпо", 5411),
		rec("2", "a", 200, -10000, "Сільпо", 5411),
		rec("3", "a", 300, -10000, "Uber", 4121),
		rec("4", "b", 400, -10000, "Uber", 4121),
		// income and transfers never count toward the profile
		rec("5", "a", 500, 250000, "зарплата", 0),
		rec("6", "a", 600, -50000, "Переказ", 4829),
	}

	p := BuildProfile(records)
	require.NotNil(t, p)

	assert.Equal(t, 4, p.SpendTxCount)
	assert.Equal(t, 400.0, p.TotalSpendUAH)
	assert.Equal(t, 100.0, p.AvgCheckUAH)

	require.Len(t, p.TopCategoriesLongTerm, 2)
	require.Len(t, p.TopMerchantsLongTerm, 2)
	// amounts tie at 200 UAH: labels break the tie ascending
	assert.Equal(t, "uber", p.TopMerchantsLongTerm[0].Label)
	assert.Equal(t, 200.0, p.TopMerchantsLongTerm[0].AmountUAH)
	assert.Equal(t, "сільпо", p.TopMerchantsLongTerm[1].Label)
}

func TestBuildProfileEmpty(t *testing.T) {
	assert.Nil(t, BuildProfile(nil))
}
