package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobudget/internal/ledger"
	"monobudget/pkg/clock"
)

func anomalyByLabel(items []Anomaly, label string) *Anomaly {
	for i := range items {
		if items[i].Label == label {
			return &items[i]
		}
	}
	return nil
}

func TestDetectAnomaliesSpikeAndFirstTime(t *testing.T) {
	now := int64(100 * clock.SecondsPerDay)

	var records []ledger.Record
	// ten prior days of 100 UAH at "mcd"
	for d := 1; d <= 10; d++ {
		ts := int64(99-d)*clock.SecondsPerDay + 10
		records = append(records, rec(fmt.Sprintf("h%d", d), "a", ts, -10000, "mcd", 5814))
	}
	// last day: mcd triples, plus a merchant never seen before
	records = append(records, rec("s", "a", 99*clock.SecondsPerDay+10, -30000, "mcd", 5814))
	records = append(records, rec("f", "a", 99*clock.SecondsPerDay+20, -50000, "new_merchant", 5814))

	got := DetectAnomalies(FromLedger(records), now, AnomalyOptions{LookbackDays: 28})

	mcd := anomalyByLabel(got, "mcd")
	require.NotNil(t, mcd)
	assert.Equal(t, "spike_vs_median", mcd.Reason)
	assert.Equal(t, int64(30000), mcd.LastDayCents)
	assert.Equal(t, int64(10000), mcd.BaselineMedianCents)

	first := anomalyByLabel(got, "new_merchant")
	require.NotNil(t, first)
	assert.Equal(t, "first_time_large", first.Reason)
	assert.Equal(t, int64(50000), first.LastDayCents)

	// both merchants share an mcc, so the category axis spikes too
	cat := anomalyByLabel(got, categoryLabelPrefix+CategoryCafes)
	require.NotNil(t, cat)
	assert.Equal(t, "spike_vs_median", cat.Reason)

	// ranked by distance above baseline: category 700, first-time 500, mcd 200
	require.Len(t, got, 3)
	assert.Equal(t, categoryLabelPrefix+CategoryCafes, got[0].Label)
	assert.Equal(t, "new_merchant", got[1].Label)
	assert.Equal(t, "mcd", got[2].Label)
}

func TestDetectAnomaliesSpikeThreshold(t *testing.T) {
	now := int64(100 * clock.SecondsPerDay)

	base := func(lastCents int64) []Row {
		var records []ledger.Record
		for d := 1; d <= 10; d++ {
			ts := int64(99-d)*clock.SecondsPerDay + 10
			records = append(records, rec(fmt.Sprintf("h%d", d), "a", ts, -1000, "shop", 0))
		}
		records = append(records, rec("y", "a", 99*clock.SecondsPerDay+10, -lastCents, "shop", 0))
		return FromLedger(records)
	}

	opts := AnomalyOptions{LookbackDays: 28, SpikeMult: 2.0, MinThresholdCents: 2000}

	got := DetectAnomalies(base(6000), now, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "shop", got[0].Label)
	assert.Equal(t, "spike_vs_median", got[0].Reason)

	assert.Empty(t, DetectAnomalies(base(1800), now, opts))
}

func TestDetectAnomaliesFirstTimeBelowThreshold(t *testing.T) {
	now := int64(100 * clock.SecondsPerDay)

	records := []ledger.Record{
		rec("1", "a", 99*clock.SecondsPerDay+10, -1500, "tiny new place", 0),
	}

	assert.Empty(t, DetectAnomalies(FromLedger(records), now, AnomalyOptions{}))
}

func TestDetectAnomaliesNeedsBaselineDays(t *testing.T) {
	now := int64(100 * clock.SecondsPerDay)

	// only two baseline days: no spike flag no matter how large the jump
	records := []ledger.Record{
		rec("1", "a", 97*clock.SecondsPerDay+10, -1000, "shop", 0),
		rec("2", "a", 96*clock.SecondsPerDay+10, -1000, "shop", 0),
		rec("3", "a", 99*clock.SecondsPerDay+10, -500000, "shop", 0),
	}

	assert.Empty(t, DetectAnomalies(FromLedger(records), now, AnomalyOptions{}))
}
