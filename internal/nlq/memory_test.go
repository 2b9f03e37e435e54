package nlq

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(t.TempDir(), zerolog.Nop())
}

func TestResolveMerchantSeededAlias(t *testing.T) {
	m := newMemory(t)
	assert.Equal(t, "mcdonalds", m.ResolveMerchant(1, "мак"))
}

func TestResolveMerchantWriteBack(t *testing.T) {
	m := newMemory(t)

	// prefix match against the seeded alias, then the raw key is exact
	assert.Equal(t, "mcdonalds", m.ResolveMerchant(1, "макдональдс"))
	assert.Equal(t, "mcdonalds", m.ResolveMerchant(1, "макдональдс"))
}

func TestResolveMerchantUnknownPassesThrough(t *testing.T) {
	m := newMemory(t)
	// unknown raw text is normalized and passed through
	assert.Equal(t, "нова кав ярня", m.ResolveMerchant(1, "Нова Кав'ярня"))
}

func TestSaveMerchantAlias(t *testing.T) {
	m := newMemory(t)
	require.NoError(t, m.SaveMerchantAlias(1, "АТБ", "atb market"))
	assert.Equal(t, "atb market", m.ResolveMerchant(1, "атб"))
}

func TestRecipientAliases(t *testing.T) {
	m := newMemory(t)

	_, ok := m.RecipientMatch(1, "мамі")
	assert.False(t, ok)

	require.NoError(t, m.SaveRecipientAlias(1, "мамі", "Оксана М."))
	v, ok := m.RecipientMatch(1, "мамі")
	require.True(t, ok)
	assert.Equal(t, "оксана м.", v)
}

func TestPendingIntentSingle(t *testing.T) {
	m := newMemory(t)

	_, _, ok := m.PopPending(1)
	assert.False(t, ok)

	first := Intent{Name: IntentTransferOutSum, RecipientAlias: "мамі"}
	second := Intent{Name: IntentTransferInSum, RecipientAlias: "тату"}
	require.NoError(t, m.SetPending(1, first, "recipient", []string{"a"}))
	// a new pending intent overwrites the previous one
	require.NoError(t, m.SetPending(1, second, "recipient", []string{"x", "y"}))

	got, options, ok := m.PopPending(1)
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, []string{"x", "y"}, options)

	_, _, ok = m.PopPending(1)
	assert.False(t, ok)
}

func TestMemoryIsolatedPerUser(t *testing.T) {
	m := newMemory(t)
	require.NoError(t, m.SaveRecipientAlias(1, "мамі", "оксана"))
	_, ok := m.RecipientMatch(2, "мамі")
	assert.False(t, ok)
}
