package nlq

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobudget/internal/ledger"
	"monobudget/internal/secrets"
	"monobudget/internal/userstore"
	"monobudget/pkg/clock"
)

func newExecutor(t *testing.T, nowTS int64) (*Executor, *userstore.Store, *ledger.Store) {
	t.Helper()
	clk := clock.NewFixedUnix(nowTS)

	codec, err := secrets.NewCodec("test-master-key")
	require.NoError(t, err)
	users, err := userstore.NewStore(t.TempDir(), codec, clk, zerolog.Nop())
	require.NoError(t, err)
	led, err := ledger.NewStore(t.TempDir(), clk, zerolog.Nop())
	require.NoError(t, err)
	mem := NewMemoryStore(t.TempDir(), zerolog.Nop())

	return NewExecutor(users, led, mem, clk, zerolog.Nop()), users, led
}

func connectUser(t *testing.T, users *userstore.Store, userID int64) {
	t.Helper()
	token := "mono-token"
	ids := []string{"acc-1"}
	_, err := users.Save(userID, userstore.Patch{
		MonoToken:          &token,
		SelectedAccountIDs: &ids,
	})
	require.NoError(t, err)
}

func lrec(id string, ts, amount int64, desc string, mcc int) ledger.Record {
	return ledger.Record{ID: id, Time: ts, AccountID: "acc-1", Amount: amount, Description: desc, MCC: mcc}
}

func TestHandleUnsupported(t *testing.T) {
	e, users, _ := newExecutor(t, testNow)
	connectUser(t, users, 1)

	assert.Equal(t, msgUnsupported, e.Handle(1, "привіт"))
}

func TestHandleRequiresConnection(t *testing.T) {
	e, _, _ := newExecutor(t, testNow)
	assert.Equal(t, msgNoToken, e.Handle(1, "скільки я витратив за тиждень"))
}

func TestHandleRequiresAccounts(t *testing.T) {
	e, users, _ := newExecutor(t, testNow)
	token := "mono-token"
	_, err := users.Save(1, userstore.Patch{MonoToken: &token})
	require.NoError(t, err)

	assert.Equal(t, msgNoAccounts, e.Handle(1, "скільки я витратив за тиждень"))
}

func TestHandleSpendSum(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, -12550, "McDonalds", 5814),
		lrec("2", testNow-2*clock.SecondsPerDay, -4450, "Silpo", 5411),
		// income never counts as spend
		lrec("3", testNow-clock.SecondsPerDay, 99900, "зарплата", 0),
	})
	require.NoError(t, err)

	got := e.Handle(1, "скільки я витратив за останні 7 днів")
	assert.Equal(t, "За останні 7 днів ти витратив 170.00 грн.", got)
}

func TestHandleSpendSumMerchantAlias(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, -12550, "McDonalds Kyiv", 5814),
		lrec("2", testNow-2*clock.SecondsPerDay, -4450, "Silpo", 5411),
	})
	require.NoError(t, err)

	// "мак" resolves to "mcdonalds" through the seeded alias table
	got := e.Handle(1, "скільки я витратив на мак за останні 7 днів")
	assert.Equal(t, "За останні 7 днів ти витратив 125.50 грн.", got)
}

func TestHandleTransferRecipientClarification(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, -50000, "Переказ: Оксана М.", 4829),
		lrec("2", testNow-2*clock.SecondsPerDay, -20000, "Переказ: Іван К.", 4829),
		lrec("3", testNow-3*clock.SecondsPerDay, -10000, "Переказ: Оксана М.", 4829),
	})
	require.NoError(t, err)

	// unmapped alias: the executor asks instead of answering
	ask := e.Handle(1, "скільки я переказав мамі за тиждень")
	assert.Contains(t, ask, "мамі")
	assert.Contains(t, ask, "1) Переказ: Оксана М.")

	// numeric follow-up picks an option, stores the alias and re-runs
	got := e.Handle(1, "1")
	assert.Equal(t, "За тиждень ти переказав 600.00 грн.", got)

	// the mapping is remembered: no clarification next time
	got = e.Handle(1, "скільки я переказав мамі за тиждень")
	assert.Equal(t, "За тиждень ти переказав 600.00 грн.", got)
}

func TestFollowUpValue(t *testing.T) {
	options := []string{"Переказ: Оксана М.", "Переказ: Іван К."}

	assert.Equal(t, "переказ: оксана м.", followUpValue("1", options))
	assert.Equal(t, "переказ: іван к.", followUpValue(" 2 ", options))
	assert.Equal(t, "оксана", followUpValue("Оксана", options))
	assert.Equal(t, "", followUpValue("   ", options))

	// out-of-range numbers are literal answers, not a dropped intent
	assert.Equal(t, "7", followUpValue("7", options))
	assert.Equal(t, "0", followUpValue("0", options))
}

func TestHandleFollowUpOutOfRangeNumberIsLiteral(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, -50000, "Переказ: Оксана М.", 4829),
		lrec("2", testNow-2*clock.SecondsPerDay, -20000, "Переказ: vodafone 7", 4829),
	})
	require.NoError(t, err)

	ask := e.Handle(1, "скільки я переказав мамі за тиждень")
	assert.Contains(t, ask, "мамі")

	// "7" is past the option list, so it matches descriptions literally
	got := e.Handle(1, "7")
	assert.Equal(t, "За тиждень ти переказав 200.00 грн.", got)
}

func TestHandleFollowUpCancel(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, -50000, "Переказ: Оксана М.", 4829),
	})
	require.NoError(t, err)

	ask := e.Handle(1, "скільки я переказав мамі за тиждень")
	assert.Contains(t, ask, "мамі")

	assert.Equal(t, msgCancelled, e.Handle(1, "скасувати"))

	// pending state is gone: the next text routes normally
	assert.Equal(t, msgUnsupported, e.Handle(1, "привіт"))
}

func TestHandleCompareToBaseline(t *testing.T) {
	now := int64(100*clock.SecondsPerDay + 10)
	e, users, led := newExecutor(t, now)
	connectUser(t, users, 1)

	var records []ledger.Record
	for d := 1; d <= 10; d++ {
		ts := int64(99-d)*clock.SecondsPerDay + 50
		records = append(records, lrec(string(rune('a'+d)), ts, -1000, "mcdonalds", 5814))
	}
	records = append(records, lrec("y", 99*clock.SecondsPerDay+100, -3000, "mcdonalds", 5814))
	_, err := led.AppendMany(1, "acc-1", records)
	require.NoError(t, err)

	got := e.Handle(1, "на скільки більше я вчора витратив на мак ніж зазвичай")
	assert.Equal(t, "Вчора: 30.00 грн. Зазвичай (медіана): 10.00 грн. Різниця: +20.00 грн.", got)
}

func TestHandleIncomeCount(t *testing.T) {
	e, users, led := newExecutor(t, testNow)
	connectUser(t, users, 1)

	_, err := led.AppendMany(1, "acc-1", []ledger.Record{
		lrec("1", testNow-clock.SecondsPerDay, 100000, "зарплата", 0),
		lrec("2", testNow-2*clock.SecondsPerDay, 5000, "кешбек", 0),
		lrec("3", testNow-3*clock.SecondsPerDay, -4000, "Silpo", 5411),
	})
	require.NoError(t, err)

	got := e.Handle(1, "скільки було поповнень за тиждень")
	assert.Equal(t, "За тиждень було 2 поповнень.", got)
}
