package nlq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteSpendSumWithDaysAndMerchant(t *testing.T) {
	in := Route("Скільки я за останні 15 днів витратив на Макдональдс?", testNow)

	assert.Equal(t, IntentSpendSum, in.Name)
	assert.Equal(t, 15, in.Days)
	assert.Contains(t, in.MerchantContains, "макдональдс")
}

func TestRouteTransferInCountYesterday(t *testing.T) {
	in := Route("Скільки вчора було вхідних переказів?", testNow)

	assert.Equal(t, IntentTransferInCount, in.Name)
	assert.Equal(t, 1, in.Days)
	assert.Equal(t, "вчора", in.PeriodLabel)
}

func TestRouteDaysClamp(t *testing.T) {
	in := Route("витрати за останні 99 днів", testNow)
	assert.Equal(t, 31, in.Days)

	in = Route("витрати за останні 0 днів", testNow)
	assert.Equal(t, 1, in.Days)
}

func TestRouteIncome(t *testing.T) {
	in := Route("скільки було поповнень за тиждень", testNow)
	assert.Equal(t, IntentIncomeCount, in.Name)

	in = Route("які поповнення за тиждень", testNow)
	assert.Equal(t, IntentIncomeSum, in.Name)
	assert.Equal(t, 7, in.Days)
}

func TestRouteTransferOutWithRecipient(t *testing.T) {
	in := Route("скільки я переказав мамі за місяць", testNow)

	assert.Equal(t, IntentTransferOutSum, in.Name)
	assert.Equal(t, "мамі", in.RecipientAlias)
	assert.Equal(t, 30, in.Days)
}

func TestRouteCompareToBaseline(t *testing.T) {
	in := Route("на скільки більше я вчора витратив на мак ніж зазвичай", testNow)

	assert.Equal(t, IntentCompareToBaseline, in.Name)
	assert.Equal(t, "мак", in.MerchantContains)
	assert.Equal(t, "вчора", in.PeriodLabel)
}

func TestRouteCategoryKeyword(t *testing.T) {
	in := Route("скільки я витратив на таксі за тиждень", testNow)
	assert.Equal(t, IntentSpendSum, in.Name)
	assert.Equal(t, "Транспорт", in.Category)
}

func TestRouteMerchantRejectsNumeric(t *testing.T) {
	in := Route("скільки я витратив на 20", testNow)
	assert.Equal(t, IntentSpendSum, in.Name)
	assert.Empty(t, in.MerchantContains)
}

func TestRouteUnsupported(t *testing.T) {
	assert.Equal(t, IntentUnsupported, Route("", testNow).Name)
	assert.Equal(t, IntentUnsupported, Route("привіт як справи", testNow).Name)
}
