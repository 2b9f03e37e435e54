package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransfers(t *testing.T) {
	assert.Equal(t, KindTransferOut, Classify(-5000, 4829, "some card"))
	assert.Equal(t, KindTransferIn, Classify(5000, 4829, ""))
	assert.Equal(t, KindTransferOut, Classify(-100, 5411, "Переказ на картку"))
	assert.Equal(t, KindTransferIn, Classify(100, 0, "P2P payment"))
	assert.Equal(t, KindTransferOut, Classify(-100, 0, "card to card"))
}

func TestClassifySpendAndIncome(t *testing.T) {
	assert.Equal(t, KindSpend, Classify(-100, 5411, "АТБ"))
	assert.Equal(t, KindSpend, Classify(-100, 0, "coffee"))
	assert.Equal(t, KindIncome, Classify(100, 0, "зарахування"))
	assert.Equal(t, KindIncome, Classify(0, 0, ""))
}

func TestCategoryFromMCC(t *testing.T) {
	assert.Equal(t, "Транспорт", CategoryFromMCC(4111))
	assert.Equal(t, "Фінансові послуги", CategoryFromMCC(4829))
	// 5411 sits inside the travel range, which is checked first.
	assert.Equal(t, "Подорожі", CategoryFromMCC(5411))
	assert.Equal(t, CategoryCafes, CategoryFromMCC(5814))
	assert.Equal(t, "Аптеки/Здоров'я", CategoryFromMCC(5912))
	assert.Equal(t, "Проф. послуги", CategoryFromMCC(8931))
	assert.Equal(t, CategoryOther, CategoryFromMCC(9999))
	assert.Equal(t, "", CategoryFromMCC(0))
}
