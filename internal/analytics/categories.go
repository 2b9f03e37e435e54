package analytics

// CategoryOther is the label for merchant codes outside every known range.
const CategoryOther = "Інше"

// CategoryCafes is referenced by the what-if cafes bucket.
const CategoryCafes = "Кафе/Ресторани"

type mccRange struct {
	lo    int // inclusive
	hi    int // exclusive
	label string
}

// Categories are intentionally broad and stable so period-over-period
// comparison stays meaningful.
var mccCategoryRanges = []mccRange{
	{4000, 4800, "Транспорт"},
	{4800, 4900, "Фінансові послуги"},
	{5000, 5599, "Подорожі"},
	{5600, 5699, "Одяг/Взуття"},
	{5700, 5736, "Техніка/Електроніка"},
	{5737, 5800, "Розваги/Діджитал"},
	{5811, 5830, CategoryCafes},
	{5200, 5312, "Маркет/Побут"},
	{5313, 5399, "Маркет/Побут"},
	{5900, 5999, "Аптеки/Здоров'я"},
	{6000, 7300, "Послуги"},
	{7800, 8000, "Розваги/Ігри"},
	{8000, 9000, "Проф. послуги"},
}

// CategoryFromMCC maps a merchant code to its stable label. An absent code
// (0) returns "", distinguishable from CategoryOther so callers can keep a
// separate "uncategorized" bucket.
func CategoryFromMCC(mcc int) string {
	if mcc == 0 {
		return ""
	}
	for _, r := range mccCategoryRanges {
		if mcc >= r.lo && mcc < r.hi {
			return r.label
		}
	}
	return CategoryOther
}
