package domain

// Totals — итоговые суммы заказа в минимальных денежных единицах.
type Totals struct {
	SubtotalMinor int64
	TaxMinor      int64
	TotalMinor    int64
}

// CalculateTotals полностью пересчитывает итоги заказа из текущих дочерних записей.
// Всегда полный пересчёт, а не инкрементальная дельта: так исключается дрейф
// от накопленных округлений и пропущенных обновлений. Только целочисленная
// арифметика в минимальных единицах валюты.
func CalculateTotals(lines []OrderLine, charges []OrderCharge, discounts []OrderDiscount) Totals {
	var totals Totals

	for _, line := range lines {
		totals.SubtotalMinor += line.LineSubtotalMinor
		totals.TaxMinor += line.LineTaxMinor
		totals.TotalMinor += line.LineTotalMinor
	}

	for _, charge := range charges {
		totals.SubtotalMinor += charge.AmountMinor
		totals.TaxMinor += charge.TaxAmountMinor
		totals.TotalMinor += charge.AmountMinor + charge.TaxAmountMinor
	}

	for _, discount := range discounts {
		totals.SubtotalMinor -= discount.AmountMinor
		totals.TotalMinor -= discount.AmountMinor
	}

	return totals
}
