// Пакет pricing содержит чистые расчётные функции: налоги и распределение
// цены пакета. Никакого I/O, только детерминированная целочисленная арифметика
// в минимальных денежных единицах.
package pricing

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const bpsDenominator = 10000

var (
	// ErrNegativeSubtotal — отрицательная база для расчёта налога.
	ErrNegativeSubtotal = errors.New("line subtotal must be non-negative")
	// ErrInvalidTaxRate — ставка вне допустимого диапазона.
	ErrInvalidTaxRate = errors.New("tax rate must be within [0, 10000) bps")
	// ErrUnknownTaxMode — неподдерживаемый режим расчёта.
	ErrUnknownTaxMode = errors.New("unknown tax calculation mode")
)

// TaxLine — налог по одной ставке в составе разбивки.
type TaxLine struct {
	Name        string
	RateBps     int64
	AmountMinor int64
}

// TaxResult — результат налогового расчёта для одной позиции.
// Инвариант: TaxMinor == сумма Breakdown[i].AmountMinor, TotalMinor == SubtotalMinor + TaxMinor.
type TaxResult struct {
	SubtotalMinor int64
	TaxMinor      int64
	TotalMinor    int64
	Breakdown     []TaxLine
}

// CalculateTax считает налог позиции по набору ставок.
//
// В режиме exclusive налог добавляется поверх базы, каждая ставка округляется
// независимо (округление половины вверх). В режиме inclusive налог выделяется
// из цены: сначала вычисляется нетто по суммарной ставке, затем разница
// распределяется по ставкам методом наибольших остатков, чтобы разбивка
// сходилась с итогом точно до минимальной единицы.
func CalculateTax(lineSubtotalMinor int64, mode domain.TaxMode, rates []domain.TaxRate) (TaxResult, error) {
	if lineSubtotalMinor < 0 {
		return TaxResult{}, ErrNegativeSubtotal
	}
	for _, rate := range rates {
		if rate.RateBps < 0 || rate.RateBps >= bpsDenominator {
			return TaxResult{}, fmt.Errorf("%w: %s=%d", ErrInvalidTaxRate, rate.Name, rate.RateBps)
		}
	}

	if len(rates) == 0 {
		return TaxResult{
			SubtotalMinor: lineSubtotalMinor,
			TaxMinor:      0,
			TotalMinor:    lineSubtotalMinor,
			Breakdown:     []TaxLine{},
		}, nil
	}

	switch mode {
	case domain.TaxModeExclusive:
		return calculateExclusive(lineSubtotalMinor, rates), nil
	case domain.TaxModeInclusive:
		return calculateInclusive(lineSubtotalMinor, rates), nil
	default:
		return TaxResult{}, fmt.Errorf("%w: %q", ErrUnknownTaxMode, mode)
	}
}

func calculateExclusive(subtotal int64, rates []domain.TaxRate) TaxResult {
	breakdown := make([]TaxLine, 0, len(rates))
	var taxTotal int64
	for _, rate := range rates {
		amount := roundHalfUp(subtotal*rate.RateBps, bpsDenominator)
		breakdown = append(breakdown, TaxLine{
			Name:        rate.Name,
			RateBps:     rate.RateBps,
			AmountMinor: amount,
		})
		taxTotal += amount
	}

	return TaxResult{
		SubtotalMinor: subtotal,
		TaxMinor:      taxTotal,
		TotalMinor:    subtotal + taxTotal,
		Breakdown:     breakdown,
	}
}

func calculateInclusive(gross int64, rates []domain.TaxRate) TaxResult {
	var totalRateBps int64
	for _, rate := range rates {
		totalRateBps += rate.RateBps
	}
	// Все ставки нулевые: налога нет, нетто равно брутто.
	if totalRateBps == 0 {
		return TaxResult{
			SubtotalMinor: gross,
			TaxMinor:      0,
			TotalMinor:    gross,
			Breakdown:     emptyBreakdown(rates),
		}
	}

	net := roundHalfUp(gross*bpsDenominator, bpsDenominator+totalRateBps)
	taxTotal := gross - net

	// Пропорциональное распределение с коррекцией наибольших остатков:
	// base_i = floor(taxTotal * r_i / Σr), недостающие единицы получают
	// ставки с наибольшим остатком, при равенстве — более ранние.
	breakdown := make([]TaxLine, len(rates))
	remainders := make([]int64, len(rates))
	var assigned int64
	for i, rate := range rates {
		numerator := taxTotal * rate.RateBps
		base := numerator / totalRateBps
		remainders[i] = numerator % totalRateBps
		breakdown[i] = TaxLine{
			Name:        rate.Name,
			RateBps:     rate.RateBps,
			AmountMinor: base,
		}
		assigned += base
	}
	for leftover := taxTotal - assigned; leftover > 0; leftover-- {
		best := 0
		for i := 1; i < len(remainders); i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		breakdown[best].AmountMinor++
		remainders[best] = -1
	}

	return TaxResult{
		SubtotalMinor: net,
		TaxMinor:      taxTotal,
		TotalMinor:    gross,
		Breakdown:     breakdown,
	}
}

// roundHalfUp делит numerator на denominator с округлением половины вверх.
// Оба аргумента неотрицательны.
func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}

func emptyBreakdown(rates []domain.TaxRate) []TaxLine {
	breakdown := make([]TaxLine, 0, len(rates))
	for _, rate := range rates {
		breakdown = append(breakdown, TaxLine{Name: rate.Name, RateBps: rate.RateBps})
	}
	return breakdown
}
