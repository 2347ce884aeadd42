package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/pricing"
)

// nextSortOrder возвращает порядковый номер для новой позиции.
func nextSortOrder(lines []domain.OrderLine) int32 {
	var max int32
	for _, line := range lines {
		if line.SortOrder > max {
			max = line.SortOrder
		}
	}
	return max + 1
}

// buildTaxLines превращает налоговую разбивку позиции в строки для хранилища.
func buildTaxLines(tenantID, orderID, lineID string, taxResult pricing.TaxResult, now time.Time) []domain.OrderTaxLine {
	taxLines := make([]domain.OrderTaxLine, 0, len(taxResult.Breakdown))
	for _, line := range taxResult.Breakdown {
		taxLines = append(taxLines, domain.OrderTaxLine{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			LineID:      lineID,
			TenantID:    tenantID,
			TaxName:     line.Name,
			RateBps:     line.RateBps,
			AmountMinor: line.AmountMinor,
			CreatedAt:   now,
		})
	}
	return taxLines
}

// recalculateAndSave полностью пересчитывает итоги заказа из переданных позиций
// и актуальных сборов/скидок, затем сохраняет агрегат с атомарным инкрементом
// версии. Пересчёт происходит в той же транзакции, что и мутация дочерних
// строк, поэтому сохранённые итоги всегда согласованы с детьми.
func recalculateAndSave(
	ctx context.Context,
	uow domain.UnitOfWork,
	order domain.Order,
	lines []domain.OrderLine,
	updatedBy string,
	now time.Time,
) (domain.Order, error) {
	charges, err := uow.ListCharges(ctx, order.TenantID, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	discounts, err := uow.ListDiscounts(ctx, order.TenantID, order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	totals := domain.CalculateTotals(lines, charges, discounts)
	order.SubtotalMinor = totals.SubtotalMinor
	order.TaxMinor = totals.TaxMinor
	order.TotalMinor = totals.TotalMinor
	order.UpdatedBy = updatedBy
	order.UpdatedAt = now

	return uow.UpdateOrder(ctx, order)
}
