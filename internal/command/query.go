package command

import (
	"context"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// OrderView — состояние заказа вместе с позициями для чтения.
type OrderView struct {
	Order domain.Order       `json:"order"`
	Lines []domain.OrderLine `json:"lines"`
}

// GetOrder возвращает текущее состояние заказа. Чтение выполняется в короткой
// транзакции без блокировки строки: запрос не встаёт в очередь за мутациями,
// а агрегат и позиции остаются согласованным снимком.
func (e *Engine) GetOrder(ctx context.Context, rc domain.RequestContext, orderID string) (OrderView, error) {
	if err := rc.RequireTenant(); err != nil {
		return OrderView{}, err
	}
	if orderID == "" {
		return OrderView{}, domain.NewValidationFailed("order_id is required")
	}

	var view OrderView
	err := e.executor.readOnly(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, err := uow.GetOrder(ctx, rc.TenantID, orderID)
		if err != nil {
			return err
		}
		lines, err := uow.ListLines(ctx, rc.TenantID, orderID)
		if err != nil {
			return err
		}
		view = OrderView{Order: order, Lines: lines}
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	return view, nil
}
