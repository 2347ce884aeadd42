package command

import (
	"context"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// PlaceOrderInput — параметры размещения заказа.
type PlaceOrderInput struct {
	OrderID string
}

// PlaceOrderResult — результат размещения.
type PlaceOrderResult struct {
	Order domain.Order `json:"order"`
}

// PlaceOrder переводит открытый заказ в статус placed, фиксируя его состав.
// Пустой заказ разместить нельзя.
func (e *Engine) PlaceOrder(ctx context.Context, rc domain.RequestContext, in PlaceOrderInput) (PlaceOrderResult, error) {
	if err := rc.RequireTenant(); err != nil {
		return PlaceOrderResult{}, err
	}
	if in.OrderID == "" {
		return PlaceOrderResult{}, domain.NewValidationFailed("order_id is required")
	}

	result, replayed, err := runCommand(ctx, e, rc, "PlaceOrder", func(ctx context.Context, uow domain.UnitOfWork) (PlaceOrderResult, []domain.OutboxEvent, error) {
		order, err := fetchForMutation(ctx, uow, rc.TenantID, in.OrderID, domain.OrderStatusOpen)
		if err != nil {
			return PlaceOrderResult{}, nil, err
		}

		lines, err := uow.ListLines(ctx, rc.TenantID, order.ID)
		if err != nil {
			return PlaceOrderResult{}, nil, err
		}
		if len(lines) == 0 {
			return PlaceOrderResult{}, nil, domain.NewValidationFailed("order must contain at least one line")
		}

		order.Status = domain.OrderStatusPlaced
		order.UpdatedBy = rc.UserID
		order.UpdatedAt = e.clock.Now()

		updated, err := uow.UpdateOrder(ctx, order)
		if err != nil {
			return PlaceOrderResult{}, nil, err
		}

		event, err := newOrderEvent(EventTypeOrderPlaced, updated, nil)
		if err != nil {
			return PlaceOrderResult{}, nil, domain.NewInternal(err)
		}

		return PlaceOrderResult{Order: updated}, []domain.OutboxEvent{event}, nil
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if !replayed {
		e.submitAudit(rc, EventTypeOrderPlaced, entityTypeOrder, result.Order.ID)
	}

	return result, nil
}
