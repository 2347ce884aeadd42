package command

import (
	"context"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// VoidOrderInput — параметры аннулирования заказа.
type VoidOrderInput struct {
	OrderID string
	Reason  string
}

// VoidOrderResult — результат аннулирования.
type VoidOrderResult struct {
	Order domain.Order `json:"order"`
}

// VoidOrder переводит заказ в терминальный статус voided, фиксируя причину
// и аннулировавшего. Позиции не мутируются; дальнейшие мутации отсекает
// статусный фильтр загрузки агрегата. Повторный вызов без ключа
// идемпотентности — InvalidState; повтор с тем же ключом возвращает
// исходный результат без второго события.
func (e *Engine) VoidOrder(ctx context.Context, rc domain.RequestContext, in VoidOrderInput) (VoidOrderResult, error) {
	if err := rc.RequireTenant(); err != nil {
		return VoidOrderResult{}, err
	}
	if in.OrderID == "" {
		return VoidOrderResult{}, domain.NewValidationFailed("order_id is required")
	}
	if in.Reason == "" {
		return VoidOrderResult{}, domain.NewValidationFailed("void reason is required")
	}

	result, replayed, err := runCommand(ctx, e, rc, "VoidOrder", func(ctx context.Context, uow domain.UnitOfWork) (VoidOrderResult, []domain.OutboxEvent, error) {
		order, err := fetchForMutation(ctx, uow, rc.TenantID, in.OrderID, domain.OrderStatusOpen, domain.OrderStatusPlaced)
		if err != nil {
			return VoidOrderResult{}, nil, err
		}

		order.Status = domain.OrderStatusVoided
		order.VoidReason = in.Reason
		order.VoidedBy = rc.UserID
		order.UpdatedBy = rc.UserID
		order.UpdatedAt = e.clock.Now()

		updated, err := uow.UpdateOrder(ctx, order)
		if err != nil {
			return VoidOrderResult{}, nil, err
		}

		event, err := newOrderEvent(EventTypeOrderVoided, updated, func(p *orderEventPayload) {
			p.VoidReason = updated.VoidReason
			p.VoidedBy = updated.VoidedBy
		})
		if err != nil {
			return VoidOrderResult{}, nil, domain.NewInternal(err)
		}

		return VoidOrderResult{Order: updated}, []domain.OutboxEvent{event}, nil
	})
	if err != nil {
		return VoidOrderResult{}, err
	}

	if !replayed {
		e.submitAudit(rc, EventTypeOrderVoided, entityTypeOrder, result.Order.ID)
	}

	return result, nil
}
