package command

import (
	"context"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const entityTypeOrderLine = "order_line"

// RemoveLineItemInput — параметры удаления позиции из заказа.
type RemoveLineItemInput struct {
	OrderID string
	LineID  string
}

// RemoveLineItemResult — результат удаления позиции.
type RemoveLineItemResult struct {
	Order         domain.Order `json:"order"`
	RemovedLineID string       `json:"removed_line_id"`
}

// RemoveLineItem удаляет позицию открытого заказа вместе с её налоговой
// разбивкой и полностью пересчитывает итоги из оставшихся детей.
// Изменение количества выражается как удаление плюс повторное добавление.
func (e *Engine) RemoveLineItem(ctx context.Context, rc domain.RequestContext, in RemoveLineItemInput) (RemoveLineItemResult, error) {
	if err := rc.RequireTenant(); err != nil {
		return RemoveLineItemResult{}, err
	}
	if in.OrderID == "" {
		return RemoveLineItemResult{}, domain.NewValidationFailed("order_id is required")
	}
	if in.LineID == "" {
		return RemoveLineItemResult{}, domain.NewValidationFailed("line_id is required")
	}

	result, replayed, err := runCommand(ctx, e, rc, "RemoveLineItem", func(ctx context.Context, uow domain.UnitOfWork) (RemoveLineItemResult, []domain.OutboxEvent, error) {
		order, err := fetchForMutation(ctx, uow, rc.TenantID, in.OrderID, domain.OrderStatusOpen)
		if err != nil {
			return RemoveLineItemResult{}, nil, err
		}

		lines, err := uow.ListLines(ctx, rc.TenantID, order.ID)
		if err != nil {
			return RemoveLineItemResult{}, nil, err
		}

		var removed *domain.OrderLine
		remaining := make([]domain.OrderLine, 0, len(lines))
		for _, line := range lines {
			if line.ID == in.LineID {
				removedCopy := line
				removed = &removedCopy
				continue
			}
			remaining = append(remaining, line)
		}
		if removed == nil {
			return RemoveLineItemResult{}, nil, domain.NewNotFound(entityTypeOrderLine, in.LineID)
		}

		deleted, err := uow.DeleteLine(ctx, rc.TenantID, order.ID, in.LineID)
		if err != nil {
			return RemoveLineItemResult{}, nil, err
		}
		if !deleted {
			return RemoveLineItemResult{}, nil, domain.NewNotFound(entityTypeOrderLine, in.LineID)
		}
		if err := uow.DeleteTaxLinesForLine(ctx, rc.TenantID, in.LineID); err != nil {
			return RemoveLineItemResult{}, nil, err
		}

		updated, err := recalculateAndSave(ctx, uow, order, remaining, rc.UserID, e.clock.Now())
		if err != nil {
			return RemoveLineItemResult{}, nil, err
		}

		event, err := newOrderEvent(EventTypeOrderLineRemoved, updated, func(p *orderEventPayload) {
			p.LineID = removed.ID
			p.ItemID = removed.ItemID
			p.SKU = removed.SKU
			p.Qty = removed.Qty
			p.LineTotalMinor = removed.LineTotalMinor
		})
		if err != nil {
			return RemoveLineItemResult{}, nil, domain.NewInternal(err)
		}

		return RemoveLineItemResult{Order: updated, RemovedLineID: removed.ID}, []domain.OutboxEvent{event}, nil
	})
	if err != nil {
		return RemoveLineItemResult{}, err
	}

	if !replayed {
		e.submitAudit(rc, EventTypeOrderLineRemoved, entityTypeOrder, result.Order.ID)
	}

	return result, nil
}
