package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/pricing"
)

// AddLineItemInput — параметры добавления позиции в заказ.
type AddLineItemInput struct {
	OrderID string
	ItemID  string
	Qty     int32
}

// AddLineItemResult — результат добавления позиции.
type AddLineItemResult struct {
	Order domain.Order     `json:"order"`
	Line  domain.OrderLine `json:"line"`
}

// AddLineItem добавляет позицию в открытый заказ.
//
// Каталожный снимок, налоговый расчёт и распределение цены пакета выполняются
// до транзакции: это read-only данные, и так минимизируется время удержания
// блокировки строки агрегата. Внутри транзакции: idempotency guard, загрузка
// заказа под блокировкой со статусным фильтром {open}, вставка позиции и
// налоговой разбивки, полный пересчёт итогов и атомарный инкремент версии.
func (e *Engine) AddLineItem(ctx context.Context, rc domain.RequestContext, in AddLineItemInput) (AddLineItemResult, error) {
	if err := rc.RequireLocation(); err != nil {
		return AddLineItemResult{}, err
	}
	if in.OrderID == "" {
		return AddLineItemResult{}, domain.NewValidationFailed("order_id is required")
	}
	if in.ItemID == "" {
		return AddLineItemResult{}, domain.NewValidationFailed("item_id is required")
	}
	if in.Qty <= 0 {
		return AddLineItemResult{}, domain.NewValidationFailed("qty must be greater than zero")
	}

	item, err := e.catalog.GetItemForPOS(ctx, rc.TenantID, rc.LocationID, in.ItemID)
	if err != nil {
		return AddLineItemResult{}, err
	}

	var componentsJSON []byte
	if item.IsPackage() {
		allocated, err := pricing.AllocatePackage(item.UnitPriceMinor, item.Components)
		if err != nil {
			return AddLineItemResult{}, domain.NewValidationFailed(fmt.Sprintf("package allocation: %v", err))
		}
		componentsJSON, err = json.Marshal(allocated)
		if err != nil {
			return AddLineItemResult{}, domain.NewInternal(fmt.Errorf("marshal package components: %w", err))
		}
	}

	lineSubtotal := int64(in.Qty) * item.UnitPriceMinor
	taxResult, err := pricing.CalculateTax(lineSubtotal, item.TaxMode, item.TaxRates)
	if err != nil {
		return AddLineItemResult{}, domain.NewValidationFailed(fmt.Sprintf("tax calculation: %v", err))
	}

	now := e.clock.Now()
	line := domain.OrderLine{
		ID:                uuid.NewString(),
		OrderID:           in.OrderID,
		TenantID:          rc.TenantID,
		ItemID:            item.ID,
		ItemName:          item.Name,
		SKU:               item.SKU,
		ItemType:          item.ItemType,
		Qty:               in.Qty,
		UnitPriceMinor:    item.UnitPriceMinor,
		LineSubtotalMinor: taxResult.SubtotalMinor,
		LineTaxMinor:      taxResult.TaxMinor,
		LineTotalMinor:    taxResult.TotalMinor,
		ComponentsJSON:    componentsJSON,
		CreatedAt:         now,
	}

	result, replayed, err := runCommand(ctx, e, rc, "AddLineItem", func(ctx context.Context, uow domain.UnitOfWork) (AddLineItemResult, []domain.OutboxEvent, error) {
		order, err := fetchForMutation(ctx, uow, rc.TenantID, in.OrderID, domain.OrderStatusOpen)
		if err != nil {
			return AddLineItemResult{}, nil, err
		}

		existing, err := uow.ListLines(ctx, rc.TenantID, order.ID)
		if err != nil {
			return AddLineItemResult{}, nil, err
		}
		line.SortOrder = nextSortOrder(existing)

		if err := uow.InsertLine(ctx, line); err != nil {
			return AddLineItemResult{}, nil, err
		}
		if err := uow.InsertTaxLines(ctx, buildTaxLines(rc.TenantID, order.ID, line.ID, taxResult, now)); err != nil {
			return AddLineItemResult{}, nil, err
		}

		updated, err := recalculateAndSave(ctx, uow, order, append(existing, line), rc.UserID, now)
		if err != nil {
			return AddLineItemResult{}, nil, err
		}

		event, err := newOrderEvent(EventTypeOrderLineAdded, updated, func(p *orderEventPayload) {
			p.LineID = line.ID
			p.ItemID = line.ItemID
			p.SKU = line.SKU
			p.Qty = line.Qty
			p.LineTotalMinor = line.LineTotalMinor
		})
		if err != nil {
			return AddLineItemResult{}, nil, domain.NewInternal(err)
		}

		return AddLineItemResult{Order: updated, Line: line}, []domain.OutboxEvent{event}, nil
	})
	if err != nil {
		return AddLineItemResult{}, err
	}

	if !replayed {
		e.submitAudit(rc, EventTypeOrderLineAdded, entityTypeOrder, result.Order.ID)
	}

	return result, nil
}
