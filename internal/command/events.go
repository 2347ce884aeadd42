package command

import (
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Типы доменных событий, порождаемых движком. Ровно одно событие на успешную
// команду; повтор по ключу идемпотентности событий не порождает.
const (
	AggregateTypeOrder = "order"

	EventTypeOrderOpened      = "order.opened"
	EventTypeOrderLineAdded   = "order.line_added"
	EventTypeOrderLineRemoved = "order.line_removed"
	EventTypeOrderPlaced      = "order.placed"
	EventTypeOrderVoided      = "order.voided"
)

// orderEventPayload — полезная нагрузка события заказа.
// Поля позиции заполняются только для событий line_added/line_removed.
type orderEventPayload struct {
	OrderID       string `json:"order_id"`
	TenantID      string `json:"tenant_id"`
	LocationID    string `json:"location_id"`
	Status        string `json:"status"`
	Version       int64  `json:"version"`
	SubtotalMinor int64  `json:"subtotal_minor"`
	TaxMinor      int64  `json:"tax_minor"`
	TotalMinor    int64  `json:"total_minor"`
	BusinessDate  string `json:"business_date"`

	LineID         string `json:"line_id,omitempty"`
	ItemID         string `json:"item_id,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Qty            int32  `json:"qty,omitempty"`
	LineTotalMinor int64  `json:"line_total_minor,omitempty"`

	VoidReason string `json:"void_reason,omitempty"`
	VoidedBy   string `json:"voided_by,omitempty"`
}

func newOrderEvent(eventType string, order domain.Order, mutate func(*orderEventPayload)) (domain.OutboxEvent, error) {
	payload := orderEventPayload{
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		LocationID:    order.LocationID,
		Status:        string(order.Status),
		Version:       order.Version,
		SubtotalMinor: order.SubtotalMinor,
		TaxMinor:      order.TaxMinor,
		TotalMinor:    order.TotalMinor,
		BusinessDate:  order.BusinessDate,
	}
	if mutate != nil {
		mutate(&payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return domain.OutboxEvent{
		TenantID:      order.TenantID,
		AggregateType: AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}
