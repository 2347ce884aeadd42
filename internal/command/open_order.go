package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const businessDateLayout = "2006-01-02"

// OpenOrderInput — параметры открытия нового заказа.
type OpenOrderInput struct {
	// BusinessDate переопределяет бизнес-дату; пустое значение — текущая дата.
	BusinessDate string
}

// OpenOrderResult — результат открытия заказа.
type OpenOrderResult struct {
	Order domain.Order `json:"order"`
}

// OpenOrder создаёт пустой открытый агрегат, с которым дальше работают
// команды мутации. Версия нового заказа начинается с 1.
func (e *Engine) OpenOrder(ctx context.Context, rc domain.RequestContext, in OpenOrderInput) (OpenOrderResult, error) {
	if err := rc.RequireLocation(); err != nil {
		return OpenOrderResult{}, err
	}

	now := e.clock.Now()
	businessDate := in.BusinessDate
	if businessDate == "" {
		businessDate = now.Format(businessDateLayout)
	}

	order := domain.Order{
		ID:           uuid.NewString(),
		TenantID:     rc.TenantID,
		LocationID:   rc.LocationID,
		Status:       domain.OrderStatusOpen,
		Version:      1,
		BusinessDate: businessDate,
		UpdatedBy:    rc.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, replayed, err := runCommand(ctx, e, rc, "OpenOrder", func(ctx context.Context, uow domain.UnitOfWork) (OpenOrderResult, []domain.OutboxEvent, error) {
		if err := uow.InsertOrder(ctx, order); err != nil {
			return OpenOrderResult{}, nil, err
		}

		event, err := newOrderEvent(EventTypeOrderOpened, order, nil)
		if err != nil {
			return OpenOrderResult{}, nil, domain.NewInternal(err)
		}

		return OpenOrderResult{Order: order}, []domain.OutboxEvent{event}, nil
	})
	if err != nil {
		return OpenOrderResult{}, err
	}

	if !replayed {
		e.submitAudit(rc, EventTypeOrderOpened, entityTypeOrder, result.Order.ID)
	}

	return result, nil
}
