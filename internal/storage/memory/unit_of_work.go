package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// unitOfWork — транзакционный вид Store; вызывается только из WithinTx,
// когда мьютекс хранилища уже захвачен.
type unitOfWork struct {
	store *Store
}

func (u *unitOfWork) InsertOrder(_ context.Context, order domain.Order) error {
	k := key(order.TenantID, order.ID)
	if _, exists := u.store.orders[k]; exists {
		return domain.NewInternal(fmt.Errorf("order %s already exists", order.ID))
	}
	u.store.orders[k] = order
	return nil
}

func (u *unitOfWork) GetOrder(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	order, ok := u.store.orders[key(tenantID, orderID)]
	if !ok {
		return domain.Order{}, domain.NewNotFound("order", orderID)
	}
	return order, nil
}

// GetOrderForUpdate в памяти не отличается от обычного чтения: транзакции
// и так сериализованы мьютексом стора.
func (u *unitOfWork) GetOrderForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	return u.GetOrder(ctx, tenantID, orderID)
}

func (u *unitOfWork) UpdateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	k := key(order.TenantID, order.ID)
	current, ok := u.store.orders[k]
	if !ok {
		return domain.Order{}, domain.NewNotFound("order", order.ID)
	}
	// Инкремент версии на стороне хранилища, как version = version + 1 в SQL.
	order.Version = current.Version + 1
	u.store.orders[k] = order
	return order, nil
}

func (u *unitOfWork) ListLines(_ context.Context, tenantID, orderID string) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0)
	for _, line := range u.store.lines {
		if line.TenantID == tenantID && line.OrderID == orderID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].SortOrder != lines[j].SortOrder {
			return lines[i].SortOrder < lines[j].SortOrder
		}
		return lines[i].ID < lines[j].ID
	})
	return lines, nil
}

func (u *unitOfWork) InsertLine(_ context.Context, line domain.OrderLine) error {
	k := key(line.TenantID, line.ID)
	if _, exists := u.store.lines[k]; exists {
		return domain.NewInternal(fmt.Errorf("order line %s already exists", line.ID))
	}
	u.store.lines[k] = line
	return nil
}

func (u *unitOfWork) DeleteLine(_ context.Context, tenantID, orderID, lineID string) (bool, error) {
	k := key(tenantID, lineID)
	line, ok := u.store.lines[k]
	if !ok || line.OrderID != orderID {
		return false, nil
	}
	delete(u.store.lines, k)
	return true, nil
}

func (u *unitOfWork) InsertTaxLines(_ context.Context, taxLines []domain.OrderTaxLine) error {
	for _, taxLine := range taxLines {
		u.store.taxLines[key(taxLine.TenantID, taxLine.ID)] = taxLine
	}
	return nil
}

func (u *unitOfWork) DeleteTaxLinesForLine(_ context.Context, tenantID, lineID string) error {
	for k, taxLine := range u.store.taxLines {
		if taxLine.TenantID == tenantID && taxLine.LineID == lineID {
			delete(u.store.taxLines, k)
		}
	}
	return nil
}

func (u *unitOfWork) ListCharges(_ context.Context, tenantID, orderID string) ([]domain.OrderCharge, error) {
	charges := make([]domain.OrderCharge, 0)
	for _, charge := range u.store.charges {
		if charge.TenantID == tenantID && charge.OrderID == orderID {
			charges = append(charges, charge)
		}
	}
	sort.Slice(charges, func(i, j int) bool { return charges[i].ID < charges[j].ID })
	return charges, nil
}

func (u *unitOfWork) ListDiscounts(_ context.Context, tenantID, orderID string) ([]domain.OrderDiscount, error) {
	discounts := make([]domain.OrderDiscount, 0)
	for _, discount := range u.store.discounts {
		if discount.TenantID == tenantID && discount.OrderID == orderID {
			discounts = append(discounts, discount)
		}
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].ID < discounts[j].ID })
	return discounts, nil
}

func (u *unitOfWork) GetIdempotencyRecord(_ context.Context, tenantID, clientRequestID string) (domain.IdempotencyRecord, bool, error) {
	record, ok := u.store.idempotency[key(tenantID, clientRequestID)]
	return record, ok, nil
}

// SaveIdempotencyRecord повторяет контракт PostgreSQL-реализации: живую
// запись по тому же ключу перезаписать нельзя, только просроченную.
func (u *unitOfWork) SaveIdempotencyRecord(_ context.Context, record domain.IdempotencyRecord) error {
	k := key(record.TenantID, record.ClientRequestID)
	if existing, ok := u.store.idempotency[k]; ok && !existing.Expired(record.CreatedAt) {
		return domain.NewInvalidState("idempotency_record", record.ClientRequestID,
			"a concurrent request with the same client key already committed a result")
	}
	u.store.idempotency[k] = record
	return nil
}

func (u *unitOfWork) InsertOutboxEvent(_ context.Context, event domain.OutboxEvent) error {
	if _, exists := u.store.outbox[event.ID]; exists {
		return domain.NewInternal(fmt.Errorf("outbox event %s already exists", event.ID))
	}
	u.store.outbox[event.ID] = outboxRecord{event: event, status: outboxStatusPending}
	return nil
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)
