package command

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/clock"
	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyGuard распознаёт повторные клиентские команды и возвращает
// кэшированный результат вместо повторного исполнения бизнес-логики.
// Запись создаётся только при успехе, в той же транзакции, что и мутация:
// откатившаяся попытка не оставляет ложного «дубликата».
type idempotencyGuard struct {
	clock clock.Clock
	ttl   time.Duration
}

func newIdempotencyGuard(clk clock.Clock, ttl time.Duration) idempotencyGuard {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return idempotencyGuard{clock: clk, ttl: ttl}
}

// Check возвращает кэшированный результат, если непросроченная запись по
// ключу существует. Пустой clientRequestID — явный отказ от дедупликации.
// Просроченные записи игнорируются (ленивая экспирация, без удаления).
func (g idempotencyGuard) Check(ctx context.Context, uow domain.UnitOfWork, tenantID, clientRequestID string) ([]byte, bool, error) {
	if clientRequestID == "" {
		return nil, false, nil
	}

	record, found, err := uow.GetIdempotencyRecord(ctx, tenantID, clientRequestID)
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency record: %w", err)
	}
	if !found || record.Expired(g.clock.Now()) {
		return nil, false, nil
	}

	return record.Result, true, nil
}

// Save сохраняет результат успешной команды под ключом идемпотентности.
// Должен вызываться внутри транзакции самой мутации.
func (g idempotencyGuard) Save(ctx context.Context, uow domain.UnitOfWork, tenantID, clientRequestID, commandName string, payload []byte) error {
	now := g.clock.Now()
	record := domain.IdempotencyRecord{
		TenantID:        tenantID,
		ClientRequestID: clientRequestID,
		CommandName:     commandName,
		Result:          payload,
		ExpiresAt:       now.Add(g.ttl),
		CreatedAt:       now,
	}
	if err := uow.SaveIdempotencyRecord(ctx, record); err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	return nil
}
