// Пакет command реализует движок мутаций заказа: транзакционный executor
// с transactional outbox, idempotency guard, блокирующую загрузку агрегата
// и обработчики команд. Всё состояние меняется только внутри одной
// транзакции БД; событие о мутации либо фиксируется вместе с ней, либо
// не появляется вовсе.
package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/clock"
	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Executor исполняет unit-of-work внутри одной транзакции БД и атомарно
// дописывает возвращённые доменные события в outbox. Если unit-of-work
// вернул ошибку, транзакция откатывается: ни изменений состояния,
// ни событий снаружи не видно.
type Executor struct {
	runner domain.TxRunner
	clock  clock.Clock
	logger *log.Entry
}

// NewExecutor создаёт executor поверх транзакционного раннера хранилища.
func NewExecutor(runner domain.TxRunner, clk clock.Clock, logger *log.Entry) *Executor {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = log.WithField("component", "command-executor")
	}
	return &Executor{
		runner: runner,
		clock:  clk,
		logger: logger,
	}
}

// execute запускает fn в транзакции и сохраняет события в outbox той же
// транзакцией. Результат возвращается только после успешного commit.
func execute[T any](
	ctx context.Context,
	e *Executor,
	fn func(ctx context.Context, uow domain.UnitOfWork) (T, []domain.OutboxEvent, error),
) (T, error) {
	var result T

	err := e.runner.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		value, events, err := fn(ctx, uow)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		for _, event := range events {
			if event.ID == "" {
				event.ID = uuid.NewString()
			}
			if event.CreatedAt.IsZero() {
				event.CreatedAt = now
			}
			if err := uow.InsertOutboxEvent(ctx, event); err != nil {
				return fmt.Errorf("insert outbox event %s: %w", event.EventType, err)
			}
		}

		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// readOnly исполняет fn в транзакции без записи событий (для запросов).
func (e *Executor) readOnly(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return e.runner.WithinTx(ctx, fn)
}
