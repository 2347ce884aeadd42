package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// TxRunner исполняет unit of work в одной транзакции PostgreSQL.
// Уровень изоляции — READ COMMITTED: сериализацию конкурирующих команд
// к одному заказу обеспечивает строчная блокировка SELECT ... FOR UPDATE.
type TxRunner struct {
	db *sql.DB
}

var _ domain.TxRunner = (*TxRunner)(nil)

// NewTxRunner создаёт TxRunner поверх открытого Store.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{db: store.DB()}
}

// WithinTx начинает транзакцию, передаёт unit of work в fn и фиксирует
// транзакцию при nil-ошибке. Любая ошибка из fn откатывает всё целиком.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, &unitOfWork{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
