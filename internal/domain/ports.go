package domain

import (
	"context"
	"time"
)

// UnitOfWork — узкий типизированный интерфейс одной транзакции БД.
// Движку доступны только перечисленные операции над именованными таблицами;
// произвольных запросов и скрытых глобальных хэндлов нет.
type UnitOfWork interface {
	// InsertOrder сохраняет новый агрегат.
	InsertOrder(ctx context.Context, order Order) error
	// GetOrder читает агрегат без блокировки — путь запросов не встаёт в очередь
	// за мутациями. NotFound, если записи нет у арендатора.
	GetOrder(ctx context.Context, tenantID, orderID string) (Order, error)
	// GetOrderForUpdate читает агрегат под блокировкой строки (FOR UPDATE в PostgreSQL),
	// сериализуя конкурирующие команды к одному заказу. NotFound, если записи нет у арендатора.
	GetOrderForUpdate(ctx context.Context, tenantID, orderID string) (Order, error)
	// UpdateOrder записывает новые итоги/статус/аудит-поля и атомарно инкрементирует
	// версию (version = version + 1 на стороне хранилища, не read-modify-write).
	// Возвращает сохранённое состояние с новой версией.
	UpdateOrder(ctx context.Context, order Order) (Order, error)

	ListLines(ctx context.Context, tenantID, orderID string) ([]OrderLine, error)
	InsertLine(ctx context.Context, line OrderLine) error
	// DeleteLine удаляет позицию; вторым значением сообщает, была ли запись найдена.
	DeleteLine(ctx context.Context, tenantID, orderID, lineID string) (bool, error)

	InsertTaxLines(ctx context.Context, taxLines []OrderTaxLine) error
	DeleteTaxLinesForLine(ctx context.Context, tenantID, lineID string) error

	ListCharges(ctx context.Context, tenantID, orderID string) ([]OrderCharge, error)
	ListDiscounts(ctx context.Context, tenantID, orderID string) ([]OrderDiscount, error)

	// GetIdempotencyRecord возвращает запись по ключу; false — записи нет.
	// Проверка срока жизни остаётся на вызывающем коде (ленивая экспирация).
	GetIdempotencyRecord(ctx context.Context, tenantID, clientRequestID string) (IdempotencyRecord, bool, error)
	SaveIdempotencyRecord(ctx context.Context, record IdempotencyRecord) error

	// InsertOutboxEvent сохраняет доменное событие в той же транзакции, что и мутация.
	InsertOutboxEvent(ctx context.Context, event OutboxEvent) error
}

// TxRunner исполняет функцию внутри одной транзакции БД: ошибка из fn
// откатывает транзакцию целиком, nil — фиксирует её.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// CatalogReader — read-only доступ к каталогу товаров (внешний коллаборатор).
type CatalogReader interface {
	// GetItemForPOS возвращает снимок товара для продажи в локации.
	GetItemForPOS(ctx context.Context, tenantID, locationID, itemID string) (CatalogItem, error)
	// GetEffectivePrice возвращает действующую цену товара в минимальных единицах.
	GetEffectivePrice(ctx context.Context, tenantID, locationID, itemID string) (int64, error)
	// GetSubDepartmentForItem возвращает суб-департамент товара для учёта.
	GetSubDepartmentForItem(ctx context.Context, tenantID, itemID string) (string, error)
}

// AuditSink принимает аудит-записи по принципу best effort.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// OutboxPublisher публикует события из transactional outbox во внешний канал.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxEvent) error
}

// OutboxRelayRepository — relay-сторона outbox: выборка pending-событий
// и отметки о доставке. Движок этим интерфейсом не пользуется.
type OutboxRelayRepository interface {
	PullPending(limit int) ([]OutboxEvent, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyCleanupRepository удаляет просроченные idempotency-записи батчами.
type IdempotencyCleanupRepository interface {
	DeleteExpired(before time.Time, limit int) (int, error)
}
