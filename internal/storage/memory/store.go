// Пакет memory содержит in-memory реализацию хранилища для локальной
// разработки и тестов. Транзакционность моделируется снимком состояния:
// ошибка unit-of-work восстанавливает снимок, имитируя rollback; mutex
// раннера сериализует транзакции так же, как блокировка строки в PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxRecord struct {
	event    domain.OutboxEvent
	status   string
	attempts int
}

// Store — in-memory состояние всех таблиц движка.
type Store struct {
	mu          sync.Mutex
	orders      map[string]domain.Order
	lines       map[string]domain.OrderLine
	taxLines    map[string]domain.OrderTaxLine
	charges     map[string]domain.OrderCharge
	discounts   map[string]domain.OrderDiscount
	idempotency map[string]domain.IdempotencyRecord
	outbox      map[string]outboxRecord
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		orders:      make(map[string]domain.Order),
		lines:       make(map[string]domain.OrderLine),
		taxLines:    make(map[string]domain.OrderTaxLine),
		charges:     make(map[string]domain.OrderCharge),
		discounts:   make(map[string]domain.OrderDiscount),
		idempotency: make(map[string]domain.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

type snapshot struct {
	orders      map[string]domain.Order
	lines       map[string]domain.OrderLine
	taxLines    map[string]domain.OrderTaxLine
	charges     map[string]domain.OrderCharge
	discounts   map[string]domain.OrderDiscount
	idempotency map[string]domain.IdempotencyRecord
	outbox      map[string]outboxRecord
}

// WithinTx исполняет fn под общим мьютексом хранилища. Ошибка из fn
// восстанавливает состояние на момент начала — изменений и событий не остаётся.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	if err := fn(ctx, &unitOfWork{store: s}); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		orders:      copyMap(s.orders),
		lines:       copyMap(s.lines),
		taxLines:    copyMap(s.taxLines),
		charges:     copyMap(s.charges),
		discounts:   copyMap(s.discounts),
		idempotency: copyMap(s.idempotency),
		outbox:      copyMap(s.outbox),
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.orders = snap.orders
	s.lines = snap.lines
	s.taxLines = snap.taxLines
	s.charges = snap.charges
	s.discounts = snap.discounts
	s.idempotency = snap.idempotency
	s.outbox = snap.outbox
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}

// SeedCharge добавляет сервисный сбор (для настройки тестовых сценариев).
func (s *Store) SeedCharge(charge domain.OrderCharge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	s.charges[key(charge.TenantID, charge.ID)] = charge
}

// SeedDiscount добавляет скидку (для настройки тестовых сценариев).
func (s *Store) SeedDiscount(discount domain.OrderDiscount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	s.discounts[key(discount.TenantID, discount.ID)] = discount
}

// GetOrder возвращает текущее состояние заказа вне транзакции (для проверок в тестах).
func (s *Store) GetOrder(tenantID, orderID string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[key(tenantID, orderID)]
	return order, ok
}

// CountLines возвращает число позиций заказа.
func (s *Store) CountLines(tenantID, orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, line := range s.lines {
		if line.TenantID == tenantID && line.OrderID == orderID {
			count++
		}
	}
	return count
}

// CountTaxLines возвращает число строк налоговой разбивки заказа.
func (s *Store) CountTaxLines(tenantID, orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, taxLine := range s.taxLines {
		if taxLine.TenantID == tenantID && taxLine.OrderID == orderID {
			count++
		}
	}
	return count
}

// PullPending возвращает pending-события outbox в порядке создания.
func (s *Store) PullPending(limit int) ([]domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]domain.OutboxEvent, 0, limit)
	for _, record := range s.outbox {
		if record.status == outboxStatusPending {
			pending = append(pending, record.event)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

// Stats возвращает состояние backlog outbox.
func (s *Store) Stats() (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.OutboxStats
	for _, record := range s.outbox {
		if record.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || record.event.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = record.event.CreatedAt
		}
	}
	return stats, nil
}

// MarkSent отмечает событие доставленным.
func (s *Store) MarkSent(id string) error {
	return s.markStatus(id, outboxStatusSent)
}

// MarkFailed отмечает событие недоставленным после исчерпания retry.
func (s *Store) MarkFailed(id string) error {
	return s.markStatus(id, outboxStatusFailed)
}

func (s *Store) markStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[id]
	if !ok {
		return domain.NewNotFound("outbox_event", id)
	}
	record.status = status
	record.attempts++
	s.outbox[id] = record
	return nil
}

// DeleteExpired удаляет просроченные idempotency-записи (не более limit за вызов).
func (s *Store) DeleteExpired(before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if before.IsZero() {
		before = time.Now().UTC()
	}

	deleted := 0
	for k, record := range s.idempotency {
		if limit > 0 && deleted >= limit {
			break
		}
		if record.ExpiresAt.Before(before) || record.ExpiresAt.Equal(before) {
			delete(s.idempotency, k)
			deleted++
		}
	}
	return deleted, nil
}

var (
	_ domain.TxRunner                     = (*Store)(nil)
	_ domain.OutboxRelayRepository        = (*Store)(nil)
	_ domain.IdempotencyCleanupRepository = (*Store)(nil)
)
