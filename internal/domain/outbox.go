package domain

import "time"

// OutboxEvent — доменное событие, записанное в outbox в одной транзакции
// с мутацией состояния. Состояние доставки принадлежит relay-воркеру,
// движок событие только создаёт и ровно один раз на успешную команду.
type OutboxEvent struct {
	ID            string
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
