package domain

import "time"

// IdempotencyRecord хранит результат успешно завершённой команды по ключу
// (tenant_id, client_request_id). Запись создаётся только при успехе, в одной
// транзакции с мутацией состояния; откат попытки не оставляет записи и не
// «отравляет» будущие повторы ложным дубликатом. Записи не удаляются явно,
// просроченные игнорируются при чтении.
type IdempotencyRecord struct {
	TenantID        string
	ClientRequestID string
	CommandName     string
	Result          []byte
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// Expired сообщает, истёк ли срок жизни записи на момент now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}
