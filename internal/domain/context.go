package domain

import "strings"

// RequestContext — контекст уже аутентифицированного запроса, внедряется
// внешним слоем до вызова любого обработчика. Движок сам ничего не
// аутентифицирует и не валидирует сессию.
type RequestContext struct {
	TenantID   string
	LocationID string
	UserID     string
	// ClientRequestID — клиентский ключ идемпотентности. Пустое значение —
	// явный отказ от дедупликации: команда выполняется каждый раз заново.
	ClientRequestID string
}

// RequireTenant проверяет наличие арендатора в контексте.
func (rc RequestContext) RequireTenant() error {
	if strings.TrimSpace(rc.TenantID) == "" {
		return NewPreconditionMissing("tenant_id is required")
	}
	return nil
}

// RequireLocation проверяет наличие арендатора и локации в контексте.
func (rc RequestContext) RequireLocation() error {
	if err := rc.RequireTenant(); err != nil {
		return err
	}
	if strings.TrimSpace(rc.LocationID) == "" {
		return NewPreconditionMissing("location_id is required")
	}
	return nil
}

// AuditEntry — запись для внешнего audit sink; отправляется fire-and-forget
// после возврата команды и никогда не влияет на её результат.
type AuditEntry struct {
	TenantID   string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
}
