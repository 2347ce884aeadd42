package audit

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// LogSink пишет аудит-записи в структурированный лог. Используется как
// sink по умолчанию, пока не подключена внешняя система аудита.
type LogSink struct {
	logger *log.Entry
}

var _ domain.AuditSink = (*LogSink)(nil)

// NewLogSink создаёт sink поверх logger.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.WithField("component", "audit")
	}
	return &LogSink{logger: logger}
}

// Record пишет запись в лог.
func (s *LogSink) Record(_ context.Context, entry domain.AuditEntry) error {
	s.logger.WithFields(log.Fields{
		"tenant_id":   entry.TenantID,
		"actor":       entry.Actor,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
	}).Info("audit entry recorded")
	return nil
}
