package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/clock"
	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

// Auditor принимает аудит-записи fire-and-forget после возврата команды.
type Auditor interface {
	Submit(entry domain.AuditEntry)
}

// Engine — фасад командного движка. Все мутации заказа проходят через него:
// pre-transaction разрешение каталожных данных, затем транзакция с
// idempotency guard, блокировкой агрегата, пересчётом итогов и outbox.
type Engine struct {
	executor *Executor
	catalog  domain.CatalogReader
	clock    clock.Clock
	idem     idempotencyGuard
	auditor  Auditor
	metrics  *metrics.CommandMetrics
	logger   *log.Entry
}

// EngineOptions задаёт необязательные зависимости движка.
type EngineOptions struct {
	Clock          clock.Clock
	Auditor        Auditor
	Metrics        *metrics.CommandMetrics
	Logger         *log.Entry
	IdempotencyTTL time.Duration
}

// EngineOption настраивает Engine.
type EngineOption func(*EngineOptions)

// WithClock задаёт источник времени (для тестов — фиксированный).
func WithClock(clk clock.Clock) EngineOption {
	return func(opts *EngineOptions) {
		opts.Clock = clk
	}
}

// WithAuditor задаёт получателя аудит-записей.
func WithAuditor(auditor Auditor) EngineOption {
	return func(opts *EngineOptions) {
		opts.Auditor = auditor
	}
}

// WithMetrics задаёт метрики движка.
func WithMetrics(m *metrics.CommandMetrics) EngineOption {
	return func(opts *EngineOptions) {
		opts.Metrics = m
	}
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) EngineOption {
	return func(opts *EngineOptions) {
		opts.Logger = logger
	}
}

// WithIdempotencyTTL задаёт срок жизни idempotency-записей.
func WithIdempotencyTTL(ttl time.Duration) EngineOption {
	return func(opts *EngineOptions) {
		opts.IdempotencyTTL = ttl
	}
}

// NewEngine создаёт движок поверх транзакционного раннера и каталога.
func NewEngine(runner domain.TxRunner, catalog domain.CatalogReader, options ...EngineOption) *Engine {
	opts := EngineOptions{}
	for _, option := range options {
		option(&opts)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "command-engine")
	}

	return &Engine{
		executor: NewExecutor(runner, clk, logger),
		catalog:  catalog,
		clock:    clk,
		idem:     newIdempotencyGuard(clk, opts.IdempotencyTTL),
		auditor:  opts.Auditor,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// runCommand оборачивает тело команды транзакцией, idempotency guard-ом и
// записью результата. Возвращает признак replay: повторный вызов с тем же
// ключом обслуживается из кэша без повторных побочных эффектов и событий.
func runCommand[T any](
	ctx context.Context,
	e *Engine,
	rc domain.RequestContext,
	commandName string,
	fn func(ctx context.Context, uow domain.UnitOfWork) (T, []domain.OutboxEvent, error),
) (T, bool, error) {
	started := time.Now()
	replayed := false

	result, err := execute(ctx, e.executor, func(ctx context.Context, uow domain.UnitOfWork) (T, []domain.OutboxEvent, error) {
		var zero T

		cached, found, err := e.idem.Check(ctx, uow, rc.TenantID, rc.ClientRequestID)
		if err != nil {
			return zero, nil, err
		}
		if found {
			var value T
			if err := json.Unmarshal(cached, &value); err != nil {
				return zero, nil, domain.NewInternal(fmt.Errorf("decode cached idempotent result: %w", err))
			}
			replayed = true
			return value, nil, nil
		}

		value, events, err := fn(ctx, uow)
		if err != nil {
			return zero, nil, err
		}

		if rc.ClientRequestID != "" {
			payload, err := json.Marshal(value)
			if err != nil {
				return zero, nil, domain.NewInternal(fmt.Errorf("encode idempotent result: %w", err))
			}
			if err := e.idem.Save(ctx, uow, rc.TenantID, rc.ClientRequestID, commandName, payload); err != nil {
				return zero, nil, err
			}
		}

		return value, events, nil
	})

	e.observe(commandName, replayed, err, time.Since(started))

	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"command":   commandName,
			"tenant_id": rc.TenantID,
		}).Warn("command failed")
		var zero T
		return zero, false, err
	}

	return result, replayed, nil
}

func (e *Engine) observe(commandName string, replayed bool, err error, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	e.metrics.ObserveCommand(commandName, result, duration)
	if replayed {
		e.metrics.ObserveReplay(commandName)
	}
}

// submitAudit отправляет аудит-запись после успешной (не replay) команды.
// Сбой или переполнение аудита никогда не влияет на результат команды.
func (e *Engine) submitAudit(rc domain.RequestContext, action, entityType, entityID string) {
	if e.auditor == nil {
		return
	}
	e.auditor.Submit(domain.AuditEntry{
		TenantID:   rc.TenantID,
		Actor:      rc.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	})
}
