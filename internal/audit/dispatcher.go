// Пакет audit реализует best-effort доставку аудит-записей во внешний sink.
// Доставка намеренно отвязана от транзакции команды: медленный или упавший
// sink никогда не блокирует и не откатывает уже зафиксированную мутацию.
package audit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

const (
	defaultQueueSize   = 1024
	defaultSinkTimeout = 2 * time.Second
)

// DispatcherOptions задаёт параметры диспетчера аудита.
type DispatcherOptions struct {
	Logger      *log.Entry
	Metrics     *metrics.CommandMetrics
	QueueSize   int
	SinkTimeout time.Duration
}

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*DispatcherOptions)

// WithLogger задаёт logger диспетчера.
func WithLogger(logger *log.Entry) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики для учёта потерянных записей.
func WithMetrics(m *metrics.CommandMetrics) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Metrics = m
	}
}

// WithQueueSize задаёт ёмкость очереди записей.
func WithQueueSize(size int) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.QueueSize = size
	}
}

// WithSinkTimeout задаёт таймаут одной записи в sink.
func WithSinkTimeout(timeout time.Duration) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.SinkTimeout = timeout
	}
}

// Dispatcher принимает записи неблокирующе и доставляет их в sink в фоне.
// Переполнение очереди приводит к потере записи с логом и метрикой —
// осознанный размен полноты аудита на доступность бизнес-мутаций.
type Dispatcher struct {
	sink        domain.AuditSink
	entries     chan domain.AuditEntry
	done        chan struct{}
	logger      *log.Entry
	metrics     *metrics.CommandMetrics
	sinkTimeout time.Duration
}

// NewDispatcher создаёт диспетчер поверх sink.
func NewDispatcher(sink domain.AuditSink, options ...DispatcherOption) *Dispatcher {
	opts := DispatcherOptions{
		QueueSize:   defaultQueueSize,
		SinkTimeout: defaultSinkTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "audit-dispatcher")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}

	return &Dispatcher{
		sink:        sink,
		entries:     make(chan domain.AuditEntry, opts.QueueSize),
		done:        make(chan struct{}),
		logger:      logger,
		metrics:     opts.Metrics,
		sinkTimeout: opts.SinkTimeout,
	}
}

// Submit ставит запись в очередь, не блокируя вызывающего.
// При заполненной очереди запись теряется.
func (d *Dispatcher) Submit(entry domain.AuditEntry) {
	select {
	case d.entries <- entry:
	default:
		d.logger.WithFields(log.Fields{
			"action":    entry.Action,
			"entity_id": entry.EntityID,
		}).Warn("audit queue is full, entry dropped")
		d.metrics.ObserveAuditDropped()
	}
}

// Run доставляет записи до отмены ctx, затем дорабатывает накопленную очередь.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case entry := <-d.entries:
			d.deliver(entry)
		}
	}
}

// Wait блокируется до полной остановки Run.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) drain() {
	for {
		select {
		case entry := <-d.entries:
			d.deliver(entry)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
	defer cancel()

	if err := d.sink.Record(ctx, entry); err != nil {
		// Сбой аудита глотается: он не должен дойти до вызывающего команду.
		d.logger.WithError(err).WithFields(log.Fields{
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
		}).Warn("failed to record audit entry")
	}
}
