package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommandMetrics содержит метрики командного движка заказов.
type CommandMetrics struct {
	// Счётчики исходов команд
	commandsTotal *prometheus.CounterVec
	// Повторы, обслуженные из idempotency-кэша
	idempotentReplays *prometheus.CounterVec

	// Гистограмма времени исполнения команды (включая транзакцию)
	commandDuration *prometheus.HistogramVec

	// Потерянные аудит-записи (переполнение очереди dispatcher-а)
	auditDropped prometheus.Counter
}

// NewCommandMetrics создаёт метрики движка в default registerer.
func NewCommandMetrics() *CommandMetrics {
	return newCommandMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCommandMetricsWithRegisterer(registerer prometheus.Registerer) *CommandMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommandMetrics{
		commandsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_commands_total",
			Help: "Total number of order commands grouped by command and result",
		}, []string{"command", "result"}),
		idempotentReplays: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_idempotent_replays_total",
			Help: "Total number of commands served from the idempotency cache",
		}, []string{"command"}),
		commandDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "backoffice_command_duration_seconds",
			Help:    "Duration of order commands in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"command"}),
		auditDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "backoffice_audit_dropped_total",
			Help: "Total number of audit entries dropped because the dispatcher queue was full",
		}),
	}
}

// ObserveCommand фиксирует исход и длительность команды.
func (m *CommandMetrics) ObserveCommand(command, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, result).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// ObserveReplay фиксирует обслуживание команды из idempotency-кэша.
func (m *CommandMetrics) ObserveReplay(command string) {
	if m == nil {
		return
	}
	m.idempotentReplays.WithLabelValues(command).Inc()
}

// ObserveAuditDropped фиксирует потерю аудит-записи.
func (m *CommandMetrics) ObserveAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
