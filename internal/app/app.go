// Пакет app собирает и запускает сервис целиком: хранилище, командный
// движок, фоновые воркеры и HTTP-серверы.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/audit"
	"github.com/vladislavdragonenkov/backoffice/internal/catalog"
	"github.com/vladislavdragonenkov/backoffice/internal/command"
	healthcheck "github.com/vladislavdragonenkov/backoffice/internal/health"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
	idemsvc "github.com/vladislavdragonenkov/backoffice/internal/service/idempotency"
	outboxsvc "github.com/vladislavdragonenkov/backoffice/internal/service/outbox"
	httptransport "github.com/vladislavdragonenkov/backoffice/internal/transport/http"
	"github.com/vladislavdragonenkov/backoffice/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	catalogReader, err := initCatalog(cfg.CatalogFile, logger)
	if err != nil {
		return err
	}

	commandMetrics := metrics.NewCommandMetrics()

	auditDispatcher := audit.NewDispatcher(
		audit.NewLogSink(log.WithField("component", "audit")),
		audit.WithMetrics(commandMetrics),
	)
	go auditDispatcher.Run(ctx)

	engine := command.NewEngine(storage.Runner, catalogReader,
		command.WithAuditor(auditDispatcher),
		command.WithMetrics(commandMetrics),
		command.WithLogger(log.WithField("component", "command-engine")),
	)

	// Kafka опционален: без брокеров outbox копится, relay не стартует.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.OutboxTopic)
		dlqTopic := cfg.DLQTopic
		if dlqTopic == "" {
			dlqTopic = kafka.TopicDeadLetterQueue
		}
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, dlqTopic)

		outboxWorker := outboxsvc.NewWorker(storage.OutboxRepo, publisher,
			outboxsvc.WithDLQPublisher(dlqPublisher),
			outboxsvc.WithLogger(log.WithField("component", "outbox-worker")),
		)
		go outboxWorker.Run(ctx)
	} else {
		logger.Warn("kafka is not configured, outbox relay is disabled")
	}

	cleanupWorker := idemsvc.NewCleanupWorker(storage.CleanupRepo,
		idemsvc.WithLogger(log.WithField("component", "idempotency-cleanup-worker")),
	)
	go cleanupWorker.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.SetBuildInfo(version.GetCommit(), version.GetDate())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return storage.Ping(pingCtx)
	}))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	router := httptransport.NewRouter(engine, healthHandler, log.WithField("component", "http"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		auditDispatcher.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// initCatalog загружает статический каталог из файла или отдаёт пустой.
func initCatalog(path string, logger *log.Entry) (*catalog.StaticReader, error) {
	if path == "" {
		logger.Warn("catalog file is not configured, starting with empty catalog")
		return catalog.NewStaticReader(), nil
	}

	reader, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).Info("catalog loaded")
	return reader, nil
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
