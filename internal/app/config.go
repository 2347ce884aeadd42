package app

import (
	"os"
	"strconv"
	"strings"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	// PostgresDSN пустой — сервис работает на in-memory хранилище.
	PostgresDSN string
	// PostgresMaxConns ограничивает пул соединений БД.
	PostgresMaxConns int
	// KafkaBrokers пустой — outbox relay отключён.
	KafkaBrokers string
	OutboxTopic  string
	DLQTopic     string
	// CatalogFile — путь к JSON-файлу со статическим каталогом товаров.
	CatalogFile string
}

// DefaultConfig возвращает базовые адреса сервиса и метрик.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		PostgresMaxConns: 25,
	}
}

// ConfigFromEnv формирует конфигурацию из переменных окружения,
// начиная с DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("BACKOFFICE_POSTGRES_DSN"))
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_POSTGRES_MAX_CONNS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PostgresMaxConns = n
		}
	}
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("BACKOFFICE_KAFKA_BROKERS"))
	cfg.OutboxTopic = strings.TrimSpace(os.Getenv("BACKOFFICE_OUTBOX_TOPIC"))
	cfg.DLQTopic = strings.TrimSpace(os.Getenv("BACKOFFICE_DLQ_TOPIC"))
	cfg.CatalogFile = strings.TrimSpace(os.Getenv("BACKOFFICE_CATALOG_FILE"))
	return cfg
}
