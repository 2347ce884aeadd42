package http

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// Заголовки контекста запроса. Аутентификацию выполняет внешний шлюз,
// сюда приходят уже проверенные значения.
const (
	HeaderTenantID       = "X-Tenant-ID"
	HeaderLocationID     = "X-Location-ID"
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// requestContextFrom собирает RequestContext из заголовков запроса.
// Полноту контекста проверяет сам движок (PreconditionMissing).
func requestContextFrom(r *http.Request) domain.RequestContext {
	return domain.RequestContext{
		TenantID:        r.Header.Get(HeaderTenantID),
		LocationID:      r.Header.Get(HeaderLocationID),
		UserID:          r.Header.Get(HeaderUserID),
		ClientRequestID: r.Header.Get(HeaderIdempotencyKey),
	}
}

// RequestLogger логирует метод, путь, статус и длительность запроса.
func RequestLogger(next http.Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
