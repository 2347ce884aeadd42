// Пакет http — JSON-интерфейс командного движка заказов.
package http

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/command"
	"github.com/vladislavdragonenkov/backoffice/internal/health"
)

// Handlers связывает маршруты с командным движком.
type Handlers struct {
	engine *command.Engine
	logger *log.Entry
}

// NewHandlers создаёт HTTP-обработчики поверх движка.
func NewHandlers(engine *command.Engine, logger *log.Entry) *Handlers {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handlers{engine: engine, logger: logger}
}

// NewRouter собирает маршруты сервиса.
func NewRouter(engine *command.Engine, healthHandler *health.Handler, logger *log.Entry) http.Handler {
	h := NewHandlers(engine, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", h.openOrder)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /v1/orders/{id}/lines", h.addLineItem)
	mux.HandleFunc("DELETE /v1/orders/{id}/lines/{lineID}", h.removeLineItem)
	mux.HandleFunc("POST /v1/orders/{id}/place", h.placeOrder)
	mux.HandleFunc("POST /v1/orders/{id}/void", h.voidOrder)

	if healthHandler != nil {
		mux.Handle("GET /healthz", healthHandler)
		mux.HandleFunc("GET /livez", health.LivenessHandler)
		mux.HandleFunc("GET /readyz", healthHandler.ReadinessHandler)
	}

	return RequestLogger(mux, logger)
}

type openOrderRequest struct {
	BusinessDate string `json:"business_date,omitempty"`
}

func (h *Handlers) openOrder(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.OpenOrder(r.Context(), requestContextFrom(r), command.OpenOrderInput{
		BusinessDate: req.BusinessDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetOrder(r.Context(), requestContextFrom(r), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type addLineItemRequest struct {
	ItemID string `json:"item_id"`
	Qty    int32  `json:"qty"`
}

func (h *Handlers) addLineItem(w http.ResponseWriter, r *http.Request) {
	var req addLineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.AddLineItem(r.Context(), requestContextFrom(r), command.AddLineItemInput{
		OrderID: r.PathValue("id"),
		ItemID:  req.ItemID,
		Qty:     req.Qty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) removeLineItem(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RemoveLineItem(r.Context(), requestContextFrom(r), command.RemoveLineItemInput{
		OrderID: r.PathValue("id"),
		LineID:  r.PathValue("lineID"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.PlaceOrder(r.Context(), requestContextFrom(r), command.PlaceOrderInput{
		OrderID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type voidOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) voidOrder(w http.ResponseWriter, r *http.Request) {
	var req voidOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.VoidOrder(r.Context(), requestContextFrom(r), command.VoidOrderInput{
		OrderID: r.PathValue("id"),
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeBody читает JSON-тело запроса; пустое тело допустимо.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
