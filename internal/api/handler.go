package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sheikh-saqib/micropayments-ledger/internal/models"
)

// PaymentLedger is the subset of *ledger.Ledger the HTTP layer needs.
type PaymentLedger interface {
	RecordPayment(ctx context.Context, payer, payee string, amount uint64) (uint64, error)
	GetPayment(ctx context.Context, id uint64) (models.Payment, error)
	LookupPayment(ctx context.Context, id uint64) (models.Payment, bool, error)
	GetPaymentCount(ctx context.Context) (uint64, error)
}

type Handler struct {
	ledger PaymentLedger
	log    *logrus.Entry
	tracer trace.Tracer
}

type Option func(*Handler)

// WithTracer replaces the global "ledger-http" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) {
		h.tracer = t
	}
}

func NewHandler(l PaymentLedger, log *logrus.Entry, opts ...Option) *Handler {
	h := &Handler{
		ledger: l,
		log:    log,
		tracer: otel.Tracer("ledger-http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type recordPaymentRequest struct {
	Payer  string `json:"payer"`
	Payee  string `json:"payee"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.recordPayment)
		r.Get("/count", h.paymentCount)
		r.Get("/{id}", h.getPayment)
		r.Get("/{id}/exists", h.paymentExists)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RecordPayment", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.ledger.RecordPayment(ctx, req.Payer, req.Payee, req.Amount)
	if err != nil {
		h.fail(w, span, "record payment", err)
		return
	}
	span.SetAttributes(attribute.String("payment.id", strconv.FormatUint(id, 10)))

	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	// unknown ids answer with the Not Found record, not a 404
	p, err := h.ledger.GetPayment(ctx, id)
	if err != nil {
		h.fail(w, span, "get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) paymentExists(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "LookupPayment", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	_, found, err := h.ledger.LookupPayment(ctx, id)
	if err != nil {
		h.fail(w, span, "lookup payment", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID    uint64 `json:"id"`
		Found bool   `json:"found"`
	}{ID: id, Found: found})
}

func (h *Handler) paymentCount(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPaymentCount", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	count, err := h.ledger.GetPaymentCount(ctx)
	if err != nil {
		h.fail(w, span, "payment count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, op string, err error) {
	span.RecordError(err)
	h.log.WithError(err).WithField("op", op).Error("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "id must be an unsigned integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
