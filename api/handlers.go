/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every decision to billing.Engine. The
  HTTP layer adds no business rules.

ENDPOINTS:
  Units:
    GET    /api/condominiums/{id}/units           List units
    POST   /api/units                             Register a unit

  Concepts:
    GET    /api/condominiums/{id}/concepts        List concepts
    POST   /api/concepts                          Create concept (+ nested assignments)
    GET    /api/concepts/{id}                     Get concept
    POST   /api/concepts/{id}/deactivate          Deactivate concept

  Assignments:
    GET    /api/concepts/{id}/assignments         List assignments
    POST   /api/concepts/{id}/assignments         Add assignment
    DELETE /api/assignments/{id}                  Remove assignment

  Charges:
    POST   /api/concepts/{id}/charges             Generate a period
    POST   /api/concepts/{id}/charges/preview     Preview a period
    GET    /api/concepts/{id}/charges/{year}/{month}  Charge run + quotas

  Quotas:
    GET    /api/quotas/{id}/quote?payment_date=   Late fee / discount quote
    POST   /api/quotas/{id}/adjustments           Adjust amount
    GET    /api/quotas/{id}/adjustments           Adjustment history

  Payments:
    POST   /api/payments/{id}/refund              Refund a completed payment

ACTOR:
  The acting user comes from the X-Actor-ID header ("system" when absent).
  Authentication happens upstream.

ERROR HANDLING:
  billing codes map to HTTP status:
  - NOT_FOUND      404
  - BAD_REQUEST    400
  - CONFLICT       409
  - INTERNAL_ERROR 500 (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/condo-ledger/billing"
	"github.com/warp/condo-ledger/factory"
)

const (
	actorHeader  = "X-Actor-ID"
	defaultActor = "system"
	maxBodyBytes = 1 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *billing.Engine
	Store   billing.TxStore
	Factory *factory.ConceptFactory

	log *zap.Logger
	now func() time.Time
}

// NewHandler creates a handler over an engine and the store it was built on.
// The store is only used by the demo scenarios, which stand in for the
// external payment processor.
func NewHandler(engine *billing.Engine, store billing.TxStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Engine:  engine,
		Store:   store,
		Factory: factory.NewConceptFactory(),
		log:     log.Named("api"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Engine.Registry.ListUnits(r.Context(), billing.CondominiumID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	u, err := h.Engine.Registry.RegisterUnit(r.Context(), billing.Unit{
		ID:            billing.UnitID(req.ID),
		CondominiumID: billing.CondominiumID(req.CondominiumID),
		BuildingID:    billing.BuildingID(req.BuildingID),
		Code:          req.Code,
		Aliquot:       req.Aliquot,
		IsActive:      active,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(*u))
}

// =============================================================================
// CONCEPT HANDLERS
// =============================================================================

func (h *Handler) ListConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.Engine.Registry.ListConcepts(r.Context(), billing.CondominiumID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]ConceptDTO, len(concepts))
	for i, c := range concepts {
		dtos[i] = h.toConceptDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateConcept creates a concept from a JSON definition, then adds any
// nested assignments. A rejected assignment does not undo the concept; the
// response reports the assignments that were created before the failure.
func (h *Handler) CreateConcept(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	def, err := h.Factory.ParseDefinition(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid concept definition", err)
		return
	}

	ctx := r.Context()
	actor := actorOf(r)
	concept, err := h.Engine.Registry.CreateConcept(ctx, def.Concept, actor)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := CreateConceptResponse{Concept: h.toConceptDTO(*concept), Assignments: []AssignmentDTO{}}
	for _, a := range def.AssignmentsFor(concept.ID) {
		created, err := h.Engine.Registry.AddAssignment(ctx, a, actor)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		resp.Assignments = append(resp.Assignments, toAssignmentDTO(*created))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetConcept(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.Registry.GetConcept(r.Context(), billing.ConceptID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toConceptDTO(*c))
}

func (h *Handler) DeactivateConcept(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.Registry.DeactivateConcept(r.Context(), billing.ConceptID(chi.URLParam(r, "id")), actorOf(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toConceptDTO(*c))
}

func (h *Handler) toConceptDTO(c billing.PaymentConcept) ConceptDTO {
	return ConceptDTO{
		ConceptJSON: h.Factory.ToJSON(c),
		IsActive:    c.IsActive,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	as, err := h.Engine.Registry.ListAssignments(r.Context(), billing.ConceptID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddAssignment(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	a, err := h.Factory.ParseAssignment(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid assignment", err)
		return
	}
	a.ConceptID = billing.ConceptID(chi.URLParam(r, "id"))

	created, err := h.Engine.Registry.AddAssignment(r.Context(), a, actorOf(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*created))
}

func (h *Handler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Registry.RemoveAssignment(r.Context(), billing.AssignmentID(chi.URLParam(r, "id"))); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CHARGE HANDLERS
// =============================================================================

// GenerateCharges creates the quotas of one period.
// POST /api/concepts/{id}/charges {"year": 2025, "month": 3}
func (h *Handler) GenerateCharges(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.Engine.Generator.Generate(r.Context(),
		billing.ConceptID(chi.URLParam(r, "id")), req.Year, time.Month(req.Month), actorOf(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGenerationDTO(result))
}

func (h *Handler) PreviewCharges(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.Engine.Generator.Preview(r.Context(),
		billing.ConceptID(chi.URLParam(r, "id")), req.Year, time.Month(req.Month))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationDTO(result))
}

// GetCharges returns the charge run of a period with its quotas.
// GET /api/concepts/{id}/charges/{year}/{month}
func (h *Handler) GetCharges(w http.ResponseWriter, r *http.Request) {
	year, err1 := strconv.Atoi(chi.URLParam(r, "year"))
	month, err2 := strconv.Atoi(chi.URLParam(r, "month"))
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	ctx := r.Context()
	conceptID := billing.ConceptID(chi.URLParam(r, "id"))

	run, err := h.Engine.Generator.Run(ctx, conceptID, year, time.Month(month))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	quotas, err := h.Engine.Generator.Quotas(ctx, conceptID, year, time.Month(month))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dto := ChargeRunDTO{
		ID:            run.ID,
		ConceptID:     string(run.ConceptID),
		Period:        billing.NewPeriod(run.PeriodYear, run.PeriodMonth).String(),
		QuotasCreated: run.QuotasCreated,
		TotalAmount:   money(run.TotalAmount),
		IssueDate:     date(run.IssueDate),
		DueDate:       date(run.DueDate),
		CreatedBy:     run.CreatedBy,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		Quotas:        make([]QuotaDTO, len(quotas)),
	}
	for i, q := range quotas {
		dto.Quotas[i] = toQuotaDTO(q)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// QUOTA HANDLERS
// =============================================================================

// QuoteQuota prices a payment on a date. payment_date defaults to today.
func (h *Handler) QuoteQuota(w http.ResponseWriter, r *http.Request) {
	paymentDate := billing.DateOf(h.now())
	if s := r.URL.Query().Get("payment_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
			return
		}
		paymentDate = t
	}
	q, err := h.Engine.Quotes.Quote(r.Context(), billing.QuotaID(chi.URLParam(r, "id")), paymentDate)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		QuotaID:       string(q.QuotaID),
		PaymentDate:   date(q.PaymentDate),
		Balance:       money(q.Balance),
		LateFee:       money(q.LateFee),
		EarlyDiscount: money(q.EarlyDiscount),
		AmountDue:     money(q.AmountDue),
	})
}

func (h *Handler) AdjustQuota(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Engine.Adjuster.Adjust(r.Context(),
		billing.QuotaID(chi.URLParam(r, "id")),
		req.NewAmount, billing.AdjustmentType(req.AdjustmentType), req.Reason, actorOf(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdjustmentResultDTO{
		Adjustment: toAdjustmentDTO(res.Adjustment),
		Quota:      toQuotaDTO(res.Quota),
		Message:    res.Message,
	})
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	history, err := h.Engine.Adjuster.History(r.Context(), billing.QuotaID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]AdjustmentDTO, len(history))
	for i, a := range history {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Engine.Reversal.Refund(r.Context(), billing.PaymentID(chi.URLParam(r, "id")), req.Reason, actorOf(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefundResultDTO{
		Payment:              toPaymentDTO(res.Payment),
		ReversedApplications: res.ReversedApplications,
		Message:              res.Message,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func actorOf(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		return actor
	}
	return defaultActor
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	return body, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusOf maps a billing result code to an HTTP status.
func statusOf(code billing.Code) int {
	switch code {
	case billing.CodeNotFound:
		return http.StatusNotFound
	case billing.CodeBadRequest:
		return http.StatusBadRequest
	case billing.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	code := billing.CodeOf(err)
	resp := ErrorResponse{Error: "Internal error", Code: string(code)}

	var e *billing.Error
	if code != billing.CodeInternal && errors.As(err, &e) {
		resp.Error = e.Message
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Field
		}
	} else {
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, statusOf(code), resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
