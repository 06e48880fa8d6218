/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing domain model from the external API contract. Money is always
  a string with two decimals, dates are YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Concepts:    ConceptDTO (wraps factory.ConceptJSON), AssignmentDTO
  Units:       UnitDTO, CreateUnitRequest
  Generation:  GenerateRequest, GenerationDTO, ChargeRunDTO, QuotaDTO
  Quotas:      QuoteDTO, AdjustRequest, AdjustmentDTO, AdjustmentResultDTO
  Payments:    RefundRequest, PaymentDTO, RefundResultDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/concept.go: ConceptJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/condo-ledger/billing"
	"github.com/warp/condo-ledger/factory"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CONCEPTS & ASSIGNMENTS
// =============================================================================

type ConceptDTO struct {
	factory.ConceptJSON
	IsActive  bool   `json:"is_active"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type AssignmentDTO struct {
	ID                 string `json:"id"`
	ConceptID          string `json:"concept_id"`
	ScopeType          string `json:"scope_type"`
	CondominiumID      string `json:"condominium_id"`
	BuildingID         string `json:"building_id,omitempty"`
	UnitID             string `json:"unit_id,omitempty"`
	DistributionMethod string `json:"distribution_method"`
	Amount             string `json:"amount"`
	IsActive           bool   `json:"is_active"`
	CreatedBy          string `json:"created_by,omitempty"`
}

// CreateConceptResponse is returned when a concept is created together with
// its nested assignments.
type CreateConceptResponse struct {
	Concept     ConceptDTO      `json:"concept"`
	Assignments []AssignmentDTO `json:"assignments"`
}

// =============================================================================
// UNITS
// =============================================================================

type UnitDTO struct {
	ID            string `json:"id"`
	CondominiumID string `json:"condominium_id"`
	BuildingID    string `json:"building_id,omitempty"`
	Code          string `json:"code"`
	Aliquot       string `json:"aliquot"`
	IsActive      bool   `json:"is_active"`
}

type CreateUnitRequest struct {
	ID            string          `json:"id,omitempty"`
	CondominiumID string          `json:"condominium_id"`
	BuildingID    string          `json:"building_id,omitempty"`
	Code          string          `json:"code"`
	Aliquot       decimal.Decimal `json:"aliquot"`
	IsActive      *bool           `json:"is_active,omitempty"` // default true
}

// =============================================================================
// GENERATION
// =============================================================================

type GenerateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type UnitAmountDTO struct {
	UnitID string `json:"unit_id"`
	Amount string `json:"amount"`
}

type GenerationDTO struct {
	RunID         string          `json:"run_id,omitempty"`
	ConceptID     string          `json:"concept_id"`
	Period        string          `json:"period"`
	QuotasCreated int             `json:"quotas_created"`
	TotalAmount   string          `json:"total_amount"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	Breakdown     []UnitAmountDTO `json:"breakdown"`
}

type ChargeRunDTO struct {
	ID            string     `json:"id"`
	ConceptID     string     `json:"concept_id"`
	Period        string     `json:"period"`
	QuotasCreated int        `json:"quotas_created"`
	TotalAmount   string     `json:"total_amount"`
	IssueDate     string     `json:"issue_date"`
	DueDate       string     `json:"due_date"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     string     `json:"created_at"`
	Quotas        []QuotaDTO `json:"quotas"`
}

type QuotaDTO struct {
	ID             string `json:"id"`
	UnitID         string `json:"unit_id"`
	ConceptID      string `json:"concept_id"`
	Period         string `json:"period"`
	BaseAmount     string `json:"base_amount"`
	InterestAmount string `json:"interest_amount"`
	PaidAmount     string `json:"paid_amount"`
	Balance        string `json:"balance"`
	Status         string `json:"status"`
	IssueDate      string `json:"issue_date"`
	DueDate        string `json:"due_date"`
	CurrencyID     string `json:"currency_id"`
}

// =============================================================================
// QUOTAS
// =============================================================================

type QuoteDTO struct {
	QuotaID       string `json:"quota_id"`
	PaymentDate   string `json:"payment_date"`
	Balance       string `json:"balance"`
	LateFee       string `json:"late_fee"`
	EarlyDiscount string `json:"early_discount"`
	AmountDue     string `json:"amount_due"`
}

type AdjustRequest struct {
	NewAmount      decimal.Decimal `json:"new_amount"`
	AdjustmentType string          `json:"adjustment_type"`
	Reason         string          `json:"reason"`
}

type AdjustmentDTO struct {
	ID             string `json:"id"`
	QuotaID        string `json:"quota_id"`
	PreviousAmount string `json:"previous_amount"`
	NewAmount      string `json:"new_amount"`
	AdjustmentType string `json:"adjustment_type"`
	Reason         string `json:"reason"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
}

type AdjustmentResultDTO struct {
	Adjustment AdjustmentDTO `json:"adjustment"`
	Quota      QuotaDTO      `json:"quota"`
	Message    string        `json:"message"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type RefundRequest struct {
	Reason string `json:"reason"`
}

type PaymentDTO struct {
	ID          string `json:"id"`
	UnitID      string `json:"unit_id"`
	Amount      string `json:"amount"`
	CurrencyID  string `json:"currency_id"`
	Status      string `json:"status"`
	PaymentDate string `json:"payment_date"`
	Notes       string `json:"notes,omitempty"`
}

type RefundResultDTO struct {
	Payment              PaymentDTO `json:"payment"`
	ReversedApplications int        `json:"reversed_applications"`
	Message              string     `json:"message"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse lists what a scenario seeded so clients can follow up.
type LoadScenarioResponse struct {
	ScenarioID string   `json:"scenario_id"`
	ConceptID  string   `json:"concept_id"`
	Period     string   `json:"period"`
	QuotaIDs   []string `json:"quota_ids"`
	PaymentIDs []string `json:"payment_ids,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func toAssignmentDTO(a billing.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:                 string(a.ID),
		ConceptID:          string(a.ConceptID),
		ScopeType:          string(a.Scope),
		CondominiumID:      string(a.CondominiumID),
		DistributionMethod: string(a.DistributionMethod),
		Amount:             money(a.Amount),
		IsActive:           a.IsActive,
		CreatedBy:          a.CreatedBy,
	}
	if a.BuildingID != nil {
		dto.BuildingID = string(*a.BuildingID)
	}
	if a.UnitID != nil {
		dto.UnitID = string(*a.UnitID)
	}
	return dto
}

func toUnitDTO(u billing.Unit) UnitDTO {
	return UnitDTO{
		ID:            string(u.ID),
		CondominiumID: string(u.CondominiumID),
		BuildingID:    string(u.BuildingID),
		Code:          u.Code,
		Aliquot:       u.Aliquot.String(),
		IsActive:      u.IsActive,
	}
}

func toGenerationDTO(r *billing.GenerationResult) GenerationDTO {
	dto := GenerationDTO{
		RunID:         r.RunID,
		ConceptID:     string(r.ConceptID),
		Period:        r.Period.String(),
		QuotasCreated: r.QuotasCreated,
		TotalAmount:   money(r.TotalAmount),
		IssueDate:     date(r.IssueDate),
		DueDate:       date(r.DueDate),
		Breakdown:     make([]UnitAmountDTO, len(r.Breakdown)),
	}
	for i, e := range r.Breakdown {
		dto.Breakdown[i] = UnitAmountDTO{UnitID: string(e.UnitID), Amount: money(e.Amount)}
	}
	return dto
}

func toQuotaDTO(q billing.Quota) QuotaDTO {
	return QuotaDTO{
		ID:             string(q.ID),
		UnitID:         string(q.UnitID),
		ConceptID:      string(q.ConceptID),
		Period:         q.Period().String(),
		BaseAmount:     money(q.BaseAmount),
		InterestAmount: money(q.InterestAmount),
		PaidAmount:     money(q.PaidAmount),
		Balance:        money(q.Balance),
		Status:         string(q.Status),
		IssueDate:      date(q.IssueDate),
		DueDate:        date(q.DueDate),
		CurrencyID:     q.CurrencyID,
	}
}

func toAdjustmentDTO(a billing.QuotaAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             a.ID,
		QuotaID:        string(a.QuotaID),
		PreviousAmount: money(a.PreviousAmount),
		NewAmount:      money(a.NewAmount),
		AdjustmentType: string(a.Type),
		Reason:         a.Reason,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:          string(p.ID),
		UnitID:      string(p.UnitID),
		Amount:      money(p.Amount),
		CurrencyID:  p.CurrencyID,
		Status:      string(p.Status),
		PaymentDate: date(p.PaymentDate),
		Notes:       p.Notes,
	}
}
