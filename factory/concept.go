/*
Package factory provides JSON to Go conversion for concept and assignment definitions.

PURPOSE:
  Converts JSON concept and assignment definitions into billing.PaymentConcept
  and billing.Assignment values. Administrators can keep billing setups as
  JSON documents and the factory builds the matching Go structs. The HTTP
  API and the demo scenarios both go through here.

JSON SCHEMA:
  {
    "condominium_id": "condo-1",
    "name": "Maintenance",
    "concept_type": "maintenance",
    "currency_id": "USD",
    "is_recurring": true,
    "recurrence_period": "monthly",
    "issue_day": 1,
    "due_day": 10,
    "late_fee": {"type": "percentage", "value": "5", "grace_days": 3},
    "early_discount": {"type": "fixed", "value": "2.50", "days_before_due": 5},
    "assignments": [
      {"scope_type": "condominium", "distribution_method": "by_aliquot", "amount": "1000"},
      {"scope_type": "unit", "unit_id": "u-103", "distribution_method": "fixed_per_unit", "amount": "75"}
    ]
  }

MONEY:
  Amounts are decimal strings. JSON numbers are accepted too, but strings
  avoid float rounding on the way in.

KEY FEATURES:
  - Validates JSON structure (unknown fields are rejected)
  - Parses money with shopspring/decimal
  - Leaves business validation to billing.Registry, so the rules live in
    one place

USAGE:
  f := factory.NewConceptFactory()
  def, err := f.ParseDefinition(jsonString)
  concept, err := engine.Registry.CreateConcept(ctx, def.Concept, actor)
  for _, a := range def.AssignmentsFor(concept.ID) {
      engine.Registry.AddAssignment(ctx, a, actor)
  }

SEE ALSO:
  - billing/concept.go: PaymentConcept and its validation
  - billing/assignment.go: Assignment and its validation
  - api/scenarios.go: Demo definitions
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/condo-ledger/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConceptJSON is the JSON representation of a payment concept.
type ConceptJSON struct {
	ID               string             `json:"id,omitempty"`
	CondominiumID    string             `json:"condominium_id"`
	BuildingID       string             `json:"building_id,omitempty"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	ConceptType      string             `json:"concept_type,omitempty"`
	CurrencyID       string             `json:"currency_id"`
	IsRecurring      bool               `json:"is_recurring,omitempty"`
	RecurrencePeriod string             `json:"recurrence_period,omitempty"`
	IssueDay         int                `json:"issue_day,omitempty"`
	DueDay           int                `json:"due_day,omitempty"`
	LateFee          *LateFeeJSON       `json:"late_fee,omitempty"`
	EarlyDiscount    *EarlyDiscountJSON `json:"early_discount,omitempty"`
	Assignments      []AssignmentJSON   `json:"assignments,omitempty"`
}

type LateFeeJSON struct {
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	GraceDays int             `json:"grace_days,omitempty"`
}

type EarlyDiscountJSON struct {
	Type          string          `json:"type"`
	Value         decimal.Decimal `json:"value"`
	DaysBeforeDue int             `json:"days_before_due,omitempty"`
}

// AssignmentJSON is the JSON representation of an assignment. ConceptID may
// be empty when the assignment is nested in a ConceptJSON.
type AssignmentJSON struct {
	ConceptID          string          `json:"concept_id,omitempty"`
	ScopeType          string          `json:"scope_type"`
	BuildingID         string          `json:"building_id,omitempty"`
	UnitID             string          `json:"unit_id,omitempty"`
	DistributionMethod string          `json:"distribution_method"`
	Amount             decimal.Decimal `json:"amount"`
}

// Definition is a parsed concept plus the assignments defined with it.
type Definition struct {
	Concept     billing.PaymentConcept
	Assignments []billing.Assignment
}

// AssignmentsFor returns the nested assignments bound to a stored concept ID.
func (d Definition) AssignmentsFor(id billing.ConceptID) []billing.Assignment {
	out := make([]billing.Assignment, len(d.Assignments))
	for i, a := range d.Assignments {
		a.ConceptID = id
		out[i] = a
	}
	return out
}

// =============================================================================
// CONCEPT FACTORY
// =============================================================================

// ConceptFactory converts JSON definitions to billing values.
type ConceptFactory struct{}

func NewConceptFactory() *ConceptFactory {
	return &ConceptFactory{}
}

// ParseDefinition parses a JSON concept definition with nested assignments.
func (f *ConceptFactory) ParseDefinition(jsonStr string) (*Definition, error) {
	var cj ConceptJSON
	if err := decodeStrict(jsonStr, &cj); err != nil {
		return nil, fmt.Errorf("failed to parse concept JSON: %w", err)
	}
	def := &Definition{Concept: f.ConceptFromJSON(cj)}
	for _, aj := range cj.Assignments {
		def.Assignments = append(def.Assignments, f.AssignmentFromJSON(aj))
	}
	return def, nil
}

// ParseAssignment parses a single JSON assignment.
func (f *ConceptFactory) ParseAssignment(jsonStr string) (billing.Assignment, error) {
	var aj AssignmentJSON
	if err := decodeStrict(jsonStr, &aj); err != nil {
		return billing.Assignment{}, fmt.Errorf("failed to parse assignment JSON: %w", err)
	}
	return f.AssignmentFromJSON(aj), nil
}

// ConceptFromJSON maps ConceptJSON onto a PaymentConcept. Nested
// assignments are ignored.
func (f *ConceptFactory) ConceptFromJSON(cj ConceptJSON) billing.PaymentConcept {
	c := billing.PaymentConcept{
		ID:               billing.ConceptID(cj.ID),
		CondominiumID:    billing.CondominiumID(cj.CondominiumID),
		Name:             cj.Name,
		Description:      cj.Description,
		Type:             billing.ConceptType(cj.ConceptType),
		CurrencyID:       cj.CurrencyID,
		IsRecurring:      cj.IsRecurring,
		RecurrencePeriod: billing.RecurrencePeriod(cj.RecurrencePeriod),
		IssueDay:         cj.IssueDay,
		DueDay:           cj.DueDay,
	}
	if cj.BuildingID != "" {
		b := billing.BuildingID(cj.BuildingID)
		c.BuildingID = &b
	}
	if cj.LateFee != nil {
		c.LateFee = billing.LateFeeRule{
			Type:      billing.AdjustmentKind(cj.LateFee.Type),
			Value:     cj.LateFee.Value,
			GraceDays: cj.LateFee.GraceDays,
		}
	}
	if cj.EarlyDiscount != nil {
		c.EarlyDiscount = billing.EarlyDiscountRule{
			Type:          billing.AdjustmentKind(cj.EarlyDiscount.Type),
			Value:         cj.EarlyDiscount.Value,
			DaysBeforeDue: cj.EarlyDiscount.DaysBeforeDue,
		}
	}
	return c
}

func (f *ConceptFactory) AssignmentFromJSON(aj AssignmentJSON) billing.Assignment {
	a := billing.Assignment{
		ConceptID:          billing.ConceptID(aj.ConceptID),
		Scope:              billing.Scope(aj.ScopeType),
		DistributionMethod: billing.DistributionMethod(aj.DistributionMethod),
		Amount:             aj.Amount,
	}
	if aj.BuildingID != "" {
		b := billing.BuildingID(aj.BuildingID)
		a.BuildingID = &b
	}
	if aj.UnitID != "" {
		u := billing.UnitID(aj.UnitID)
		a.UnitID = &u
	}
	return a
}

// ToJSON converts a concept back to its JSON form.
func (f *ConceptFactory) ToJSON(c billing.PaymentConcept) ConceptJSON {
	cj := ConceptJSON{
		ID:               string(c.ID),
		CondominiumID:    string(c.CondominiumID),
		Name:             c.Name,
		Description:      c.Description,
		ConceptType:      string(c.Type),
		CurrencyID:       c.CurrencyID,
		IsRecurring:      c.IsRecurring,
		RecurrencePeriod: string(c.RecurrencePeriod),
		IssueDay:         c.IssueDay,
		DueDay:           c.DueDay,
	}
	if c.BuildingID != nil {
		cj.BuildingID = string(*c.BuildingID)
	}
	if c.LateFee.Type != "" && c.LateFee.Type != billing.KindNone {
		cj.LateFee = &LateFeeJSON{Type: string(c.LateFee.Type), Value: c.LateFee.Value, GraceDays: c.LateFee.GraceDays}
	}
	if c.EarlyDiscount.Type != "" && c.EarlyDiscount.Type != billing.KindNone {
		cj.EarlyDiscount = &EarlyDiscountJSON{Type: string(c.EarlyDiscount.Type), Value: c.EarlyDiscount.Value, DaysBeforeDue: c.EarlyDiscount.DaysBeforeDue}
	}
	return cj
}

func decodeStrict(jsonStr string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
