/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	condominium: three units with aliquots 50/30/20, a monthly maintenance
	concept, and the current period generated. Each scenario demonstrates
	one feature of the engine.

AVAILABLE SCENARIOS:

	maintenance:    Condominium-wide 1000 split by aliquot
	unit-override:  Same, with a fixed 75 for unit 103 overriding its share
	refund:         Maintenance plus a completed payment ready to refund

HOW SCENARIOS WORK:
 1. Register units (upsert, so reloading is safe)
 2. Create the concept and its assignments from a JSON definition
 3. Generate the current period
 4. Optionally record a payment the way the payment processor would

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "refund"}

NOTE:

	Each load creates a new concept. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Engine endpoints used to explore the result
  - factory/concept.go: Concept JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/condo-ledger/billing"
	"github.com/warp/condo-ledger/ids"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const demoCondominium = "condo-demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "maintenance",
		Name:        "Monthly Maintenance",
		Description: "1000 split by aliquot across three units (50/30/20)",
	},
	{
		ID:          "unit-override",
		Name:        "Unit Override",
		Description: "Maintenance with a fixed 75 for unit 103 instead of its aliquot share",
	},
	{
		ID:          "refund",
		Name:        "Payment Refund",
		Description: "Maintenance with a completed payment covering unit 101 and part of unit 102",
	},
}

var demoUnits = []billing.Unit{
	{ID: "u-101", CondominiumID: demoCondominium, BuildingID: "b-1", Code: "101", Aliquot: decimal.NewFromInt(50), IsActive: true},
	{ID: "u-102", CondominiumID: demoCondominium, BuildingID: "b-1", Code: "102", Aliquot: decimal.NewFromInt(30), IsActive: true},
	{ID: "u-103", CondominiumID: demoCondominium, BuildingID: "b-2", Code: "103", Aliquot: decimal.NewFromInt(20), IsActive: true},
}

const maintenanceConcept = `{
  "condominium_id": "condo-demo",
  "name": "Maintenance",
  "description": "Monthly building maintenance",
  "concept_type": "maintenance",
  "currency_id": "USD",
  "is_recurring": true,
  "recurrence_period": "monthly",
  "issue_day": 1,
  "due_day": 10,
  "late_fee": {"type": "percentage", "value": "5", "grace_days": 3},
  "early_discount": {"type": "percentage", "value": "2", "days_before_due": 5},
  "assignments": [
    {"scope_type": "condominium", "distribution_method": "by_aliquot", "amount": "1000"}
  ]
}`

const unitOverrideAssignment = `{"scope_type": "unit", "unit_id": "u-103", "distribution_method": "fixed_per_unit", "amount": "75"}`

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		resp *LoadScenarioResponse
		err  error
	)
	ctx := r.Context()
	switch req.ScenarioID {
	case "maintenance":
		resp, err = h.loadMaintenance(ctx, false)
	case "unit-override":
		resp, err = h.loadMaintenance(ctx, true)
	case "refund":
		resp, err = h.loadRefund(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	resp.ScenarioID = req.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.String("concept_id", resp.ConceptID))
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMaintenance(ctx context.Context, withOverride bool) (*LoadScenarioResponse, error) {
	const actor = "scenario"

	for _, u := range demoUnits {
		if _, err := h.Engine.Registry.RegisterUnit(ctx, u); err != nil {
			return nil, err
		}
	}

	def, err := h.Factory.ParseDefinition(maintenanceConcept)
	if err != nil {
		return nil, err
	}
	concept, err := h.Engine.Registry.CreateConcept(ctx, def.Concept, actor)
	if err != nil {
		return nil, err
	}
	assignments := def.AssignmentsFor(concept.ID)
	if withOverride {
		a, err := h.Factory.ParseAssignment(unitOverrideAssignment)
		if err != nil {
			return nil, err
		}
		a.ConceptID = concept.ID
		assignments = append(assignments, a)
	}
	for _, a := range assignments {
		if _, err := h.Engine.Registry.AddAssignment(ctx, a, actor); err != nil {
			return nil, err
		}
	}

	now := h.now()
	result, err := h.Engine.Generator.Generate(ctx, concept.ID, now.Year(), now.Month(), actor)
	if err != nil {
		return nil, err
	}
	quotas, err := h.Engine.Generator.Quotas(ctx, concept.ID, now.Year(), now.Month())
	if err != nil {
		return nil, err
	}

	resp := &LoadScenarioResponse{ConceptID: string(concept.ID), Period: result.Period.String()}
	for _, q := range quotas {
		resp.QuotaIDs = append(resp.QuotaIDs, string(q.ID))
	}
	return resp, nil
}

// loadRefund records a payment of 600: 500 settles unit 101, 100 goes to
// unit 102. The writes mirror what the payment processor does when it
// applies a payment.
func (h *Handler) loadRefund(ctx context.Context) (*LoadScenarioResponse, error) {
	resp, err := h.loadMaintenance(ctx, false)
	if err != nil {
		return nil, err
	}

	now := h.now()
	paymentID := billing.PaymentID(ids.New())
	applied := map[billing.UnitID]decimal.Decimal{
		"u-101": decimal.NewFromInt(500),
		"u-102": decimal.NewFromInt(100),
	}

	err = h.Store.WithTx(ctx, func(tx billing.Store) error {
		quotas, err := tx.ListQuotas(ctx, billing.ConceptID(resp.ConceptID), billing.NewPeriod(now.Year(), now.Month()))
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, q := range quotas {
			total = total.Add(applied[q.UnitID])
		}
		if err := tx.SavePayment(ctx, billing.Payment{
			ID:          paymentID,
			UnitID:      "u-101",
			Amount:      total,
			CurrencyID:  "USD",
			Status:      billing.PaymentCompleted,
			PaymentDate: billing.DateOf(now),
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		for _, q := range quotas {
			amount, ok := applied[q.UnitID]
			if !ok {
				continue
			}
			q.PaidAmount = q.PaidAmount.Add(amount)
			q.Balance = q.Owed().Sub(q.PaidAmount)
			if !q.Balance.IsPositive() {
				q.Status = billing.QuotaPaid
			}
			q.UpdatedAt = now
			if err := tx.UpdateQuota(ctx, q); err != nil {
				return err
			}
			if err := tx.SaveApplication(ctx, billing.PaymentApplication{
				ID:            billing.ApplicationID(ids.New()),
				PaymentID:     paymentID,
				QuotaID:       q.ID,
				AppliedAmount: amount,
				AppliedAt:     now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.PaymentIDs = []string{string(paymentID)}
	return resp, nil
}
