/*
generator.go - Charge generation for one concept and one billing period

PURPOSE:
  Turns the resolved per-unit table of a concept into a batch of quotas for
  a (year, month), with computed issue and due dates.

STEPS:
  1. Load the concept (NOT_FOUND), reject inactive concepts (BAD_REQUEST)
  2. Fast idempotency check: quotas already exist => CONFLICT
  3. Load assignments (none => BAD_REQUEST) and resolve them
     (empty table => BAD_REQUEST)
  4. Issue date = (year, month, issueDay); due date in the same month when
     dueDay >= issueDay, otherwise the next month
  5. In ONE transaction: insert the charge run, then every quota

IDEMPOTENCY:
  Step 2 is a read-then-write check, so two concurrent callers can both pass
  it. The charge_runs unique index on (concept, year, month) lets exactly one
  of them commit; the loser's ErrPeriodAlreadyGenerated becomes CONFLICT and
  its whole batch rolls back.

SEE ALSO:
  - resolver.go: Resolve
  - time.go: IssueDate, DueDate
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ChargeGenerator struct {
	deps
}

// GenerationResult summarizes a generation (or a preview of one).
type GenerationResult struct {
	RunID         string
	ConceptID     ConceptID
	Period        Period
	QuotasCreated int
	TotalAmount   decimal.Decimal
	IssueDate     time.Time
	DueDate       time.Time
	Breakdown     []UnitAmount
}

// Generate creates the quotas of a concept for one period.
func (g *ChargeGenerator) Generate(ctx context.Context, conceptID ConceptID, year int, month time.Month, actor string) (_ *GenerationResult, err error) {
	const op = "generate_charges"
	defer g.observe(op, time.Now(), &err)

	period := NewPeriod(year, month)
	if verr := period.Validate(); verr != nil {
		return nil, badRequest(op, verr, "invalid period: %v", verr)
	}

	concept, err := g.activeConcept(ctx, op, conceptID)
	if err != nil {
		return nil, err
	}

	exists, err := g.store.QuotasExist(ctx, conceptID, period)
	if err != nil {
		return nil, internal(op, err)
	}
	if exists {
		g.log.Debug("generation rejected, period already generated",
			zap.String("concept_id", string(conceptID)), zap.Stringer("period", period))
		return nil, conflict(op, ErrPeriodAlreadyGenerated, "charges already generated for %s", period)
	}

	result, err := g.plan(ctx, op, concept, period)
	if err != nil {
		return nil, err
	}

	now := g.now()
	result.RunID = g.newID()
	run := ChargeRun{
		ID:            result.RunID,
		ConceptID:     conceptID,
		PeriodYear:    period.Year,
		PeriodMonth:   period.Month,
		QuotasCreated: len(result.Breakdown),
		TotalAmount:   result.TotalAmount,
		IssueDate:     result.IssueDate,
		DueDate:       result.DueDate,
		CreatedBy:     actor,
		CreatedAt:     now,
	}

	quotas := make([]Quota, 0, len(result.Breakdown))
	for _, ua := range result.Breakdown {
		quotas = append(quotas, Quota{
			ID:             QuotaID(g.newID()),
			UnitID:         ua.UnitID,
			ConceptID:      conceptID,
			PeriodYear:     period.Year,
			PeriodMonth:    period.Month,
			BaseAmount:     ua.Amount,
			InterestAmount: decimal.Zero,
			PaidAmount:     decimal.Zero,
			Balance:        ua.Amount,
			Status:         QuotaPending,
			IssueDate:      result.IssueDate,
			DueDate:        result.DueDate,
			CurrencyID:     concept.CurrencyID,
			CreatedBy:      actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	err = g.store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertChargeRun(ctx, run); err != nil {
			return err
		}
		return tx.InsertQuotas(ctx, quotas)
	})
	if err != nil {
		coded := fromStore(op, err)
		if coded.Code == CodeInternal {
			g.log.Error("quota batch insert failed", zap.String("concept_id", string(conceptID)),
				zap.Stringer("period", period), zap.Error(err))
		}
		return nil, coded
	}

	result.QuotasCreated = len(quotas)
	g.metrics.QuotasGenerated(len(quotas))
	g.log.Info("charges generated",
		zap.String("concept_id", string(conceptID)),
		zap.Stringer("period", period),
		zap.Int("quotas", len(quotas)),
		zap.String("total", formatMoney(result.TotalAmount)),
		zap.String("actor", actor),
	)
	return result, nil
}

// Preview resolves what Generate would create, without writing anything.
// It does not check whether the period was already generated.
func (g *ChargeGenerator) Preview(ctx context.Context, conceptID ConceptID, year int, month time.Month) (_ *GenerationResult, err error) {
	const op = "preview_charges"
	defer g.observe(op, time.Now(), &err)

	period := NewPeriod(year, month)
	if verr := period.Validate(); verr != nil {
		return nil, badRequest(op, verr, "invalid period: %v", verr)
	}
	concept, err := g.activeConcept(ctx, op, conceptID)
	if err != nil {
		return nil, err
	}
	result, err := g.plan(ctx, op, concept, period)
	if err != nil {
		return nil, err
	}
	result.QuotasCreated = len(result.Breakdown)
	return result, nil
}

// Run returns the charge run recorded for a period, if any.
func (g *ChargeGenerator) Run(ctx context.Context, conceptID ConceptID, year int, month time.Month) (*ChargeRun, error) {
	const op = "get_charge_run"
	run, err := g.store.GetChargeRun(ctx, conceptID, NewPeriod(year, month))
	if err != nil {
		return nil, internal(op, err)
	}
	if run == nil {
		return nil, notFound(op, "no charges generated for concept %s in %s", conceptID, NewPeriod(year, month))
	}
	return run, nil
}

// Quotas lists the quotas of a concept for one period.
func (g *ChargeGenerator) Quotas(ctx context.Context, conceptID ConceptID, year int, month time.Month) ([]Quota, error) {
	const op = "list_quotas"
	period := NewPeriod(year, month)
	if verr := period.Validate(); verr != nil {
		return nil, badRequest(op, verr, "invalid period: %v", verr)
	}
	quotas, err := g.store.ListQuotas(ctx, conceptID, period)
	if err != nil {
		return nil, internal(op, err)
	}
	return quotas, nil
}

func (g *ChargeGenerator) activeConcept(ctx context.Context, op string, id ConceptID) (*PaymentConcept, error) {
	concept, err := g.store.GetConcept(ctx, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if concept == nil {
		return nil, notFound(op, "concept %s not found", id)
	}
	if !concept.IsActive {
		return nil, badRequest(op, nil, "concept %s is inactive", id)
	}
	return concept, nil
}

func (g *ChargeGenerator) plan(ctx context.Context, op string, concept *PaymentConcept, period Period) (*GenerationResult, error) {
	assignments, err := g.store.ListAssignments(ctx, concept.ID)
	if err != nil {
		return nil, internal(op, err)
	}
	if len(assignments) == 0 {
		return nil, badRequest(op, nil, "concept %s has no assignments", concept.ID)
	}

	units, err := g.store.ListUnits(ctx, concept.CondominiumID)
	if err != nil {
		return nil, internal(op, err)
	}

	resolution := Resolve(assignments, NewUnitSet(units))
	if resolution.Len() == 0 {
		return nil, badRequest(op, nil, "assignments of concept %s resolve to no units", concept.ID)
	}

	issueDay, dueDay := concept.Schedule()
	return &GenerationResult{
		ConceptID:   concept.ID,
		Period:      period,
		TotalAmount: resolution.Total(),
		IssueDate:   IssueDate(period, issueDay),
		DueDate:     DueDate(period, issueDay, dueDay),
		Breakdown:   resolution.Entries(),
	}, nil
}
