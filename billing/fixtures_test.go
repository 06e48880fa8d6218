package billing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/condo-ledger/billing"
	"github.com/warp/condo-ledger/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, 3, 20, 14, 30, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.TxMemory
	engine *billing.Engine
}

// newFixture returns an engine over a memory store with a fixed clock and
// sequential IDs, so quota order follows breakdown order.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewTxMemory()
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  mem,
		engine: newEngine(mem),
	}
}

func newEngine(s billing.TxStore) *billing.Engine {
	seq := 0
	return billing.NewEngine(s,
		billing.WithClock(func() time.Time { return testNow }),
		billing.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amounts(entries []billing.UnitAmount) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Amount.StringFixed(2)
	}
	return out
}

func (f *fixture) unit(id billing.UnitID, building billing.BuildingID, aliquot string) billing.Unit {
	f.t.Helper()
	u := billing.Unit{
		ID:            id,
		CondominiumID: "condo-1",
		BuildingID:    building,
		Code:          string(id),
		Aliquot:       dec(aliquot),
		IsActive:      true,
	}
	require.NoError(f.t, f.store.SaveUnit(f.ctx, u))
	return u
}

// maintenance seeds the three-unit condominium used across tests:
// aliquots 50/30/20 and a recurring concept issued on the 1st, due the 10th.
func (f *fixture) maintenance() *billing.PaymentConcept {
	f.t.Helper()
	f.unit("u-101", "b-1", "50")
	f.unit("u-102", "b-1", "30")
	f.unit("u-103", "b-2", "20")
	return f.concept(billing.PaymentConcept{
		Name:             "Maintenance",
		Type:             billing.ConceptMaintenance,
		IsRecurring:      true,
		RecurrencePeriod: billing.RecurrenceMonthly,
		IssueDay:         1,
		DueDay:           10,
	})
}

func (f *fixture) concept(c billing.PaymentConcept) *billing.PaymentConcept {
	f.t.Helper()
	if c.CondominiumID == "" {
		c.CondominiumID = "condo-1"
	}
	if c.CurrencyID == "" {
		c.CurrencyID = "USD"
	}
	created, err := f.engine.Registry.CreateConcept(f.ctx, c, "admin")
	require.NoError(f.t, err)
	return created
}

func (f *fixture) assign(a billing.Assignment) *billing.Assignment {
	f.t.Helper()
	created, err := f.engine.Registry.AddAssignment(f.ctx, a, "admin")
	require.NoError(f.t, err)
	return created
}

func (f *fixture) condoWide(conceptID billing.ConceptID, method billing.DistributionMethod, amount string) *billing.Assignment {
	return f.assign(billing.Assignment{
		ConceptID:          conceptID,
		Scope:              billing.ScopeCondominium,
		DistributionMethod: method,
		Amount:             dec(amount),
	})
}

func (f *fixture) unitOverride(conceptID billing.ConceptID, unitID billing.UnitID, amount string) *billing.Assignment {
	return f.assign(billing.Assignment{
		ConceptID:          conceptID,
		Scope:              billing.ScopeUnit,
		UnitID:             &unitID,
		DistributionMethod: billing.FixedPerUnit,
		Amount:             dec(amount),
	})
}

func (f *fixture) quotasByUnit(conceptID billing.ConceptID, year int, month time.Month) map[billing.UnitID]billing.Quota {
	f.t.Helper()
	quotas, err := f.store.ListQuotas(f.ctx, conceptID, billing.NewPeriod(year, month))
	require.NoError(f.t, err)
	out := make(map[billing.UnitID]billing.Quota, len(quotas))
	for _, q := range quotas {
		out[q.UnitID] = q
	}
	return out
}

// pay records a completed payment applied to the given quotas, updating
// each quota the way the forward application flow would.
func (f *fixture) pay(id billing.PaymentID, applied map[billing.QuotaID]string) billing.Payment {
	f.t.Helper()
	total := decimal.Zero
	i := 0
	for quotaID, amount := range applied {
		i++
		amt := dec(amount)
		total = total.Add(amt)

		q, err := f.store.GetQuota(f.ctx, quotaID)
		require.NoError(f.t, err)
		require.NotNil(f.t, q)
		q.PaidAmount = q.PaidAmount.Add(amt)
		q.Balance = q.Owed().Sub(q.PaidAmount)
		if !q.Balance.IsPositive() {
			q.Status = billing.QuotaPaid
		}
		require.NoError(f.t, f.store.UpdateQuota(f.ctx, *q))
		require.NoError(f.t, f.store.SaveApplication(f.ctx, billing.PaymentApplication{
			ID:            billing.ApplicationID(fmt.Sprintf("%s-app-%d", id, i)),
			PaymentID:     id,
			QuotaID:       quotaID,
			AppliedAmount: amt,
			AppliedAt:     testNow,
		}))
	}
	p := billing.Payment{
		ID:          id,
		UnitID:      "u-101",
		Amount:      total,
		CurrencyID:  "USD",
		Status:      billing.PaymentCompleted,
		PaymentDate: billing.Date(2025, time.March, 5),
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	require.NoError(f.t, f.store.SavePayment(f.ctx, p))
	return p
}
