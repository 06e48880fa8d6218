package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/condo-ledger/billing"
	"github.com/warp/condo-ledger/billing/store"
)

func TestGenerate_MaintenanceEndToEnd(t *testing.T) {
	f := newFixture(t)

	// GIVEN: "Maintenance" assigned condominium-wide by aliquot, amount 100
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")

	// WHEN: charges are generated for March
	result, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")

	// THEN: quotas follow the aliquots 50/30/20
	require.NoError(t, err)
	assert.Equal(t, 3, result.QuotasCreated)
	assert.Equal(t, "100.00", result.TotalAmount.StringFixed(2))
	assert.Equal(t, billing.Date(2025, time.March, 1), result.IssueDate)
	assert.Equal(t, billing.Date(2025, time.March, 10), result.DueDate)
	assert.Equal(t, []string{"50.00", "30.00", "20.00"}, amounts(result.Breakdown))

	march := f.quotasByUnit(concept.ID, 2025, time.March)
	require.Len(t, march, 3)
	for _, q := range march {
		assert.Equal(t, billing.QuotaPending, q.Status)
		assert.True(t, q.Balance.Equal(q.BaseAmount))
		assert.True(t, q.InterestAmount.IsZero())
		assert.True(t, q.PaidAmount.IsZero())
		assert.Equal(t, "USD", q.CurrencyID)
		assert.Equal(t, "admin", q.CreatedBy)
		assert.NoError(t, q.CheckBalance())
	}

	// WHEN: a unit-specific 75 is added for u-103 and April is generated
	f.unitOverride(concept.ID, "u-103", "75")
	_, err = f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.April, "admin")
	require.NoError(t, err)

	// THEN: only April reflects the override
	april := f.quotasByUnit(concept.ID, 2025, time.April)
	assert.Equal(t, "50.00", april["u-101"].BaseAmount.StringFixed(2))
	assert.Equal(t, "30.00", april["u-102"].BaseAmount.StringFixed(2))
	assert.Equal(t, "75.00", april["u-103"].BaseAmount.StringFixed(2))

	march = f.quotasByUnit(concept.ID, 2025, time.March)
	assert.Equal(t, "20.00", march["u-103"].BaseAmount.StringFixed(2))
}

func TestGenerate_SecondCallConflictsAndWritesNothing(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.EqualSplit, "90")

	_, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	require.NoError(t, err)

	_, err = f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	assert.Equal(t, billing.CodeConflict, billing.CodeOf(err))
	assert.ErrorIs(t, err, billing.ErrPeriodAlreadyGenerated)
	assert.Len(t, f.quotasByUnit(concept.ID, 2025, time.March), 3)
}

// racingStore hides existing quotas from the pre-read, the way a concurrent
// caller that has not committed yet would.
type racingStore struct {
	*store.TxMemory
}

func (racingStore) QuotasExist(context.Context, billing.ConceptID, billing.Period) (bool, error) {
	return false, nil
}

func TestGenerate_StorageConstraintIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")
	_, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	require.NoError(t, err)

	// GIVEN: a pre-read that misses the existing run
	racer := newEngine(racingStore{f.store})

	// WHEN: generation runs again
	_, err = racer.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")

	// THEN: the unique constraint turns it into CONFLICT with no extra rows
	assert.Equal(t, billing.CodeConflict, billing.CodeOf(err))
	assert.Len(t, f.quotasByUnit(concept.ID, 2025, time.March), 3)
}

func TestGenerate_ConcurrentCallersCreateOneBatch(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")
	engine := billing.NewEngine(f.store)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Generator.Generate(f.ctx, concept.ID, 2025, time.May, "admin")
			mu.Lock()
			defer mu.Unlock()
			switch billing.CodeOf(err) {
			case "":
				succeeded++
			case billing.CodeConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, f.quotasByUnit(concept.ID, 2025, time.May), 3)
}

func TestGenerate_Rejections(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	empty := f.concept(billing.PaymentConcept{Name: "Fine"})

	tests := []struct {
		name    string
		concept billing.ConceptID
		year    int
		month   time.Month
		code    billing.Code
	}{
		{"missing concept", "nope", 2025, time.March, billing.CodeNotFound},
		{"no assignments", empty.ID, 2025, time.March, billing.CodeBadRequest},
		{"month 0", concept.ID, 2025, 0, billing.CodeBadRequest},
		{"month 13", concept.ID, 2025, 13, billing.CodeBadRequest},
		{"year too small", concept.ID, 1999, time.March, billing.CodeBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Generator.Generate(f.ctx, tc.concept, tc.year, tc.month, "admin")
			assert.Equal(t, tc.code, billing.CodeOf(err))
		})
	}
}

func TestGenerate_InactiveConcept(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")
	_, err := f.engine.Registry.DeactivateConcept(f.ctx, concept.ID, "admin")
	require.NoError(t, err)

	_, err = f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))
}

func TestGenerate_EmptyResolution(t *testing.T) {
	f := newFixture(t)
	f.unit("u-1", "b-1", "0")
	f.unit("u-2", "b-1", "0")
	concept := f.concept(billing.PaymentConcept{Name: "Reserve"})
	f.condoWide(concept.ID, billing.ByAliquot, "100")

	_, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")

	assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))
	assert.Empty(t, f.quotasByUnit(concept.ID, 2025, time.March))
}

func TestGenerate_DueDateRollsIntoNextYear(t *testing.T) {
	f := newFixture(t)
	f.unit("u-1", "", "100")
	concept := f.concept(billing.PaymentConcept{
		Name:             "Fee",
		IsRecurring:      true,
		RecurrencePeriod: billing.RecurrenceMonthly,
		IssueDay:         25,
		DueDay:           5,
	})
	f.condoWide(concept.ID, billing.FixedPerUnit, "10")

	result, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.December, "admin")
	require.NoError(t, err)
	assert.Equal(t, billing.Date(2025, time.December, 25), result.IssueDate)
	assert.Equal(t, billing.Date(2026, time.January, 5), result.DueDate)
}

func TestGenerate_OneOffConceptUsesDefaultSchedule(t *testing.T) {
	f := newFixture(t)
	f.unit("u-1", "", "100")
	concept := f.concept(billing.PaymentConcept{Name: "Roof repair", Type: billing.ConceptExtraordinary})
	f.condoWide(concept.ID, billing.EqualSplit, "500")

	result, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.February, "admin")
	require.NoError(t, err)
	assert.Equal(t, billing.Date(2025, time.February, 1), result.IssueDate)
	assert.Equal(t, billing.Date(2025, time.February, 28), result.DueDate)
}

// failingQuotaStore accepts the charge run and then fails the quota batch.
type failingQuotaStore struct {
	*store.TxMemory
}

func (s failingQuotaStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return s.TxMemory.WithTx(ctx, func(tx billing.Store) error {
		return fn(failingQuotaTx{tx})
	})
}

type failingQuotaTx struct {
	billing.Store
}

func (failingQuotaTx) InsertQuotas(context.Context, []billing.Quota) error {
	return errors.New("disk full")
}

func TestGenerate_BatchFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")

	_, err := newEngine(failingQuotaStore{f.store}).Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	assert.Equal(t, billing.CodeInternal, billing.CodeOf(err))

	run, err := f.store.GetChargeRun(f.ctx, concept.ID, billing.NewPeriod(2025, time.March))
	require.NoError(t, err)
	assert.Nil(t, run, "charge run must roll back with the quotas")

	// The period is still free
	_, err = f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	assert.NoError(t, err)
}

func TestPreview_WritesNothing(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.EqualSplit, "100")

	preview, err := f.engine.Generator.Preview(f.ctx, concept.ID, 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.QuotasCreated)
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts(preview.Breakdown))
	assert.Empty(t, f.quotasByUnit(concept.ID, 2025, time.March))

	_, err = f.engine.Generator.Run(f.ctx, concept.ID, 2025, time.March)
	assert.Equal(t, billing.CodeNotFound, billing.CodeOf(err))
}

func TestRun_RecordedAfterGeneration(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")

	result, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	require.NoError(t, err)

	run, err := f.engine.Generator.Run(f.ctx, concept.ID, 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, 3, run.QuotasCreated)
	assert.Equal(t, "100.00", run.TotalAmount.StringFixed(2))

	quotas, err := f.engine.Generator.Quotas(f.ctx, concept.ID, 2025, time.March)
	require.NoError(t, err)
	assert.Len(t, quotas, 3)
}
