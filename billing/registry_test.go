package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/condo-ledger/billing"
)

func TestCreateConcept_DefaultsAndActive(t *testing.T) {
	f := newFixture(t)

	c := f.concept(billing.PaymentConcept{Name: "  Fine  "})

	assert.Equal(t, billing.ConceptID("id-0001"), c.ID)
	assert.Equal(t, "Fine", c.Name)
	assert.Equal(t, billing.ConceptOrdinary, c.Type)
	assert.Equal(t, billing.KindNone, c.LateFee.Type)
	assert.Equal(t, billing.KindNone, c.EarlyDiscount.Type)
	assert.True(t, c.IsActive)
	assert.Equal(t, "admin", c.CreatedBy)
	assert.Equal(t, testNow, c.CreatedAt)

	got, err := f.engine.Registry.GetConcept(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
}

func TestCreateConcept_Validation(t *testing.T) {
	f := newFixture(t)

	valid := func() billing.PaymentConcept {
		return billing.PaymentConcept{
			Name:             "Maintenance",
			CondominiumID:    "condo-1",
			CurrencyID:       "USD",
			IsRecurring:      true,
			RecurrencePeriod: billing.RecurrenceMonthly,
			IssueDay:         1,
			DueDay:           10,
		}
	}
	tests := []struct {
		name   string
		mutate func(*billing.PaymentConcept)
	}{
		{"blank name", func(c *billing.PaymentConcept) { c.Name = " " }},
		{"no condominium", func(c *billing.PaymentConcept) { c.CondominiumID = "" }},
		{"no currency", func(c *billing.PaymentConcept) { c.CurrencyID = "" }},
		{"unknown type", func(c *billing.PaymentConcept) { c.Type = "tax" }},
		{"recurring without period", func(c *billing.PaymentConcept) { c.RecurrencePeriod = "" }},
		{"recurring without issue day", func(c *billing.PaymentConcept) { c.IssueDay = 0 }},
		{"recurring without due day", func(c *billing.PaymentConcept) { c.DueDay = 0 }},
		{"issue day 29", func(c *billing.PaymentConcept) { c.IssueDay = 29 }},
		{"due day negative", func(c *billing.PaymentConcept) { c.DueDay = -1 }},
		{"late fee without value", func(c *billing.PaymentConcept) {
			c.LateFee = billing.LateFeeRule{Type: billing.KindFixed}
		}},
		{"late fee above 100%", func(c *billing.PaymentConcept) {
			c.LateFee = billing.LateFeeRule{Type: billing.KindPercentage, Value: dec("100.01")}
		}},
		{"negative grace days", func(c *billing.PaymentConcept) {
			c.LateFee = billing.LateFeeRule{Type: billing.KindFixed, Value: dec("1"), GraceDays: -1}
		}},
		{"unknown discount type", func(c *billing.PaymentConcept) {
			c.EarlyDiscount = billing.EarlyDiscountRule{Type: "bonus", Value: dec("1")}
		}},
		{"negative days before due", func(c *billing.PaymentConcept) {
			c.EarlyDiscount = billing.EarlyDiscountRule{Type: billing.KindFixed, Value: dec("1"), DaysBeforeDue: -2}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			_, err := f.engine.Registry.CreateConcept(f.ctx, c, "admin")
			assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))

			var verr *billing.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	_, err := f.engine.Registry.CreateConcept(f.ctx, valid(), "admin")
	assert.NoError(t, err)
}

func TestDeactivateConcept_Idempotent(t *testing.T) {
	f := newFixture(t)
	c := f.concept(billing.PaymentConcept{Name: "Fine"})

	first, err := f.engine.Registry.DeactivateConcept(f.ctx, c.ID, "admin")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	second, err := f.engine.Registry.DeactivateConcept(f.ctx, c.ID, "admin")
	require.NoError(t, err)
	assert.False(t, second.IsActive)

	_, err = f.engine.Registry.DeactivateConcept(f.ctx, "nope", "admin")
	assert.Equal(t, billing.CodeNotFound, billing.CodeOf(err))
}

func TestAddAssignment_Rules(t *testing.T) {
	f := newFixture(t)
	c := f.concept(billing.PaymentConcept{Name: "Fine"})
	inactive := f.concept(billing.PaymentConcept{Name: "Old"})
	_, err := f.engine.Registry.DeactivateConcept(f.ctx, inactive.ID, "admin")
	require.NoError(t, err)

	building := billing.BuildingID("b-1")
	unit := billing.UnitID("u-1")
	empty := billing.BuildingID("")

	tests := []struct {
		name string
		a    billing.Assignment
		code billing.Code
	}{
		{"missing concept", billing.Assignment{ConceptID: "nope", Scope: billing.ScopeCondominium, DistributionMethod: billing.ByAliquot, Amount: dec("1")}, billing.CodeNotFound},
		{"inactive concept", billing.Assignment{ConceptID: inactive.ID, Scope: billing.ScopeCondominium, DistributionMethod: billing.ByAliquot, Amount: dec("1")}, billing.CodeBadRequest},
		{"unknown scope", billing.Assignment{ConceptID: c.ID, Scope: "floor", DistributionMethod: billing.ByAliquot, Amount: dec("1")}, billing.CodeBadRequest},
		{"unknown method", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeCondominium, DistributionMethod: "random", Amount: dec("1")}, billing.CodeBadRequest},
		{"building without id", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeBuilding, BuildingID: &empty, DistributionMethod: billing.ByAliquot, Amount: dec("1")}, billing.CodeBadRequest},
		{"unit without id", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeUnit, DistributionMethod: billing.FixedPerUnit, Amount: dec("1")}, billing.CodeBadRequest},
		{"unit by aliquot", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeUnit, UnitID: &unit, DistributionMethod: billing.ByAliquot, Amount: dec("1")}, billing.CodeBadRequest},
		{"zero amount", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeBuilding, BuildingID: &building, DistributionMethod: billing.EqualSplit, Amount: dec("0")}, billing.CodeBadRequest},
		{"negative amount", billing.Assignment{ConceptID: c.ID, Scope: billing.ScopeCondominium, DistributionMethod: billing.EqualSplit, Amount: dec("-5")}, billing.CodeBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Registry.AddAssignment(f.ctx, tc.a, "admin")
			assert.Equal(t, tc.code, billing.CodeOf(err))
		})
	}

	as, err := f.engine.Registry.ListAssignments(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, as)
}

func TestAddAssignment_DuplicateScopeConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.concept(billing.PaymentConcept{Name: "Fine"})

	first := f.condoWide(c.ID, billing.ByAliquot, "100")
	assert.Equal(t, billing.CondominiumID("condo-1"), first.CondominiumID, "inherits the concept's condominium")
	assert.True(t, first.IsActive)

	// Same scope identity with a different method is still a duplicate
	_, err := f.engine.Registry.AddAssignment(f.ctx, billing.Assignment{
		ConceptID: c.ID, Scope: billing.ScopeCondominium, DistributionMethod: billing.EqualSplit, Amount: dec("50"),
	}, "admin")
	assert.Equal(t, billing.CodeConflict, billing.CodeOf(err))
	assert.ErrorIs(t, err, billing.ErrDuplicateAssignment)

	// Different units are different identities
	f.unit("u-1", "b-1", "10")
	f.unit("u-2", "b-1", "10")
	f.unitOverride(c.ID, "u-1", "10")
	f.unitOverride(c.ID, "u-2", "10")
	_, err = f.engine.Registry.AddAssignment(f.ctx, billing.Assignment{
		ConceptID: c.ID, Scope: billing.ScopeUnit, UnitID: ptr(billing.UnitID("u-1")), DistributionMethod: billing.FixedPerUnit, Amount: dec("20"),
	}, "admin")
	assert.Equal(t, billing.CodeConflict, billing.CodeOf(err))

	as, err := f.engine.Registry.ListAssignments(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, as, 3)
}

func TestAddAssignment_ScopeMustBelongToCondominium(t *testing.T) {
	f := newFixture(t)
	concept := f.maintenance()
	f.condoWide(concept.ID, billing.ByAliquot, "100")

	// GIVEN: a unit and a building that live in another condominium
	require.NoError(t, f.store.SaveUnit(f.ctx, billing.Unit{
		ID: "u-901", CondominiumID: "condo-2", BuildingID: "b-9", Code: "901", Aliquot: dec("10"), IsActive: true,
	}))

	tests := []struct {
		name  string
		a     billing.Assignment
		field string
	}{
		{"unit of another condominium", billing.Assignment{ConceptID: concept.ID, Scope: billing.ScopeUnit, UnitID: ptr(billing.UnitID("u-901")), DistributionMethod: billing.FixedPerUnit, Amount: dec("75")}, "unit_id"},
		{"unknown unit", billing.Assignment{ConceptID: concept.ID, Scope: billing.ScopeUnit, UnitID: ptr(billing.UnitID("u-404")), DistributionMethod: billing.FixedPerUnit, Amount: dec("75")}, "unit_id"},
		{"building of another condominium", billing.Assignment{ConceptID: concept.ID, Scope: billing.ScopeBuilding, BuildingID: ptr(billing.BuildingID("b-9")), DistributionMethod: billing.EqualSplit, Amount: dec("30")}, "building_id"},
		{"condominium mismatch", billing.Assignment{ConceptID: concept.ID, Scope: billing.ScopeCondominium, CondominiumID: "condo-2", DistributionMethod: billing.EqualSplit, Amount: dec("30")}, "condominium_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Registry.AddAssignment(f.ctx, tc.a, "admin")
			assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))
			var verr *billing.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// Units and buildings of the concept's condominium are accepted
	f.unitOverride(concept.ID, "u-103", "75")
	f.assign(billing.Assignment{
		ConceptID: concept.ID, Scope: billing.ScopeBuilding, BuildingID: ptr(billing.BuildingID("b-1")), DistributionMethod: billing.EqualSplit, Amount: dec("40"),
	})

	// THEN: generation only bills the condominium's own units
	res, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.April, "admin")
	require.NoError(t, err)
	assert.Equal(t, 3, res.QuotasCreated)
	assert.Equal(t, []string{"20.00", "20.00", "75.00"}, amounts(res.Breakdown))
}

func TestRemoveAssignment_FreesScope(t *testing.T) {
	f := newFixture(t)
	c := f.concept(billing.PaymentConcept{Name: "Fine"})
	a := f.condoWide(c.ID, billing.ByAliquot, "100")

	require.NoError(t, f.engine.Registry.RemoveAssignment(f.ctx, a.ID))
	assert.Equal(t, billing.CodeNotFound, billing.CodeOf(f.engine.Registry.RemoveAssignment(f.ctx, a.ID)))

	// The scope can be assigned again
	f.condoWide(c.ID, billing.EqualSplit, "60")

	_, err := f.engine.Registry.ListAssignments(f.ctx, "nope")
	assert.Equal(t, billing.CodeNotFound, billing.CodeOf(err))
}

func TestRegisterUnit(t *testing.T) {
	f := newFixture(t)

	u, err := f.engine.Registry.RegisterUnit(f.ctx, billing.Unit{CondominiumID: "condo-1", Code: "A-1", Aliquot: dec("12.5"), IsActive: true})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = f.engine.Registry.RegisterUnit(f.ctx, billing.Unit{CondominiumID: "condo-1", Code: " "})
	assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))
	_, err = f.engine.Registry.RegisterUnit(f.ctx, billing.Unit{Code: "A-2"})
	assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))
	_, err = f.engine.Registry.RegisterUnit(f.ctx, billing.Unit{CondominiumID: "condo-1", Code: "A-3", Aliquot: dec("-1")})
	assert.Equal(t, billing.CodeBadRequest, billing.CodeOf(err))

	units, err := f.engine.Registry.ListUnits(f.ctx, "condo-1")
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func ptr[T any](v T) *T { return &v }
