/*
resolver.go - Assignment resolution and distribution rules

PURPOSE:
  Converts every assignment of a concept into ONE amount per unit.

RESOLUTION ORDER (later steps override earlier ones for the same unit):
  1. Condominium-wide assignments, distributed over all active units
  2. Building-wide assignments, distributed over the building's active units
  3. Unit-specific assignments, set directly to the assignment amount

  The order is by scope, never by creation time: a unit assignment added
  before the condominium-wide one still wins.

DISTRIBUTION RULES:
  by_aliquot:     units with a positive aliquot share the pool by weight
  equal_split:    every active unit gets pool / n
  fixed_per_unit: every active unit gets the full price

  For the two pool methods every unit but the last gets round2(share); the
  last unit gets round2(total - distributed). The sum is exact to the cent.

EXAMPLE:
  Pool 100 over aliquots 50/30/20 => 50.00, 30.00, 20.00
  Pool 100 split equally over 3   => 33.33, 33.33, 33.34

SEE ALSO:
  - assignment.go: Charge variant
  - generator.go: Consumes Resolution
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNITS - Read model supplied by the data-access layer
// =============================================================================

type Unit struct {
	ID            UnitID
	CondominiumID CondominiumID
	BuildingID    BuildingID
	Code          string
	Aliquot       decimal.Decimal // ownership percentage
	IsActive      bool
}

// UnitSet groups the active units of a condominium by scope.
type UnitSet struct {
	Condominium []Unit
	Buildings   map[BuildingID][]Unit
}

// NewUnitSet keeps active units only and preserves input order.
func NewUnitSet(units []Unit) UnitSet {
	set := UnitSet{Buildings: make(map[BuildingID][]Unit)}
	for _, u := range units {
		if !u.IsActive {
			continue
		}
		set.Condominium = append(set.Condominium, u)
		if u.BuildingID != "" {
			set.Buildings[u.BuildingID] = append(set.Buildings[u.BuildingID], u)
		}
	}
	return set
}

// =============================================================================
// RESOLUTION - Ordered unit -> amount table
// =============================================================================

type UnitAmount struct {
	UnitID UnitID
	Amount decimal.Decimal
}

type Resolution struct {
	order   []UnitID
	amounts map[UnitID]decimal.Decimal
}

func newResolution() *Resolution {
	return &Resolution{amounts: make(map[UnitID]decimal.Decimal)}
}

func (r *Resolution) set(id UnitID, amount decimal.Decimal) {
	if _, ok := r.amounts[id]; !ok {
		r.order = append(r.order, id)
	}
	r.amounts[id] = amount
}

func (r *Resolution) Len() int { return len(r.order) }

func (r *Resolution) Amount(id UnitID) (decimal.Decimal, bool) {
	amt, ok := r.amounts[id]
	return amt, ok
}

// Entries returns the table in first-resolved order.
func (r *Resolution) Entries() []UnitAmount {
	out := make([]UnitAmount, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, UnitAmount{UnitID: id, Amount: r.amounts[id]})
	}
	return out
}

func (r *Resolution) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range r.amounts {
		total = total.Add(amt)
	}
	return total
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolve applies condominium, building, then unit assignments. Inactive
// assignments are skipped.
func Resolve(assignments []Assignment, units UnitSet) *Resolution {
	ordered := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IsActive {
			ordered = append(ordered, a)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scope.precedence() < ordered[j].Scope.precedence()
	})

	res := newResolution()
	for _, a := range ordered {
		switch a.Scope {
		case ScopeCondominium:
			for _, ua := range Distribute(a, units.Condominium) {
				res.set(ua.UnitID, ua.Amount)
			}
		case ScopeBuilding:
			if a.BuildingID == nil {
				continue
			}
			for _, ua := range Distribute(a, units.Buildings[*a.BuildingID]) {
				res.set(ua.UnitID, ua.Amount)
			}
		case ScopeUnit:
			if a.UnitID == nil {
				continue
			}
			res.set(*a.UnitID, a.Amount)
		}
	}
	return res
}

// Distribute spreads one assignment's charge over units.
func Distribute(a Assignment, units []Unit) []UnitAmount {
	switch c := a.Charge().(type) {
	case PerUnit:
		out := make([]UnitAmount, 0, len(units))
		for _, u := range units {
			out = append(out, UnitAmount{UnitID: u.ID, Amount: c.Price})
		}
		return out
	case Pool:
		if a.DistributionMethod == ByAliquot {
			return splitByAliquot(c.Total, units)
		}
		return splitEqually(c.Total, units)
	}
	return nil
}

func splitByAliquot(total decimal.Decimal, units []Unit) []UnitAmount {
	var (
		weighted     []Unit
		totalAliquot = decimal.Zero
	)
	for _, u := range units {
		if u.Aliquot.IsPositive() {
			weighted = append(weighted, u)
			totalAliquot = totalAliquot.Add(u.Aliquot)
		}
	}
	if len(weighted) == 0 {
		return nil
	}
	return allocate(total, weighted, func(u Unit) decimal.Decimal {
		return total.Mul(u.Aliquot).Div(totalAliquot)
	})
}

func splitEqually(total decimal.Decimal, units []Unit) []UnitAmount {
	if len(units) == 0 {
		return nil
	}
	perUnit := total.Div(decimal.NewFromInt(int64(len(units))))
	return allocate(total, units, func(Unit) decimal.Decimal { return perUnit })
}

// allocate gives each unit round2(share) and the last unit the exact remainder.
func allocate(total decimal.Decimal, units []Unit, share func(Unit) decimal.Decimal) []UnitAmount {
	out := make([]UnitAmount, 0, len(units))
	distributed := decimal.Zero
	for i, u := range units {
		var amt decimal.Decimal
		if i == len(units)-1 {
			amt = Round2(total.Sub(distributed))
		} else {
			amt = Round2(share(u))
			distributed = distributed.Add(amt)
		}
		out = append(out, UnitAmount{UnitID: u.ID, Amount: amt})
	}
	return out
}
