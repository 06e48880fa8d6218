/*
assignment.go - Binding a concept to a scope with a distribution method

PURPOSE:
  An assignment says "charge this concept to this scope, split this way".
  Scope is one of:
  - condominium: every active unit of the condominium
  - building:    every active unit of one building
  - unit:        exactly one unit

AMOUNT SEMANTICS:
  The stored Amount means two different things depending on the method:
  - by_aliquot, equal_split: the total POOL to split across units
  - fixed_per_unit:          the PRICE charged to each unit

  Charge() exposes that as a tagged variant (Pool | PerUnit) so the
  distribution code cannot read a pool as a price or the other way round.

INVARIANTS:
  - A unit-scoped assignment always uses fixed_per_unit
  - At most one assignment per (concept, scope, scope identity); the store
    enforces it with a unique index and returns ErrDuplicateAssignment

SEE ALSO:
  - resolver.go: Turns assignments into a per-unit amount table
  - registry.go: AddAssignment validation
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type Scope string

const (
	ScopeCondominium Scope = "condominium"
	ScopeBuilding    Scope = "building"
	ScopeUnit        Scope = "unit"
)

func (s Scope) Valid() bool {
	return s == ScopeCondominium || s == ScopeBuilding || s == ScopeUnit
}

// precedence orders resolution: later scopes override earlier ones.
func (s Scope) precedence() int {
	switch s {
	case ScopeCondominium:
		return 0
	case ScopeBuilding:
		return 1
	case ScopeUnit:
		return 2
	}
	return -1
}

type DistributionMethod string

const (
	ByAliquot    DistributionMethod = "by_aliquot"
	EqualSplit   DistributionMethod = "equal_split"
	FixedPerUnit DistributionMethod = "fixed_per_unit"
)

func (m DistributionMethod) Valid() bool {
	return m == ByAliquot || m == EqualSplit || m == FixedPerUnit
}

type Assignment struct {
	ID                 AssignmentID
	ConceptID          ConceptID
	Scope              Scope
	CondominiumID      CondominiumID
	BuildingID         *BuildingID // set for building scope
	UnitID             *UnitID     // set for unit scope
	DistributionMethod DistributionMethod
	Amount             decimal.Decimal
	IsActive           bool
	CreatedBy          string
	CreatedAt          time.Time
}

// ScopeKey identifies the scope target; it is what the uniqueness rule is about.
func (a Assignment) ScopeKey() string {
	switch a.Scope {
	case ScopeBuilding:
		if a.BuildingID != nil {
			return string(*a.BuildingID)
		}
	case ScopeUnit:
		if a.UnitID != nil {
			return string(*a.UnitID)
		}
	case ScopeCondominium:
		return string(a.CondominiumID)
	}
	return ""
}

// Validate checks the scope/method combination and the amount.
func (a Assignment) Validate() *ValidationError {
	if !a.Scope.Valid() {
		return &ValidationError{Field: "scope_type", Message: "unknown scope " + string(a.Scope)}
	}
	if !a.DistributionMethod.Valid() {
		return &ValidationError{Field: "distribution_method", Message: "unknown method " + string(a.DistributionMethod)}
	}
	switch a.Scope {
	case ScopeBuilding:
		if a.BuildingID == nil || *a.BuildingID == "" {
			return &ValidationError{Field: "building_id", Message: "is required for building scope"}
		}
	case ScopeUnit:
		if a.UnitID == nil || *a.UnitID == "" {
			return &ValidationError{Field: "unit_id", Message: "is required for unit scope"}
		}
		if a.DistributionMethod != FixedPerUnit {
			return &ValidationError{Field: "distribution_method", Message: "unit scope requires fixed_per_unit"}
		}
	}
	if !a.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}

// =============================================================================
// CHARGE - Tagged view of Assignment.Amount
// =============================================================================

// Charge is either a Pool to split or a PerUnit price.
type Charge interface {
	isCharge()
	Value() decimal.Decimal
}

// Pool is a total split across the units in scope.
type Pool struct{ Total decimal.Decimal }

// PerUnit is a price charged in full to every unit in scope.
type PerUnit struct{ Price decimal.Decimal }

func (Pool) isCharge()                  {}
func (PerUnit) isCharge()               {}
func (p Pool) Value() decimal.Decimal    { return p.Total }
func (p PerUnit) Value() decimal.Decimal { return p.Price }

// Charge interprets Amount according to the distribution method.
func (a Assignment) Charge() Charge {
	if a.DistributionMethod == FixedPerUnit {
		return PerUnit{Price: a.Amount}
	}
	return Pool{Total: a.Amount}
}
