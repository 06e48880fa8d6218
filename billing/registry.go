/*
registry.go - Concept and assignment management

PURPOSE:
  Creates and deactivates payment concepts and binds them to scopes through
  assignments. Everything the generator later reads goes through here.

ASSIGNMENT RULES:
  - The concept must exist (NOT_FOUND) and be active (BAD_REQUEST)
  - Scope and distribution method must be known
  - Unit scope only accepts fixed_per_unit
  - Building scope needs a building ID, unit scope needs a unit ID
  - Amount must be positive
  - One assignment per (concept, scope, scope identity): CONFLICT otherwise

UNITS:
  Units are owned by the condominium data-access layer. RegisterUnit exists
  so fixtures and the demo scenarios can seed them through the same store.

SEE ALSO:
  - concept.go, assignment.go: Validate
  - generator.go: Consumes concepts and assignments
*/
package billing

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Registry struct {
	deps
}

// CreateConcept validates and stores a new active concept.
func (r *Registry) CreateConcept(ctx context.Context, c PaymentConcept, actor string) (_ *PaymentConcept, err error) {
	const op = "create_concept"
	defer r.observe(op, time.Now(), &err)

	c.normalize()
	if verr := c.Validate(); verr != nil {
		return nil, badRequest(op, verr, "invalid concept: %v", verr)
	}

	now := r.now()
	if c.ID == "" {
		c.ID = ConceptID(r.newID())
	}
	c.IsActive = true
	c.CreatedBy = actor
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := r.store.SaveConcept(ctx, c); err != nil {
		r.log.Error("save concept failed", zap.String("concept_id", string(c.ID)), zap.Error(err))
		return nil, internal(op, err)
	}
	r.log.Info("concept created",
		zap.String("concept_id", string(c.ID)),
		zap.String("condominium_id", string(c.CondominiumID)),
		zap.String("name", c.Name),
		zap.Bool("recurring", c.IsRecurring),
	)
	return &c, nil
}

func (r *Registry) GetConcept(ctx context.Context, id ConceptID) (*PaymentConcept, error) {
	const op = "get_concept"
	c, err := r.store.GetConcept(ctx, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if c == nil {
		return nil, notFound(op, "concept %s not found", id)
	}
	return c, nil
}

func (r *Registry) ListConcepts(ctx context.Context, condominiumID CondominiumID) ([]PaymentConcept, error) {
	concepts, err := r.store.ListConcepts(ctx, condominiumID)
	if err != nil {
		return nil, internal("list_concepts", err)
	}
	return concepts, nil
}

// DeactivateConcept stops a concept from being assigned or generated.
// Deactivating an inactive concept is a no-op.
func (r *Registry) DeactivateConcept(ctx context.Context, id ConceptID, actor string) (_ *PaymentConcept, err error) {
	const op = "deactivate_concept"
	defer r.observe(op, time.Now(), &err)

	c, err := r.GetConcept(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return c, nil
	}
	c.IsActive = false
	c.UpdatedAt = r.now()
	if err := r.store.SaveConcept(ctx, *c); err != nil {
		return nil, internal(op, err)
	}
	r.log.Info("concept deactivated", zap.String("concept_id", string(id)), zap.String("actor", actor))
	return c, nil
}

// AddAssignment binds a concept to a scope.
func (r *Registry) AddAssignment(ctx context.Context, a Assignment, actor string) (_ *Assignment, err error) {
	const op = "add_assignment"
	defer r.observe(op, time.Now(), &err)

	concept, err := r.store.GetConcept(ctx, a.ConceptID)
	if err != nil {
		return nil, internal(op, err)
	}
	if concept == nil {
		return nil, notFound(op, "concept %s not found", a.ConceptID)
	}
	if !concept.IsActive {
		return nil, badRequest(op, nil, "concept %s is inactive", a.ConceptID)
	}

	if a.CondominiumID == "" {
		a.CondominiumID = concept.CondominiumID
	}
	if verr := a.Validate(); verr != nil {
		return nil, badRequest(op, verr, "invalid assignment: %v", verr)
	}
	if err := r.checkScopeTarget(ctx, op, concept.CondominiumID, a); err != nil {
		return nil, err
	}

	if a.ID == "" {
		a.ID = AssignmentID(r.newID())
	}
	a.IsActive = true
	a.CreatedBy = actor
	a.CreatedAt = r.now()

	if err := r.store.InsertAssignment(ctx, a); err != nil {
		coded := fromStore(op, err)
		if coded.Code == CodeConflict {
			r.log.Debug("duplicate assignment rejected",
				zap.String("concept_id", string(a.ConceptID)),
				zap.String("scope", string(a.Scope)),
				zap.String("scope_key", a.ScopeKey()))
		} else {
			r.log.Error("insert assignment failed", zap.Error(err))
		}
		return nil, coded
	}
	r.log.Info("assignment added",
		zap.String("assignment_id", string(a.ID)),
		zap.String("concept_id", string(a.ConceptID)),
		zap.String("scope", string(a.Scope)),
		zap.String("method", string(a.DistributionMethod)),
		zap.String("amount", formatMoney(a.Amount)),
	)
	return &a, nil
}

// checkScopeTarget rejects scopes that point outside the concept's
// condominium. Inactive units still count as members.
func (r *Registry) checkScopeTarget(ctx context.Context, op string, condominiumID CondominiumID, a Assignment) error {
	if a.CondominiumID != condominiumID {
		verr := &ValidationError{Field: "condominium_id", Message: "must match the concept's condominium"}
		return badRequest(op, verr, "invalid assignment: %v", verr)
	}
	if a.Scope == ScopeCondominium {
		return nil
	}

	units, err := r.store.ListUnits(ctx, condominiumID)
	if err != nil {
		return internal(op, err)
	}
	for _, u := range units {
		if a.Scope == ScopeUnit && u.ID == *a.UnitID {
			return nil
		}
		if a.Scope == ScopeBuilding && u.BuildingID == *a.BuildingID {
			return nil
		}
	}

	verr := &ValidationError{Field: "unit_id", Message: "unit " + a.ScopeKey() + " does not belong to condominium " + string(condominiumID)}
	if a.Scope == ScopeBuilding {
		verr = &ValidationError{Field: "building_id", Message: "building " + a.ScopeKey() + " has no units in condominium " + string(condominiumID)}
	}
	return badRequest(op, verr, "invalid assignment: %v", verr)
}

func (r *Registry) ListAssignments(ctx context.Context, conceptID ConceptID) ([]Assignment, error) {
	const op = "list_assignments"
	if _, err := r.GetConcept(ctx, conceptID); err != nil {
		return nil, err
	}
	as, err := r.store.ListAssignments(ctx, conceptID)
	if err != nil {
		return nil, internal(op, err)
	}
	return as, nil
}

// RemoveAssignment hard-deletes an assignment. Quotas already generated
// from it are not touched.
func (r *Registry) RemoveAssignment(ctx context.Context, id AssignmentID) (err error) {
	const op = "remove_assignment"
	defer r.observe(op, time.Now(), &err)

	if err := r.store.DeleteAssignment(ctx, id); err != nil {
		if coded := fromStore(op, err); coded.Code == CodeNotFound {
			return notFound(op, "assignment %s not found", id)
		} else {
			return coded
		}
	}
	r.log.Info("assignment removed", zap.String("assignment_id", string(id)))
	return nil
}

// RegisterUnit stores a unit read model.
func (r *Registry) RegisterUnit(ctx context.Context, u Unit) (*Unit, error) {
	const op = "register_unit"
	if u.CondominiumID == "" {
		return nil, badRequest(op, nil, "condominium_id is required")
	}
	if strings.TrimSpace(u.Code) == "" {
		return nil, badRequest(op, nil, "unit code is required")
	}
	if u.Aliquot.IsNegative() {
		return nil, badRequest(op, nil, "aliquot cannot be negative")
	}
	if u.ID == "" {
		u.ID = UnitID(r.newID())
	}
	if err := r.store.SaveUnit(ctx, u); err != nil {
		return nil, internal(op, err)
	}
	return &u, nil
}

func (r *Registry) ListUnits(ctx context.Context, condominiumID CondominiumID) ([]Unit, error) {
	units, err := r.store.ListUnits(ctx, condominiumID)
	if err != nil {
		return nil, internal("list_units", err)
	}
	return units, nil
}
