// Package store provides an in-memory billing.TxStore.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/condo-ledger/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory guards a state with a mutex. The state itself implements
// billing.Store without locking and is what transactions write to.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

type periodKey struct {
	ConceptID billing.ConceptID
	Year      int
	Month     int
}

type quotaKey struct {
	periodKey
	UnitID billing.UnitID
}

type scopeKey struct {
	ConceptID billing.ConceptID
	Scope     billing.Scope
	Key       string
}

type state struct {
	concepts     map[billing.ConceptID]billing.PaymentConcept
	assignments  map[billing.AssignmentID]billing.Assignment
	assignOrder  []billing.AssignmentID
	scopes       map[scopeKey]billing.AssignmentID
	units        map[billing.UnitID]billing.Unit
	runs         map[periodKey]billing.ChargeRun
	quotas       map[billing.QuotaID]billing.Quota
	quotaOrder   []billing.QuotaID
	quotaKeys    map[quotaKey]billing.QuotaID
	adjustments  map[billing.QuotaID][]billing.QuotaAdjustment
	payments     map[billing.PaymentID]billing.Payment
	applications map[billing.ApplicationID]billing.PaymentApplication
	appOrder     []billing.ApplicationID
}

func newState() *state {
	return &state{
		concepts:     make(map[billing.ConceptID]billing.PaymentConcept),
		assignments:  make(map[billing.AssignmentID]billing.Assignment),
		scopes:       make(map[scopeKey]billing.AssignmentID),
		units:        make(map[billing.UnitID]billing.Unit),
		runs:         make(map[periodKey]billing.ChargeRun),
		quotas:       make(map[billing.QuotaID]billing.Quota),
		quotaKeys:    make(map[quotaKey]billing.QuotaID),
		adjustments:  make(map[billing.QuotaID][]billing.QuotaAdjustment),
		payments:     make(map[billing.PaymentID]billing.Payment),
		applications: make(map[billing.ApplicationID]billing.PaymentApplication),
	}
}

func pk(conceptID billing.ConceptID, p billing.Period) periodKey {
	return periodKey{ConceptID: conceptID, Year: p.Year, Month: int(p.Month)}
}

// ---- Concepts ----

func (s *state) SaveConcept(_ context.Context, c billing.PaymentConcept) error {
	s.concepts[c.ID] = c
	return nil
}

func (s *state) GetConcept(_ context.Context, id billing.ConceptID) (*billing.PaymentConcept, error) {
	c, ok := s.concepts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *state) ListConcepts(_ context.Context, condominiumID billing.CondominiumID) ([]billing.PaymentConcept, error) {
	var out []billing.PaymentConcept
	for _, c := range s.concepts {
		if c.CondominiumID == condominiumID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- Assignments ----

func (s *state) InsertAssignment(_ context.Context, a billing.Assignment) error {
	sk := scopeKey{ConceptID: a.ConceptID, Scope: a.Scope, Key: a.ScopeKey()}
	if _, dup := s.scopes[sk]; dup {
		return billing.ErrDuplicateAssignment
	}
	s.scopes[sk] = a.ID
	s.assignments[a.ID] = a
	s.assignOrder = append(s.assignOrder, a.ID)
	return nil
}

func (s *state) ListAssignments(_ context.Context, conceptID billing.ConceptID) ([]billing.Assignment, error) {
	var out []billing.Assignment
	for _, id := range s.assignOrder {
		if a := s.assignments[id]; a.ConceptID == conceptID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *state) DeleteAssignment(_ context.Context, id billing.AssignmentID) error {
	a, ok := s.assignments[id]
	if !ok {
		return billing.ErrNotFound
	}
	delete(s.assignments, id)
	delete(s.scopes, scopeKey{ConceptID: a.ConceptID, Scope: a.Scope, Key: a.ScopeKey()})
	s.assignOrder = removeID(s.assignOrder, id)
	return nil
}

// ---- Units ----

func (s *state) SaveUnit(_ context.Context, u billing.Unit) error {
	s.units[u.ID] = u
	return nil
}

func (s *state) ListUnits(_ context.Context, condominiumID billing.CondominiumID) ([]billing.Unit, error) {
	var out []billing.Unit
	for _, u := range s.units {
		if u.CondominiumID == condominiumID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- Charge runs and quotas ----

func (s *state) QuotasExist(_ context.Context, conceptID billing.ConceptID, p billing.Period) (bool, error) {
	k := pk(conceptID, p)
	if _, ok := s.runs[k]; ok {
		return true, nil
	}
	for qk := range s.quotaKeys {
		if qk.periodKey == k {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) InsertChargeRun(_ context.Context, run billing.ChargeRun) error {
	k := periodKey{ConceptID: run.ConceptID, Year: run.PeriodYear, Month: int(run.PeriodMonth)}
	if _, dup := s.runs[k]; dup {
		return billing.ErrPeriodAlreadyGenerated
	}
	s.runs[k] = run
	return nil
}

func (s *state) GetChargeRun(_ context.Context, conceptID billing.ConceptID, p billing.Period) (*billing.ChargeRun, error) {
	run, ok := s.runs[pk(conceptID, p)]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// InsertQuotas checks every key before writing, so a rejected batch leaves
// nothing behind even outside a transaction.
func (s *state) InsertQuotas(_ context.Context, quotas []billing.Quota) error {
	seen := make(map[quotaKey]bool, len(quotas))
	for _, q := range quotas {
		qk := quotaKey{periodKey: pk(q.ConceptID, q.Period()), UnitID: q.UnitID}
		if _, dup := s.quotaKeys[qk]; dup || seen[qk] {
			return billing.ErrPeriodAlreadyGenerated
		}
		seen[qk] = true
	}
	for _, q := range quotas {
		qk := quotaKey{periodKey: pk(q.ConceptID, q.Period()), UnitID: q.UnitID}
		s.quotaKeys[qk] = q.ID
		s.quotas[q.ID] = q
		s.quotaOrder = append(s.quotaOrder, q.ID)
	}
	return nil
}

func (s *state) GetQuota(_ context.Context, id billing.QuotaID) (*billing.Quota, error) {
	q, ok := s.quotas[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *state) UpdateQuota(_ context.Context, q billing.Quota) error {
	if _, ok := s.quotas[q.ID]; !ok {
		return billing.ErrNotFound
	}
	s.quotas[q.ID] = q
	return nil
}

func (s *state) ListQuotas(_ context.Context, conceptID billing.ConceptID, p billing.Period) ([]billing.Quota, error) {
	var out []billing.Quota
	for _, id := range s.quotaOrder {
		q := s.quotas[id]
		if q.ConceptID == conceptID && q.PeriodYear == p.Year && q.PeriodMonth == p.Month {
			out = append(out, q)
		}
	}
	return out, nil
}

// ---- Adjustments ----

func (s *state) AppendAdjustment(_ context.Context, adj billing.QuotaAdjustment) error {
	s.adjustments[adj.QuotaID] = append(s.adjustments[adj.QuotaID], adj)
	return nil
}

func (s *state) ListAdjustments(_ context.Context, quotaID billing.QuotaID) ([]billing.QuotaAdjustment, error) {
	return append([]billing.QuotaAdjustment(nil), s.adjustments[quotaID]...), nil
}

// ---- Payments ----

func (s *state) SavePayment(_ context.Context, p billing.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *state) GetPayment(_ context.Context, id billing.PaymentID) (*billing.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *state) SaveApplication(_ context.Context, app billing.PaymentApplication) error {
	if _, ok := s.applications[app.ID]; !ok {
		s.appOrder = append(s.appOrder, app.ID)
	}
	s.applications[app.ID] = app
	return nil
}

func (s *state) ListApplications(_ context.Context, paymentID billing.PaymentID) ([]billing.PaymentApplication, error) {
	var out []billing.PaymentApplication
	for _, id := range s.appOrder {
		if app := s.applications[id]; app.PaymentID == paymentID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (s *state) DeleteApplication(_ context.Context, id billing.ApplicationID) error {
	if _, ok := s.applications[id]; !ok {
		return billing.ErrNotFound
	}
	delete(s.applications, id)
	s.appOrder = removeID(s.appOrder, id)
	return nil
}

func removeID[T comparable](ids []T, id T) []T {
	out := make([]T, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// clone copies every map and slice. Row values are copied by value.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.concepts {
		c.concepts[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	c.assignOrder = append(c.assignOrder, s.assignOrder...)
	for k, v := range s.scopes {
		c.scopes[k] = v
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.runs {
		c.runs[k] = v
	}
	for k, v := range s.quotas {
		c.quotas[k] = v
	}
	c.quotaOrder = append(c.quotaOrder, s.quotaOrder...)
	for k, v := range s.quotaKeys {
		c.quotaKeys[k] = v
	}
	for k, v := range s.adjustments {
		c.adjustments[k] = append([]billing.QuotaAdjustment(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	c.appOrder = append(c.appOrder, s.appOrder...)
	return c
}

// =============================================================================
// LOCKED ACCESS
// =============================================================================

func (m *Memory) SaveConcept(ctx context.Context, c billing.PaymentConcept) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveConcept(ctx, c)
}

func (m *Memory) GetConcept(ctx context.Context, id billing.ConceptID) (*billing.PaymentConcept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetConcept(ctx, id)
}

func (m *Memory) ListConcepts(ctx context.Context, condominiumID billing.CondominiumID) ([]billing.PaymentConcept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListConcepts(ctx, condominiumID)
}

func (m *Memory) InsertAssignment(ctx context.Context, a billing.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertAssignment(ctx, a)
}

func (m *Memory) ListAssignments(ctx context.Context, conceptID billing.ConceptID) ([]billing.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListAssignments(ctx, conceptID)
}

func (m *Memory) DeleteAssignment(ctx context.Context, id billing.AssignmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteAssignment(ctx, id)
}

func (m *Memory) SaveUnit(ctx context.Context, u billing.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveUnit(ctx, u)
}

func (m *Memory) ListUnits(ctx context.Context, condominiumID billing.CondominiumID) ([]billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListUnits(ctx, condominiumID)
}

func (m *Memory) QuotasExist(ctx context.Context, conceptID billing.ConceptID, p billing.Period) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.QuotasExist(ctx, conceptID, p)
}

func (m *Memory) InsertChargeRun(ctx context.Context, run billing.ChargeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertChargeRun(ctx, run)
}

func (m *Memory) GetChargeRun(ctx context.Context, conceptID billing.ConceptID, p billing.Period) (*billing.ChargeRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetChargeRun(ctx, conceptID, p)
}

func (m *Memory) InsertQuotas(ctx context.Context, quotas []billing.Quota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertQuotas(ctx, quotas)
}

func (m *Memory) GetQuota(ctx context.Context, id billing.QuotaID) (*billing.Quota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetQuota(ctx, id)
}

func (m *Memory) UpdateQuota(ctx context.Context, q billing.Quota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateQuota(ctx, q)
}

func (m *Memory) ListQuotas(ctx context.Context, conceptID billing.ConceptID, p billing.Period) ([]billing.Quota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListQuotas(ctx, conceptID, p)
}

func (m *Memory) AppendAdjustment(ctx context.Context, adj billing.QuotaAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AppendAdjustment(ctx, adj)
}

func (m *Memory) ListAdjustments(ctx context.Context, quotaID billing.QuotaID) ([]billing.QuotaAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListAdjustments(ctx, quotaID)
}

func (m *Memory) SavePayment(ctx context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SavePayment(ctx, p)
}

func (m *Memory) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetPayment(ctx, id)
}

func (m *Memory) SaveApplication(ctx context.Context, app billing.PaymentApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveApplication(ctx, app)
}

func (m *Memory) ListApplications(ctx context.Context, paymentID billing.PaymentID) ([]billing.PaymentApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListApplications(ctx, paymentID)
}

func (m *Memory) DeleteApplication(ctx context.Context, id billing.ApplicationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteApplication(ctx, id)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole callback, so transactions serialize.
func (tm *TxMemory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.clone()
	if err := fn(tm.st); err != nil {
		tm.st = snapshot
		return err
	}
	return nil
}
