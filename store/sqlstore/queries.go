package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/condo-ledger/billing"
)

// =============================================================================
// CONCEPTS
// =============================================================================

const conceptColumns = `id, condominium_id, building_id, name, description, concept_type, currency_id,
	is_recurring, recurrence_period, issue_day, due_day,
	late_fee_type, late_fee_value, late_fee_grace_days,
	early_discount_type, early_discount_value, early_discount_days,
	is_active, created_by, created_at, updated_at`

func (r *rows) SaveConcept(ctx context.Context, c billing.PaymentConcept) error {
	query := `
		INSERT INTO payment_concepts (` + conceptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			building_id = excluded.building_id,
			name = excluded.name,
			description = excluded.description,
			concept_type = excluded.concept_type,
			currency_id = excluded.currency_id,
			is_recurring = excluded.is_recurring,
			recurrence_period = excluded.recurrence_period,
			issue_day = excluded.issue_day,
			due_day = excluded.due_day,
			late_fee_type = excluded.late_fee_type,
			late_fee_value = excluded.late_fee_value,
			late_fee_grace_days = excluded.late_fee_grace_days,
			early_discount_type = excluded.early_discount_type,
			early_discount_value = excluded.early_discount_value,
			early_discount_days = excluded.early_discount_days,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := r.exec(ctx, query,
		c.ID, c.CondominiumID, buildingArg(c.BuildingID), c.Name, c.Description, c.Type, c.CurrencyID,
		c.IsRecurring, c.RecurrencePeriod, c.IssueDay, c.DueDay,
		c.LateFee.Type, c.LateFee.Value, c.LateFee.GraceDays,
		c.EarlyDiscount.Type, c.EarlyDiscount.Value, c.EarlyDiscount.DaysBeforeDue,
		c.IsActive, c.CreatedBy, r.timestamp(c.CreatedAt), r.timestamp(c.UpdatedAt),
	)
	return r.classify(err, "save concept")
}

func (r *rows) GetConcept(ctx context.Context, id billing.ConceptID) (*billing.PaymentConcept, error) {
	row := r.queryRow(ctx, `SELECT `+conceptColumns+` FROM payment_concepts WHERE id = ?`, id)
	c, err := scanConcept(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}
	return &c, nil
}

func (r *rows) ListConcepts(ctx context.Context, condominiumID billing.CondominiumID) ([]billing.PaymentConcept, error) {
	rs, err := r.query(ctx, `
		SELECT `+conceptColumns+` FROM payment_concepts
		WHERE condominium_id = ?
		ORDER BY created_at ASC, id ASC
	`, condominiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rs.Close()

	var out []billing.PaymentConcept
	for rs.Next() {
		c, err := scanConcept(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rs.Err()
}

func scanConcept(s scanner) (billing.PaymentConcept, error) {
	var (
		c                  billing.PaymentConcept
		building           sql.NullString
		createdAt, updated dbTime
	)
	err := s.Scan(
		&c.ID, &c.CondominiumID, &building, &c.Name, &c.Description, &c.Type, &c.CurrencyID,
		&c.IsRecurring, &c.RecurrencePeriod, &c.IssueDay, &c.DueDay,
		&c.LateFee.Type, &c.LateFee.Value, &c.LateFee.GraceDays,
		&c.EarlyDiscount.Type, &c.EarlyDiscount.Value, &c.EarlyDiscount.DaysBeforeDue,
		&c.IsActive, &c.CreatedBy, &createdAt, &updated,
	)
	if err != nil {
		return c, err
	}
	if building.Valid {
		b := billing.BuildingID(building.String)
		c.BuildingID = &b
	}
	c.CreatedAt, c.UpdatedAt = createdAt.Time, updated.Time
	return c, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, concept_id, scope_type, condominium_id, building_id, unit_id,
	distribution_method, amount, is_active, created_by, created_at`

func (r *rows) InsertAssignment(ctx context.Context, a billing.Assignment) error {
	_, err := r.exec(ctx, `
		INSERT INTO payment_concept_assignments (`+assignmentColumns+`, scope_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.ConceptID, a.Scope, a.CondominiumID, buildingArg(a.BuildingID), unitArg(a.UnitID),
		a.DistributionMethod, a.Amount, a.IsActive, a.CreatedBy, r.timestamp(a.CreatedAt), a.ScopeKey(),
	)
	return r.classify(err, "insert assignment")
}

func (r *rows) ListAssignments(ctx context.Context, conceptID billing.ConceptID) ([]billing.Assignment, error) {
	rs, err := r.query(ctx, `
		SELECT `+assignmentColumns+` FROM payment_concept_assignments
		WHERE concept_id = ?
		ORDER BY created_at ASC, id ASC
	`, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rs.Close()

	var out []billing.Assignment
	for rs.Next() {
		var (
			a              billing.Assignment
			building, unit sql.NullString
			createdAt      dbTime
		)
		if err := rs.Scan(
			&a.ID, &a.ConceptID, &a.Scope, &a.CondominiumID, &building, &unit,
			&a.DistributionMethod, &a.Amount, &a.IsActive, &a.CreatedBy, &createdAt,
		); err != nil {
			return nil, err
		}
		if building.Valid {
			b := billing.BuildingID(building.String)
			a.BuildingID = &b
		}
		if unit.Valid {
			u := billing.UnitID(unit.String)
			a.UnitID = &u
		}
		a.CreatedAt = createdAt.Time
		out = append(out, a)
	}
	return out, rs.Err()
}

func (r *rows) DeleteAssignment(ctx context.Context, id billing.AssignmentID) error {
	res, err := r.exec(ctx, `DELETE FROM payment_concept_assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return requireAffected(res)
}

// =============================================================================
// UNITS
// =============================================================================

func (r *rows) SaveUnit(ctx context.Context, u billing.Unit) error {
	_, err := r.exec(ctx, `
		INSERT INTO units (id, condominium_id, building_id, code, aliquot, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			building_id = excluded.building_id,
			code = excluded.code,
			aliquot = excluded.aliquot,
			is_active = excluded.is_active
	`, u.ID, u.CondominiumID, nullString(string(u.BuildingID)), u.Code, u.Aliquot, u.IsActive)
	return r.classify(err, "save unit")
}

func (r *rows) ListUnits(ctx context.Context, condominiumID billing.CondominiumID) ([]billing.Unit, error) {
	rs, err := r.query(ctx, `
		SELECT id, condominium_id, building_id, code, aliquot, is_active
		FROM units
		WHERE condominium_id = ?
		ORDER BY code ASC, id ASC
	`, condominiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rs.Close()

	var out []billing.Unit
	for rs.Next() {
		var (
			u        billing.Unit
			building sql.NullString
		)
		if err := rs.Scan(&u.ID, &u.CondominiumID, &building, &u.Code, &u.Aliquot, &u.IsActive); err != nil {
			return nil, err
		}
		u.BuildingID = billing.BuildingID(building.String)
		out = append(out, u)
	}
	return out, rs.Err()
}

// =============================================================================
// CHARGE RUNS
// =============================================================================

func (r *rows) QuotasExist(ctx context.Context, conceptID billing.ConceptID, p billing.Period) (bool, error) {
	var count int
	err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM quotas
		WHERE concept_id = ? AND period_year = ? AND period_month = ?
	`, conceptID, p.Year, int(p.Month)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count quotas: %w", err)
	}
	return count > 0, nil
}

func (r *rows) InsertChargeRun(ctx context.Context, run billing.ChargeRun) error {
	_, err := r.exec(ctx, `
		INSERT INTO charge_runs
		(id, concept_id, period_year, period_month, quotas_created, total_amount,
		 issue_date, due_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.ConceptID, run.PeriodYear, int(run.PeriodMonth), run.QuotasCreated, run.TotalAmount,
		r.date(run.IssueDate), r.date(run.DueDate), run.CreatedBy, r.timestamp(run.CreatedAt),
	)
	return r.classify(err, "insert charge run")
}

func (r *rows) GetChargeRun(ctx context.Context, conceptID billing.ConceptID, p billing.Period) (*billing.ChargeRun, error) {
	var (
		run                billing.ChargeRun
		month              int
		issue, due, create dbTime
	)
	err := r.queryRow(ctx, `
		SELECT id, concept_id, period_year, period_month, quotas_created, total_amount,
		       issue_date, due_date, created_by, created_at
		FROM charge_runs
		WHERE concept_id = ? AND period_year = ? AND period_month = ?
	`, conceptID, p.Year, int(p.Month)).Scan(
		&run.ID, &run.ConceptID, &run.PeriodYear, &month, &run.QuotasCreated, &run.TotalAmount,
		&issue, &due, &run.CreatedBy, &create,
	)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge run: %w", err)
	}
	run.PeriodMonth = time.Month(month)
	run.IssueDate, run.DueDate, run.CreatedAt = issue.Time, due.Time, create.Time
	return &run, nil
}

// =============================================================================
// QUOTAS
// =============================================================================

const quotaColumns = `id, unit_id, concept_id, period_year, period_month,
	base_amount, interest_amount, paid_amount, balance, status,
	issue_date, due_date, currency_id, created_by, created_at, updated_at`

// InsertQuotas writes the batch row by row. Callers wrap it in WithTx for
// all-or-nothing semantics.
func (r *rows) InsertQuotas(ctx context.Context, quotas []billing.Quota) error {
	query := `INSERT INTO quotas (` + quotaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, q := range quotas {
		_, err := r.exec(ctx, query,
			q.ID, q.UnitID, q.ConceptID, q.PeriodYear, int(q.PeriodMonth),
			q.BaseAmount, q.InterestAmount, q.PaidAmount, q.Balance, q.Status,
			r.date(q.IssueDate), r.date(q.DueDate), q.CurrencyID, q.CreatedBy,
			r.timestamp(q.CreatedAt), r.timestamp(q.UpdatedAt),
		)
		if err != nil {
			return r.classify(err, "insert quota")
		}
	}
	return nil
}

func (r *rows) GetQuota(ctx context.Context, id billing.QuotaID) (*billing.Quota, error) {
	q, err := scanQuota(r.queryRow(ctx, `SELECT `+quotaColumns+` FROM quotas WHERE id = ?`, id))
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return &q, nil
}

func (r *rows) UpdateQuota(ctx context.Context, q billing.Quota) error {
	res, err := r.exec(ctx, `
		UPDATE quotas
		SET base_amount = ?, interest_amount = ?, paid_amount = ?, balance = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, q.BaseAmount, q.InterestAmount, q.PaidAmount, q.Balance, q.Status, r.timestamp(q.UpdatedAt), q.ID)
	if err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}
	return requireAffected(res)
}

func (r *rows) ListQuotas(ctx context.Context, conceptID billing.ConceptID, p billing.Period) ([]billing.Quota, error) {
	rs, err := r.query(ctx, `
		SELECT `+quotaColumns+` FROM quotas
		WHERE concept_id = ? AND period_year = ? AND period_month = ?
		ORDER BY id ASC
	`, conceptID, p.Year, int(p.Month))
	if err != nil {
		return nil, fmt.Errorf("failed to query quotas: %w", err)
	}
	defer rs.Close()

	var out []billing.Quota
	for rs.Next() {
		q, err := scanQuota(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rs.Err()
}

func scanQuota(s scanner) (billing.Quota, error) {
	var (
		q                           billing.Quota
		month                       int
		issue, due, created, update dbTime
	)
	err := s.Scan(
		&q.ID, &q.UnitID, &q.ConceptID, &q.PeriodYear, &month,
		&q.BaseAmount, &q.InterestAmount, &q.PaidAmount, &q.Balance, &q.Status,
		&issue, &due, &q.CurrencyID, &q.CreatedBy, &created, &update,
	)
	if err != nil {
		return q, err
	}
	q.PeriodMonth = time.Month(month)
	q.IssueDate, q.DueDate = issue.Time, due.Time
	q.CreatedAt, q.UpdatedAt = created.Time, update.Time
	return q, nil
}

// =============================================================================
// ADJUSTMENTS (append-only: no UPDATE or DELETE statements)
// =============================================================================

func (r *rows) AppendAdjustment(ctx context.Context, adj billing.QuotaAdjustment) error {
	_, err := r.exec(ctx, `
		INSERT INTO quota_adjustments
		(id, quota_id, previous_amount, new_amount, adjustment_type, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, adj.ID, adj.QuotaID, adj.PreviousAmount, adj.NewAmount, adj.Type, adj.Reason, adj.CreatedBy, r.timestamp(adj.CreatedAt))
	return r.classify(err, "append adjustment")
}

func (r *rows) ListAdjustments(ctx context.Context, quotaID billing.QuotaID) ([]billing.QuotaAdjustment, error) {
	rs, err := r.query(ctx, `
		SELECT id, quota_id, previous_amount, new_amount, adjustment_type, reason, created_by, created_at
		FROM quota_adjustments
		WHERE quota_id = ?
		ORDER BY created_at ASC, id ASC
	`, quotaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rs.Close()

	var out []billing.QuotaAdjustment
	for rs.Next() {
		var (
			adj       billing.QuotaAdjustment
			createdAt dbTime
		)
		if err := rs.Scan(&adj.ID, &adj.QuotaID, &adj.PreviousAmount, &adj.NewAmount,
			&adj.Type, &adj.Reason, &adj.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		adj.CreatedAt = createdAt.Time
		out = append(out, adj)
	}
	return out, rs.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (r *rows) SavePayment(ctx context.Context, p billing.Payment) error {
	_, err := r.exec(ctx, `
		INSERT INTO payments (id, unit_id, amount, currency_id, status, payment_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, p.ID, p.UnitID, p.Amount, p.CurrencyID, p.Status, r.date(p.PaymentDate), p.Notes,
		r.timestamp(p.CreatedAt), r.timestamp(p.UpdatedAt))
	return r.classify(err, "save payment")
}

func (r *rows) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	var (
		p                        billing.Payment
		paid, created, updatedAt dbTime
	)
	err := r.queryRow(ctx, `
		SELECT id, unit_id, amount, currency_id, status, payment_date, notes, created_at, updated_at
		FROM payments WHERE id = ?
	`, id).Scan(&p.ID, &p.UnitID, &p.Amount, &p.CurrencyID, &p.Status, &paid, &p.Notes, &created, &updatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	p.PaymentDate, p.CreatedAt, p.UpdatedAt = paid.Time, created.Time, updatedAt.Time
	return &p, nil
}

func (r *rows) SaveApplication(ctx context.Context, app billing.PaymentApplication) error {
	_, err := r.exec(ctx, `
		INSERT INTO payment_applications (id, payment_id, quota_id, applied_amount, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`, app.ID, app.PaymentID, app.QuotaID, app.AppliedAmount, r.timestamp(app.AppliedAt))
	return r.classify(err, "save payment application")
}

func (r *rows) ListApplications(ctx context.Context, paymentID billing.PaymentID) ([]billing.PaymentApplication, error) {
	rs, err := r.query(ctx, `
		SELECT id, payment_id, quota_id, applied_amount, applied_at
		FROM payment_applications
		WHERE payment_id = ?
		ORDER BY applied_at ASC, id ASC
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment applications: %w", err)
	}
	defer rs.Close()

	var out []billing.PaymentApplication
	for rs.Next() {
		var (
			app       billing.PaymentApplication
			appliedAt dbTime
		)
		if err := rs.Scan(&app.ID, &app.PaymentID, &app.QuotaID, &app.AppliedAmount, &appliedAt); err != nil {
			return nil, err
		}
		app.AppliedAt = appliedAt.Time
		out = append(out, app)
	}
	return out, rs.Err()
}

func (r *rows) DeleteApplication(ctx context.Context, id billing.ApplicationID) error {
	res, err := r.exec(ctx, `DELETE FROM payment_applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment application: %w", err)
	}
	return requireAffected(res)
}
