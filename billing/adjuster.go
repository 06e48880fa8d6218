/*
adjuster.go - Manual quota corrections with an append-only audit trail

PURPOSE:
  Changes the base amount of one quota and records who did it and why.

RULES:
  - NOT_FOUND when the quota is missing, checked before anything else
  - BAD_REQUEST when the quota is cancelled, the new amount equals the
    current base amount, the new amount is negative (non-waiver), a waiver
    sets anything but 0, or the type is unknown
  - The reason is optional; it is stored trimmed

EFFECT:
  balance = newAmount + interestAmount - paidAmount
  status:
    waiver       => cancelled
    balance <= 0 => paid
    otherwise    => unchanged

  A paid quota is NOT reopened to pending here even if the new balance is
  positive. Refunds (reversal.go) always reopen. Both behaviors are kept as
  they are until product decides otherwise.

SEE ALSO:
  - quota.go: QuotaAdjustment
*/
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type QuotaAdjuster struct {
	deps
}

type AdjustmentResult struct {
	Adjustment QuotaAdjustment
	Quota      Quota
	Message    string
}

// Adjust sets a new base amount on a quota.
func (a *QuotaAdjuster) Adjust(ctx context.Context, quotaID QuotaID, newAmount decimal.Decimal, typ AdjustmentType, reason, actor string) (_ *AdjustmentResult, err error) {
	const op = "adjust_quota"
	defer a.observe(op, time.Now(), &err)

	reason = strings.TrimSpace(reason)

	var result *AdjustmentResult
	err = a.store.WithTx(ctx, func(tx Store) error {
		q, err := tx.GetQuota(ctx, quotaID)
		if err != nil {
			return err
		}
		if q == nil {
			return notFound(op, "quota %s not found", quotaID)
		}
		if !typ.Valid() {
			return badRequest(op, nil, "unknown adjustment type %q", typ)
		}
		if verr := checkAdjustment(*q, newAmount, typ); verr != nil {
			return badRequest(op, nil, "%s", verr.Message)
		}

		now := a.now()
		previous := q.BaseAmount
		adj := QuotaAdjustment{
			ID:             a.newID(),
			QuotaID:        q.ID,
			PreviousAmount: previous,
			NewAmount:      newAmount,
			Type:           typ,
			Reason:         reason,
			CreatedBy:      actor,
			CreatedAt:      now,
		}
		if err := tx.AppendAdjustment(ctx, adj); err != nil {
			return err
		}

		q.BaseAmount = newAmount
		q.Balance = q.Owed().Sub(q.PaidAmount)
		switch {
		case typ == AdjustWaiver:
			q.Status = QuotaCancelled
		case !q.Balance.IsPositive():
			q.Status = QuotaPaid
		}
		q.UpdatedAt = now
		if err := q.CheckBalance(); err != nil {
			return err
		}
		if err := tx.UpdateQuota(ctx, *q); err != nil {
			return err
		}

		result = &AdjustmentResult{
			Adjustment: adj,
			Quota:      *q,
			Message:    adjustmentMessage(previous, newAmount),
		}
		return nil
	})
	if err != nil {
		coded := fromStore(op, err)
		if coded.Code == CodeInternal {
			a.log.Error("quota adjustment failed", zap.String("quota_id", string(quotaID)), zap.Error(err))
		}
		return nil, coded
	}

	a.log.Info("quota adjusted",
		zap.String("quota_id", string(quotaID)),
		zap.String("type", string(typ)),
		zap.String("from", formatMoney(result.Adjustment.PreviousAmount)),
		zap.String("to", formatMoney(newAmount)),
		zap.String("status", string(result.Quota.Status)),
		zap.String("actor", actor),
	)
	return result, nil
}

// History lists the adjustments of a quota, oldest first.
func (a *QuotaAdjuster) History(ctx context.Context, quotaID QuotaID) ([]QuotaAdjustment, error) {
	const op = "quota_history"
	q, err := a.store.GetQuota(ctx, quotaID)
	if err != nil {
		return nil, internal(op, err)
	}
	if q == nil {
		return nil, notFound(op, "quota %s not found", quotaID)
	}
	adjs, err := a.store.ListAdjustments(ctx, quotaID)
	if err != nil {
		return nil, internal(op, err)
	}
	return adjs, nil
}

func checkAdjustment(q Quota, newAmount decimal.Decimal, typ AdjustmentType) *ValidationError {
	if q.Status == QuotaCancelled {
		return &ValidationError{Field: "quota_id", Message: "cannot adjust a cancelled quota"}
	}
	if newAmount.Equal(q.BaseAmount) {
		return &ValidationError{Field: "new_amount", Message: "new amount equals the current amount"}
	}
	if typ == AdjustWaiver {
		if !newAmount.IsZero() {
			return &ValidationError{Field: "new_amount", Message: "a waiver must set the amount to 0"}
		}
		return nil
	}
	if newAmount.IsNegative() {
		return &ValidationError{Field: "new_amount", Message: "cannot be negative"}
	}
	return nil
}

func adjustmentMessage(from, to decimal.Decimal) string {
	delta := to.Sub(from)
	sign := "+"
	if delta.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("Quota adjusted from %s to %s (%s%s)",
		formatMoney(from), formatMoney(to), sign, formatMoney(delta.Abs()))
}
