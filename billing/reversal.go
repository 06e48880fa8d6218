/*
reversal.go - Payment refunds

PURPOSE:
  Undoes a completed payment: every quota it paid gets its paid amount back
  and returns to pending, the application rows are removed and the payment
  is marked refunded.

RULES:
  - NOT_FOUND when the payment is missing
  - BAD_REQUEST when the payment is not completed or the reason is blank.
    A refunded payment is no longer completed, so refunds happen once.

TRANSACTION:
  Everything below runs in ONE transaction; any failure rolls back all of it.
  For each application:
    newPaid    = max(0, quota.paidAmount - appliedAmount)
    newBalance = baseAmount + interestAmount - newPaid
    status     = pending (always, even for quotas that were paid)
    delete the application row
  Then payment.status = refunded and a note is appended:
    [refund <RFC3339 timestamp> by <actor>] <reason>

  Application rows are hard-deleted. The payment note is the only trace.

SEE ALSO:
  - adjuster.go: Never reopens a paid quota
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

type PaymentReversal struct {
	deps
}

type RefundResult struct {
	Payment              Payment
	ReversedApplications int
	Message              string
}

// Refund reverses a completed payment.
func (r *PaymentReversal) Refund(ctx context.Context, paymentID PaymentID, reason, actor string) (_ *RefundResult, err error) {
	const op = "refund_payment"
	defer r.observe(op, time.Now(), &err)

	reason = strings.TrimSpace(reason)

	var result *RefundResult
	err = r.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return notFound(op, "payment %s not found", paymentID)
		}
		if p.Status != PaymentCompleted {
			return badRequest(op, nil, "payment %s is %s, only completed payments can be refunded", paymentID, p.Status)
		}
		if reason == "" {
			return badRequest(op, nil, "reason is required")
		}

		apps, err := tx.ListApplications(ctx, paymentID)
		if err != nil {
			return err
		}

		now := r.now()
		for _, app := range apps {
			if err := reverseApplication(ctx, tx, op, app, now); err != nil {
				return err
			}
		}

		p.Status = PaymentRefunded
		p.Notes = appendNote(p.Notes, fmt.Sprintf("[refund %s by %s] %s", now.UTC().Format(time.RFC3339), actor, reason))
		p.UpdatedAt = now
		if err := tx.SavePayment(ctx, *p); err != nil {
			return err
		}

		result = &RefundResult{
			Payment:              *p,
			ReversedApplications: len(apps),
			Message:              fmt.Sprintf("Payment refunded, %d application(s) reversed", len(apps)),
		}
		return nil
	})
	if err != nil {
		coded := fromStore(op, err)
		if coded.Code == CodeInternal {
			r.log.Error("refund rolled back", zap.String("payment_id", string(paymentID)), zap.Error(err))
		} else {
			r.log.Debug("refund rejected", zap.String("payment_id", string(paymentID)), zap.String("code", string(coded.Code)))
		}
		return nil, coded
	}

	r.metrics.ApplicationsReversed(result.ReversedApplications)
	r.log.Info("payment refunded",
		zap.String("payment_id", string(paymentID)),
		zap.Int("applications", result.ReversedApplications),
		zap.String("amount", formatMoney(result.Payment.Amount)),
		zap.String("actor", actor),
	)
	return result, nil
}

func reverseApplication(ctx context.Context, tx Store, op string, app PaymentApplication, now time.Time) error {
	q, err := tx.GetQuota(ctx, app.QuotaID)
	if err != nil {
		return err
	}
	if q == nil {
		return notFound(op, "quota %s of application %s not found", app.QuotaID, app.ID)
	}

	q.PaidAmount = decimal.Max(decimal.Zero, q.PaidAmount.Sub(app.AppliedAmount))
	q.Balance = q.Owed().Sub(q.PaidAmount)
	q.Status = QuotaPending
	q.UpdatedAt = now
	if err := q.CheckBalance(); err != nil {
		return err
	}
	if err := tx.UpdateQuota(ctx, *q); err != nil {
		return err
	}
	return tx.DeleteApplication(ctx, app.ID)
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
