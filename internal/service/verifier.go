package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

const referenceLockTTL = 30 * time.Second

// Verifier is the single authorization checkpoint. No effect runs without a
// Verified result from here, and each reference verifies at most once.
type Verifier struct {
	provider interfaces.PaymentProvider
	ledger   interfaces.PaymentLedger
	locker   interfaces.ReferenceLocker
	quoter   *Quoter
	audit    interfaces.AuditPublisher
}

func NewVerifier(
	provider interfaces.PaymentProvider,
	ledger interfaces.PaymentLedger,
	locker interfaces.ReferenceLocker,
	quoter *Quoter,
	audit interfaces.AuditPublisher,
) *Verifier {
	return &Verifier{
		provider: provider,
		ledger:   ledger,
		locker:   locker,
		quoter:   quoter,
		audit:    audit,
	}
}

// Verify confirms with the provider that the charge behind reference actually
// cleared and matches the recomputed amount for the intent. Rejections are
// final for that reference; a non-nil error is transient and safe to retry.
// Re-verifying an already consumed reference reports the recorded verified
// outcome instead of failing, so retries converge on one result.
func (v *Verifier) Verify(ctx context.Context, reference string, intent models.PaymentIntent) (models.VerificationResult, error) {
	lockKey := "verify_lock:" + reference
	acquired, err := v.locker.Acquire(ctx, lockKey, referenceLockTTL)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("acquire verify lock: %w", err)
	}
	if !acquired {
		return models.VerificationResult{}, ErrLockBusy
	}
	defer v.locker.Release(ctx, lockKey)

	rec, err := v.ledger.GetByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return v.reject(ctx, reference, intent, ReasonUnknownReference), nil
	}
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("load payment record: %w", err)
	}
	if rec.ConsumedAt != nil {
		// Consumption only ever follows a fully successful verification, so
		// a consumed reference is a verified one. Report the recorded outcome
		// without consulting the provider again; the effect ledger keeps a
		// replay from applying twice.
		return v.alreadyVerified(reference), nil
	}

	tx, err := v.provider.VerifyTransaction(ctx, reference)
	if errors.Is(err, interfaces.ErrTransactionNotFound) {
		return v.reject(ctx, reference, intent, ReasonUnknownReference), nil
	}
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("provider verify: %w", err)
	}
	if tx.Status != models.ProviderStatusSuccess {
		return v.reject(ctx, reference, intent, fmt.Sprintf("provider status %q", tx.Status)), nil
	}

	// The provider's record is compared against the recomputed price, never
	// against the client's claimed amount.
	expected, err := v.quoter.ExpectedAmount(ctx, intent)
	if errors.Is(err, ErrValidation) {
		return v.reject(ctx, reference, intent, err.Error()), nil
	}
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("recompute amount: %w", err)
	}
	if tx.Amount != expected {
		return v.reject(ctx, reference, intent,
			fmt.Sprintf("%s: provider recorded %d, expected %d", ReasonAmountMismatch, tx.Amount, expected)), nil
	}
	if tx.Currency != intent.Currency {
		return v.reject(ctx, reference, intent,
			fmt.Sprintf("%s: provider recorded %s, expected %s", ReasonCurrencyMismatch, tx.Currency, intent.Currency)), nil
	}

	consumed, err := v.ledger.MarkConsumed(ctx, reference)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("consume reference: %w", err)
	}
	if !consumed {
		return v.alreadyVerified(reference), nil
	}

	telemetry.VerificationsTotal.WithLabelValues("verified").Inc()
	telemetry.Logger.Info("Payment verified",
		zap.String("reference", reference),
		zap.String("purpose", string(intent.Purpose)),
		zap.Int64("amount", tx.Amount),
		zap.String("currency", tx.Currency),
	)
	v.publish(ctx, models.AuditEvent{
		Kind:      models.AuditPaymentVerified,
		Reference: reference,
		Purpose:   intent.Purpose,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Timestamp: time.Now().UTC(),
	})

	return models.VerificationResult{Verified: true}, nil
}

func (v *Verifier) alreadyVerified(reference string) models.VerificationResult {
	telemetry.VerificationsTotal.WithLabelValues("replayed").Inc()
	telemetry.Logger.Info("Reference already verified, reporting recorded outcome",
		zap.String("reference", reference),
	)
	return models.VerificationResult{Verified: true, AlreadyVerified: true}
}

func (v *Verifier) reject(ctx context.Context, reference string, intent models.PaymentIntent, reason string) models.VerificationResult {
	telemetry.VerificationsTotal.WithLabelValues("rejected").Inc()
	telemetry.Logger.Warn("Payment verification rejected",
		zap.String("reference", reference),
		zap.String("purpose", string(intent.Purpose)),
		zap.String("reason", reason),
	)
	v.publish(ctx, models.AuditEvent{
		Kind:      models.AuditPaymentRejected,
		Reference: reference,
		Purpose:   intent.Purpose,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Detail:    reason,
		Timestamp: time.Now().UTC(),
	})
	return models.VerificationResult{Verified: false, Reason: reason}
}

func (v *Verifier) publish(ctx context.Context, event models.AuditEvent) {
	if v.audit == nil {
		return
	}
	if err := v.audit.Publish(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish audit event",
			zap.String("kind", event.Kind),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
	}
}
