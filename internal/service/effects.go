package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

// Effects performs the authoritative business mutation behind a verified
// payment. Each variant is idempotent per reference: a retried call reports
// the first application's result instead of mutating again.
type Effects struct {
	contestants interfaces.ContestantRepository
	streetfoods interfaces.StreetfoodRepository
	donations   interfaces.DonationRepository
	locker      interfaces.ReferenceLocker
	audit       interfaces.AuditPublisher
	tally       interfaces.TallyPublisher
}

func NewEffects(
	contestants interfaces.ContestantRepository,
	streetfoods interfaces.StreetfoodRepository,
	donations interfaces.DonationRepository,
	locker interfaces.ReferenceLocker,
	audit interfaces.AuditPublisher,
	tally interfaces.TallyPublisher,
) *Effects {
	return &Effects{
		contestants: contestants,
		streetfoods: streetfoods,
		donations:   donations,
		locker:      locker,
		audit:       audit,
		tally:       tally,
	}
}

// CreditVotes adds votePower * quantity votes to the contestant. The returned
// total is identical for every caller presenting the same reference.
func (e *Effects) CreditVotes(ctx context.Context, contestantID, itemID string, quantity int64, reference string) (int64, error) {
	release, err := e.lock(ctx, reference)
	if err != nil {
		return 0, err
	}
	defer release()

	item, err := e.streetfoods.GetByID(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("resolve streetfood: %w", err)
	}
	votes := item.VotePower * quantity

	total, applied, err := e.contestants.CreditVotes(ctx, contestantID, votes, reference)
	if err != nil {
		telemetry.EffectsTotal.WithLabelValues("vote", "error").Inc()
		return 0, fmt.Errorf("credit votes: %w", err)
	}

	if !applied {
		telemetry.EffectsTotal.WithLabelValues("vote", "duplicate").Inc()
		return total, nil
	}

	telemetry.EffectsTotal.WithLabelValues("vote", "applied").Inc()
	telemetry.Logger.Info("Votes credited",
		zap.String("reference", reference),
		zap.String("contestant_id", contestantID),
		zap.Int64("votes", votes),
		zap.Int64("total", total),
	)
	e.publishAudit(ctx, models.AuditEvent{
		Kind:      models.AuditEffectApplied,
		Reference: reference,
		Purpose:   models.PurposeVote,
		Detail:    fmt.Sprintf("credited %d votes to %s", votes, contestantID),
		Timestamp: time.Now().UTC(),
	})
	if e.tally != nil {
		if terr := e.tally.PublishVoteTally(contestantID, total); terr != nil {
			telemetry.Logger.Warn("Failed to publish vote tally",
				zap.String("contestant_id", contestantID),
				zap.Error(terr),
			)
		}
	}
	return total, nil
}

// FinalizeRegistration creates the contestant. The season gate is re-checked
// inside the repository transaction; a closed window after a captured payment
// is audited for manual reconciliation.
func (e *Effects) FinalizeRegistration(ctx context.Context, payload models.RegistrationPayload, reference string) (*models.Contestant, error) {
	release, err := e.lock(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer release()

	contestant, applied, err := e.contestants.FinalizeRegistration(ctx, payload, reference)
	if errors.Is(err, interfaces.ErrRegistrationClosed) {
		telemetry.EffectsTotal.WithLabelValues("registration", "rejected").Inc()
		telemetry.Logger.Error("Registration window closed after payment was captured",
			zap.String("reference", reference),
			zap.String("email", payload.Email),
		)
		e.publishAudit(ctx, models.AuditEvent{
			Kind:      models.AuditEffectFailed,
			Reference: reference,
			Purpose:   models.PurposeRegistration,
			Detail:    "registration closed at finalize time; payment captured without effect",
			Timestamp: time.Now().UTC(),
		})
		return nil, fmt.Errorf("%w: %s", ErrEffectFailed, err)
	}
	if err != nil {
		telemetry.EffectsTotal.WithLabelValues("registration", "error").Inc()
		return nil, fmt.Errorf("finalize registration: %w", err)
	}

	if !applied {
		telemetry.EffectsTotal.WithLabelValues("registration", "duplicate").Inc()
		return contestant, nil
	}

	telemetry.EffectsTotal.WithLabelValues("registration", "applied").Inc()
	telemetry.Logger.Info("Registration finalized",
		zap.String("reference", reference),
		zap.String("contestant_id", contestant.ID),
	)
	e.publishAudit(ctx, models.AuditEvent{
		Kind:      models.AuditEffectApplied,
		Reference: reference,
		Purpose:   models.PurposeRegistration,
		Detail:    "contestant " + contestant.ID,
		Timestamp: time.Now().UTC(),
	})
	return contestant, nil
}

// RecordDonation stores the donation once per reference.
func (e *Effects) RecordDonation(ctx context.Context, payload models.DonationPayload, reference string) (*models.DonationReceipt, error) {
	release, err := e.lock(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer release()

	receipt, recorded, err := e.donations.Record(ctx, payload, reference)
	if err != nil {
		telemetry.EffectsTotal.WithLabelValues("donation", "error").Inc()
		return nil, fmt.Errorf("record donation: %w", err)
	}

	if !recorded {
		telemetry.EffectsTotal.WithLabelValues("donation", "duplicate").Inc()
		return receipt, nil
	}

	telemetry.EffectsTotal.WithLabelValues("donation", "applied").Inc()
	telemetry.Logger.Info("Donation recorded",
		zap.String("reference", reference),
		zap.Int64("amount", payload.Amount),
		zap.String("currency", payload.Currency),
	)
	e.publishAudit(ctx, models.AuditEvent{
		Kind:      models.AuditEffectApplied,
		Reference: reference,
		Purpose:   models.PurposeDonation,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
		Timestamp: time.Now().UTC(),
	})
	return receipt, nil
}

// lock serialises concurrent callers for one reference. A caller that loses
// the race waits for the winner instead of failing, then proceeds and hits
// the idempotent duplicate path, so both observe the same result.
func (e *Effects) lock(ctx context.Context, reference string) (func(), error) {
	lockKey := "effect_lock:" + reference
	deadline := time.Now().Add(referenceLockTTL)
	for {
		acquired, err := e.locker.Acquire(ctx, lockKey, referenceLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire effect lock: %w", err)
		}
		if acquired {
			return func() { e.locker.Release(ctx, lockKey) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (e *Effects) publishAudit(ctx context.Context, event models.AuditEvent) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Publish(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish audit event",
			zap.String("kind", event.Kind),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
	}
}
