package service

import (
	"context"
	"strings"
	"testing"

	"github.com/streetgottalent/vote-payments/internal/models"
)

func TestVerifyHappyPath(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500) // 500 * 3
	env.openVerified(t, "ref-1", intent)

	result, err := env.verifier.Verify(context.Background(), "ref-1", intent)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Verified {
		t.Fatalf("expected verified, got rejection: %s", result.Reason)
	}

	if events := env.audit.byKind(models.AuditPaymentVerified); len(events) != 1 {
		t.Errorf("expected 1 verified audit event, got %d", len(events))
	}
}

func TestVerifyConsumesReferenceExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500)
	env.openVerified(t, "ref-replay", intent)

	first, err := env.verifier.Verify(context.Background(), "ref-replay", intent)
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if !first.Verified {
		t.Fatalf("first Verify rejected: %s", first.Reason)
	}

	second, err := env.verifier.Verify(context.Background(), "ref-replay", intent)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if !second.Verified || !second.AlreadyVerified {
		t.Fatalf("replayed Verify must report the recorded verified outcome, got %+v", second)
	}
	if env.provider.verifyCalls != 1 {
		t.Errorf("provider consulted %d times, want 1", env.provider.verifyCalls)
	}
	if events := env.audit.byKind(models.AuditPaymentVerified); len(events) != 1 {
		t.Errorf("verified audit events = %d, want 1 (replay must not re-audit)", len(events))
	}
}

func TestVerifyRejectsUnknownReference(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.verifier.Verify(context.Background(), "no-such-ref", voteIntent(1500))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("unknown reference must not verify")
	}
	if result.Reason != ReasonUnknownReference {
		t.Errorf("expected reason %q, got %q", ReasonUnknownReference, result.Reason)
	}
}

func TestVerifyRejectsAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500)
	env.openVerified(t, "ref-short", intent)

	// Payer somehow got charged less than the recomputed price.
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: "ref-short",
		Status:    models.ProviderStatusSuccess,
		Amount:    900,
		Currency:  "NGN",
	})

	result, err := env.verifier.Verify(context.Background(), "ref-short", intent)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("underpayment must not verify")
	}
	if !strings.Contains(result.Reason, ReasonAmountMismatch) {
		t.Errorf("expected amount mismatch, got %q", result.Reason)
	}
}

func TestVerifyIgnoresClientClaimedAmount(t *testing.T) {
	env := newTestEnv(t)
	// Client claims 900 but the provider recorded the true recomputed price.
	intent := voteIntent(900)
	env.openVerified(t, "ref-claim", intent)
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: "ref-claim",
		Status:    models.ProviderStatusSuccess,
		Amount:    1500,
		Currency:  "NGN",
	})

	result, err := env.verifier.Verify(context.Background(), "ref-claim", intent)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Verified {
		t.Fatalf("provider-recorded amount matches the quote; rejection: %s", result.Reason)
	}
}

func TestVerifyRejectsCurrencyMismatch(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500)
	env.openVerified(t, "ref-fx", intent)
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: "ref-fx",
		Status:    models.ProviderStatusSuccess,
		Amount:    1500,
		Currency:  "USD",
	})

	result, err := env.verifier.Verify(context.Background(), "ref-fx", intent)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("currency mismatch must not verify")
	}
	if !strings.Contains(result.Reason, ReasonCurrencyMismatch) {
		t.Errorf("expected currency mismatch, got %q", result.Reason)
	}
}

func TestVerifyRejectsNonSuccessProviderStatus(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500)
	env.openVerified(t, "ref-failed", intent)
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: "ref-failed",
		Status:    "abandoned",
		Amount:    1500,
		Currency:  "NGN",
	})

	result, err := env.verifier.Verify(context.Background(), "ref-failed", intent)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("abandoned transaction must not verify")
	}
	if !strings.Contains(result.Reason, "abandoned") {
		t.Errorf("reason should carry the provider status, got %q", result.Reason)
	}
}

func TestVerifyWhileLockedIsTransient(t *testing.T) {
	env := newTestEnv(t)
	intent := voteIntent(1500)
	env.openVerified(t, "ref-locked", intent)

	if ok, _ := env.locker.Acquire(context.Background(), "verify_lock:ref-locked", referenceLockTTL); !ok {
		t.Fatal("setup: could not pre-acquire lock")
	}

	_, err := env.verifier.Verify(context.Background(), "ref-locked", intent)
	if err != ErrLockBusy {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}

	// The reference is not consumed by a busy lock; a retry succeeds.
	env.locker.Release(context.Background(), "verify_lock:ref-locked")
	result, err := env.verifier.Verify(context.Background(), "ref-locked", intent)
	if err != nil || !result.Verified {
		t.Fatalf("retry after lock release should verify, got %v / %+v", err, result)
	}
}
