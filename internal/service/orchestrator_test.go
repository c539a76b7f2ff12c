package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/streetgottalent/vote-payments/internal/models"
)

func awaitDone(t *testing.T, wf *Workflow) *WorkflowResult {
	t.Helper()
	select {
	case <-wf.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("workflow %s did not finish", wf.Reference())
	}
	result := wf.Result()
	if result == nil {
		t.Fatalf("workflow %s finished without a result", wf.Reference())
	}
	return result
}

func TestVotePurchaseHappyPath(t *testing.T) {
	env := newTestEnv(t)

	// Item price 500, votePower 2, qty 3.
	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1",
		ItemID:       "taco",
		Quantity:     3,
		Email:        "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}
	if wf.Phase() != models.PhaseAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", wf.Phase())
	}

	// The intent amount must be the recomputed 500 * 3.
	rec, err := env.ledger.GetByReference(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("ledger record: %v", err)
	}
	if rec.Amount != 1500 {
		t.Fatalf("intent amount = %d, want 1500", rec.Amount)
	}

	if !env.initiator.Resolve(wf.Reference(), true, "") {
		t.Fatal("Resolve did not find the pending attempt")
	}

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if result.VoteTotal != 6 {
		t.Errorf("vote total = %d, want 6", result.VoteTotal)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("contestant votes = %d, want 6", got)
	}
	if phase := env.ledger.phase(wf.Reference()); phase != models.PhaseDone {
		t.Errorf("persisted phase = %s, want done", phase)
	}
}

func TestVotePurchaseCancelledMakesNoBackendCalls(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 1, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	env.initiator.Resolve(wf.Reference(), false, "")

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted, got %s", result.Phase)
	}
	if env.provider.verifyCalls != 0 {
		t.Errorf("verification ran after cancel: %d calls", env.provider.verifyCalls)
	}
	if env.contestants.creditCalls != 0 {
		t.Errorf("effect ran after cancel: %d calls", env.contestants.creditCalls)
	}
	if got := env.contestants.votes("c1"); got != 0 {
		t.Errorf("votes mutated on cancel: %d", got)
	}
}

func TestRejectedVerificationNeverAppliesEffect(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 3, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	// Provider recorded an underpayment.
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: wf.Reference(),
		Status:    models.ProviderStatusSuccess,
		Amount:    900,
		Currency:  "NGN",
	})
	env.initiator.Resolve(wf.Reference(), true, "")

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted, got %s", result.Phase)
	}
	if !strings.Contains(result.Reason, ReasonAmountMismatch) {
		t.Errorf("reason = %q, want amount mismatch", result.Reason)
	}
	if env.contestants.creditCalls != 0 {
		t.Errorf("effect applier invoked despite rejection: %d calls", env.contestants.creditCalls)
	}
	if got := env.contestants.votes("c1"); got != 0 {
		t.Errorf("votes mutated despite rejection: %d", got)
	}
}

func TestDuplicateSuccessCallbackIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 3, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	if !env.initiator.Resolve(wf.Reference(), true, "") {
		t.Fatal("first Resolve did not find the attempt")
	}
	// Widget re-mounted and fired again.
	if env.initiator.Resolve(wf.Reference(), true, "") {
		t.Error("second Resolve should be a no-op")
	}

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("votes = %d, want 6 (duplicate callback must not double-credit)", got)
	}
}

func TestVotePurchaseValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  VotePurchaseRequest
	}{
		{"zero quantity", VotePurchaseRequest{ContestantID: "c1", ItemID: "taco", Quantity: 0, Email: "fan@example.com"}},
		{"missing email", VotePurchaseRequest{ContestantID: "c1", ItemID: "taco", Quantity: 1}},
		{"malformed email", VotePurchaseRequest{ContestantID: "c1", ItemID: "taco", Quantity: 1, Email: "not-an-email"}},
		{"unknown contestant", VotePurchaseRequest{ContestantID: "ghost", ItemID: "taco", Quantity: 1, Email: "fan@example.com"}},
		{"unknown item", VotePurchaseRequest{ContestantID: "c1", ItemID: "ghost", Quantity: 1, Email: "fan@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orchestrator.StartVotePurchase(context.Background(), tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if env.provider.initCalls != 0 {
		t.Errorf("provider transaction opened for invalid input: %d calls", env.provider.initCalls)
	}
}

func TestVotePurchaseRejectsEvictedContestant(t *testing.T) {
	env := newTestEnv(t)
	env.contestants.Eliminate(context.Background(), "c1")

	_, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 1, Email: "fan@example.com",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDonationBelowMinimumRejectedBeforeProvider(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orchestrator.StartDonation(context.Background(), DonationRequest{
		DonationPayload: models.DonationPayload{
			Email: "fan@example.com", Amount: 500, Currency: "NGN", // minimum is 1000
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if env.provider.initCalls != 0 {
		t.Errorf("provider transaction opened before minimum check: %d calls", env.provider.initCalls)
	}
}

func TestDonationHappyPath(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartDonation(context.Background(), DonationRequest{
		DonationPayload: models.DonationPayload{
			Name: "Chi", Email: "chi@example.com", Amount: 2500, Currency: "NGN",
		},
	})
	if err != nil {
		t.Fatalf("StartDonation: %v", err)
	}

	env.initiator.Resolve(wf.Reference(), true, "")

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if result.Receipt == nil || result.Receipt.Amount != 2500 {
		t.Fatalf("unexpected receipt: %+v", result.Receipt)
	}
}

func TestRegistrationClosedRejectedBeforePayment(t *testing.T) {
	env := newTestEnv(t)
	env.seasons.UpdateAcceptance(context.Background(), false)

	_, err := env.orchestrator.StartRegistration(context.Background(), RegistrationRequest{
		Payload: models.RegistrationPayload{
			Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing",
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if env.provider.initCalls != 0 {
		t.Errorf("provider transaction opened while registration closed: %d calls", env.provider.initCalls)
	}
}

func TestRegistrationWindowClosesBetweenIntentAndFinalize(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartRegistration(context.Background(), RegistrationRequest{
		Payload: models.RegistrationPayload{
			Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing",
		},
	})
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}

	// The gate closes while the payer is inside the hosted checkout.
	env.seasons.UpdateAcceptance(context.Background(), false)
	env.initiator.Resolve(wf.Reference(), true, "")

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted, got %s", result.Phase)
	}
	if result.Contestant != nil {
		t.Error("contestant created despite closed window")
	}
	if events := env.audit.byKind(models.AuditEffectFailed); len(events) != 1 {
		t.Errorf("captured-without-effect must be audited, got %d events", len(events))
	}
}

func TestRegistrationHappyPath(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartRegistration(context.Background(), RegistrationRequest{
		Payload: models.RegistrationPayload{
			Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing",
		},
	})
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}

	rec, _ := env.ledger.GetByReference(context.Background(), wf.Reference())
	if rec.Amount != 5000 {
		t.Fatalf("registration intent amount = %d, want season fee 5000", rec.Amount)
	}

	env.initiator.Resolve(wf.Reference(), true, "")

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if result.Contestant == nil || result.Contestant.Name != "Bisi" {
		t.Fatalf("unexpected contestant: %+v", result.Contestant)
	}
}

func TestCompletePaymentBeforeCallbackAppliesEffect(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 3, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	// The widget callback never arrives; the client falls back to the manual
	// verify endpoint with nothing but the reference.
	result, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if result.VoteTotal != 6 {
		t.Errorf("vote total = %d, want 6", result.VoteTotal)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("contestant votes = %d, want 6", got)
	}

	// The parked workflow is woken and converges on the same outcome.
	wfResult := awaitDone(t, wf)
	if wfResult.Phase != models.PhaseDone {
		t.Fatalf("workflow phase = %s (%s), want done", wfResult.Phase, wfResult.Reason)
	}
	if wfResult.VoteTotal != 6 {
		t.Errorf("workflow vote total = %d, want 6", wfResult.VoteTotal)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("votes double-credited across both drivers: %d", got)
	}
	if phase := env.ledger.phase(wf.Reference()); phase != models.PhaseDone {
		t.Errorf("persisted phase = %s, want done", phase)
	}
}

func TestCompletePaymentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 3, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	first, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("first CompletePayment: %v", err)
	}
	second, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("second CompletePayment: %v", err)
	}

	if first.Phase != models.PhaseDone || second.Phase != models.PhaseDone {
		t.Fatalf("phases = %s / %s, want done / done", first.Phase, second.Phase)
	}
	if first.VoteTotal != 6 || second.VoteTotal != 6 {
		t.Errorf("vote totals = %d / %d, want 6 / 6", first.VoteTotal, second.VoteTotal)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("repeated completion double-credited: votes = %d", got)
	}
	awaitDone(t, wf)
}

func TestCompletePaymentUnknownReference(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.orchestrator.CompletePayment(context.Background(), "no-such-ref")
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted, got %s", result.Phase)
	}
	if result.Reason != ReasonUnknownReference {
		t.Errorf("reason = %q, want %q", result.Reason, ReasonUnknownReference)
	}
}

func TestCompletePaymentRetryAfterPendingCharge(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 3, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	// The charge has not settled yet.
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: wf.Reference(),
		Status:    "pending",
		Amount:    1500,
		Currency:  "NGN",
	})

	result, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted while charge pending, got %s", result.Phase)
	}
	if !strings.Contains(result.Reason, "pending") {
		t.Errorf("reason should carry the provider status, got %q", result.Reason)
	}
	if got := env.contestants.votes("c1"); got != 0 {
		t.Errorf("votes credited on pending charge: %d", got)
	}
	// A rejected completion must not burn the reference.
	if phase := env.ledger.phase(wf.Reference()); phase != models.PhaseAwaitingPayment {
		t.Fatalf("persisted phase = %s, want awaiting_payment", phase)
	}

	// The charge settles and the client retries.
	env.provider.setTransaction(&models.ProviderTransaction{
		Reference: wf.Reference(),
		Status:    models.ProviderStatusSuccess,
		Amount:    1500,
		Currency:  "NGN",
		PaidAt:    time.Now(),
	})

	retry, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("retry CompletePayment: %v", err)
	}
	if retry.Phase != models.PhaseDone {
		t.Fatalf("retry phase = %s (%s), want done", retry.Phase, retry.Reason)
	}
	if retry.VoteTotal != 6 {
		t.Errorf("retry vote total = %d, want 6", retry.VoteTotal)
	}
	awaitDone(t, wf)
}

func TestCompletePaymentFinalizesRegistrationFromStoredPayload(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartRegistration(context.Background(), RegistrationRequest{
		Payload: models.RegistrationPayload{
			Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing",
		},
	})
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}

	result, err := env.orchestrator.CompletePayment(context.Background(), wf.Reference())
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if result.Phase != models.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", result.Phase, result.Reason)
	}
	if result.Contestant == nil || result.Contestant.Name != "Bisi" {
		t.Fatalf("unexpected contestant: %+v", result.Contestant)
	}

	wfResult := awaitDone(t, wf)
	if wfResult.Contestant == nil || wfResult.Contestant.ID != result.Contestant.ID {
		t.Errorf("manual and workflow completions produced different contestants: %+v / %+v",
			result.Contestant, wfResult.Contestant)
	}
}

func TestWorkflowCancelBeforePayment(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 1, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	wf.Cancel()

	result := awaitDone(t, wf)
	if result.Phase != models.PhaseAborted {
		t.Fatalf("expected aborted, got %s", result.Phase)
	}
	if env.provider.verifyCalls != 0 || env.contestants.creditCalls != 0 {
		t.Error("backend touched after user cancellation")
	}
}

func TestWorkflowStreamsPhases(t *testing.T) {
	env := newTestEnv(t)

	wf, err := env.orchestrator.StartVotePurchase(context.Background(), VotePurchaseRequest{
		ContestantID: "c1", ItemID: "taco", Quantity: 1, Email: "fan@example.com",
	})
	if err != nil {
		t.Fatalf("StartVotePurchase: %v", err)
	}

	env.initiator.Resolve(wf.Reference(), true, "")
	awaitDone(t, wf)

	var phases []models.WorkflowPhase
	for update := range wf.Updates() {
		phases = append(phases, update.Phase)
	}

	want := []models.WorkflowPhase{models.PhaseVerifying, models.PhaseApplyingEffect, models.PhaseDone}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
}
