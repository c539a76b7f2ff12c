package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/streetgottalent/vote-payments/internal/models"
)

func TestCreditVotesGrantsVotePowerTimesQuantity(t *testing.T) {
	env := newTestEnv(t)

	total, err := env.effects.CreditVotes(context.Background(), "c1", "taco", 3, "ref-credit")
	if err != nil {
		t.Fatalf("CreditVotes: %v", err)
	}
	if total != 6 { // votePower 2 * qty 3
		t.Fatalf("expected total 6, got %d", total)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Fatalf("contestant votes = %d, want 6", got)
	}
	if len(env.tally.updates) != 1 {
		t.Errorf("expected 1 tally update, got %d", len(env.tally.updates))
	}
}

func TestCreditVotesIsIdempotentPerReference(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.effects.CreditVotes(context.Background(), "c1", "taco", 3, "ref-dup")
	if err != nil {
		t.Fatalf("first CreditVotes: %v", err)
	}
	second, err := env.effects.CreditVotes(context.Background(), "c1", "taco", 3, "ref-dup")
	if err != nil {
		t.Fatalf("retried CreditVotes: %v", err)
	}

	if first != second {
		t.Errorf("retry returned %d, first call returned %d", second, first)
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Errorf("votes changed on retry: got %d, want 6", got)
	}
	if len(env.tally.updates) != 1 {
		t.Errorf("tally published on duplicate: %d updates", len(env.tally.updates))
	}
}

func TestConcurrentCreditVotesSameReference(t *testing.T) {
	env := newTestEnv(t)

	const callers = 8
	totals := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			totals[i], errs[i] = env.effects.CreditVotes(context.Background(), "c1", "taco", 3, "ref-race")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if totals[i] != 6 {
			t.Errorf("caller %d observed total %d, want 6", i, totals[i])
		}
	}
	if got := env.contestants.votes("c1"); got != 6 {
		t.Fatalf("exactly one mutation expected, votes = %d", got)
	}
}

func TestFinalizeRegistrationRejectedWhenWindowClosed(t *testing.T) {
	env := newTestEnv(t)

	// Window was open when the intent was created, closed before finalize.
	env.seasons.UpdateAcceptance(context.Background(), false)

	_, err := env.effects.FinalizeRegistration(context.Background(), models.RegistrationPayload{
		Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing",
	}, "ref-late")
	if !errors.Is(err, ErrEffectFailed) {
		t.Fatalf("expected ErrEffectFailed, got %v", err)
	}

	// Captured money with no effect goes to the reconciliation stream.
	if events := env.audit.byKind(models.AuditEffectFailed); len(events) != 1 {
		t.Errorf("expected 1 effect-failed audit event, got %d", len(events))
	}
}

func TestFinalizeRegistrationIdempotentPerReference(t *testing.T) {
	env := newTestEnv(t)
	payload := models.RegistrationPayload{Name: "Bisi", Email: "bisi@example.com", PerformanceType: "Dancing"}

	first, err := env.effects.FinalizeRegistration(context.Background(), payload, "ref-reg")
	if err != nil {
		t.Fatalf("first FinalizeRegistration: %v", err)
	}
	second, err := env.effects.FinalizeRegistration(context.Background(), payload, "ref-reg")
	if err != nil {
		t.Fatalf("retried FinalizeRegistration: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("retry created a second contestant: %s vs %s", first.ID, second.ID)
	}
}

func TestRecordDonationIdempotentPerReference(t *testing.T) {
	env := newTestEnv(t)
	payload := models.DonationPayload{Email: "fan@example.com", Amount: 2000, Currency: "NGN"}

	first, err := env.effects.RecordDonation(context.Background(), payload, "ref-don")
	if err != nil {
		t.Fatalf("first RecordDonation: %v", err)
	}
	if first.DonorName != "Anonymous" {
		t.Errorf("empty donor name should record as Anonymous, got %q", first.DonorName)
	}

	second, err := env.effects.RecordDonation(context.Background(), payload, "ref-don")
	if err != nil {
		t.Fatalf("retried RecordDonation: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("retry created a second receipt: %s vs %s", first.ID, second.ID)
	}
}
