package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/provider"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

// Outcome is one of the two ways a payment attempt ends. Succeeded carries no
// proof of payment; it only means the hosted widget claims success and the
// reference is now worth verifying.
type Outcome struct {
	Succeeded bool
	Reference string
	Reason    string
}

// Attempt is a single hosted-payment attempt. Its outcome latches exactly
// once: embedded widgets are known to re-fire callbacks when re-mounted, so
// every resolution after the first is a no-op.
type Attempt struct {
	reference string
	intent    models.PaymentIntent
	authURL   string

	once    sync.Once
	outcome chan Outcome
}

func (a *Attempt) Reference() string            { return a.reference }
func (a *Attempt) Intent() models.PaymentIntent { return a.intent }
func (a *Attempt) AuthorizationURL() string     { return a.authURL }

// Outcome yields the attempt's single resolution.
func (a *Attempt) Outcome() <-chan Outcome { return a.outcome }

// Succeed resolves the attempt as a client-reported success. Idempotent.
func (a *Attempt) Succeed() {
	a.once.Do(func() {
		a.outcome <- Outcome{Succeeded: true, Reference: a.reference}
		close(a.outcome)
	})
}

// Cancel resolves the attempt as cancelled. Provider errors land here too,
// with a diagnostic reason; they are never silently retried.
func (a *Attempt) Cancel(reason string) {
	a.once.Do(func() {
		a.outcome <- Outcome{Succeeded: false, Reference: a.reference, Reason: reason}
		close(a.outcome)
	})
}

// Initiator opens hosted transactions and tracks pending attempts so the
// provider callback endpoint can resolve them by reference.
type Initiator struct {
	provider interfaces.PaymentProvider

	mu      sync.Mutex
	pending map[string]*Attempt

	// newReference is swappable for tests.
	newReference func() string
}

func NewInitiator(p interfaces.PaymentProvider) *Initiator {
	return &Initiator{
		provider:     p,
		pending:      make(map[string]*Attempt),
		newReference: provider.NewReference,
	}
}

// Open generates a fresh reference, opens the hosted transaction, and returns
// the pending attempt. It performs no business mutation. A provider error
// yields an attempt that is already cancelled.
func (i *Initiator) Open(ctx context.Context, intent models.PaymentIntent) *Attempt {
	attempt := &Attempt{
		reference: i.newReference(),
		intent:    intent,
		outcome:   make(chan Outcome, 1),
	}

	authURL, err := i.provider.InitializeTransaction(ctx, attempt.reference, intent)
	if err != nil {
		telemetry.Logger.Warn("Failed to open hosted transaction",
			zap.String("reference", attempt.reference),
			zap.Error(err),
		)
		attempt.Cancel("provider error: " + err.Error())
		return attempt
	}
	attempt.authURL = authURL

	i.mu.Lock()
	i.pending[attempt.reference] = attempt
	i.mu.Unlock()

	telemetry.Logger.Info("Hosted transaction opened",
		zap.String("reference", attempt.reference),
		zap.String("purpose", string(intent.Purpose)),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", intent.Currency),
	)
	return attempt
}

// Resolve delivers a widget callback to the pending attempt for reference.
// Unknown or already-resolved references are no-ops and report false.
func (i *Initiator) Resolve(reference string, succeeded bool, reason string) bool {
	i.mu.Lock()
	attempt, ok := i.pending[reference]
	if ok {
		delete(i.pending, reference)
	}
	i.mu.Unlock()

	if !ok {
		return false
	}
	if succeeded {
		attempt.Succeed()
	} else {
		attempt.Cancel(reason)
	}
	return true
}
