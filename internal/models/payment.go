package models

import (
	"encoding/json"
	"time"
)

// PaymentPurpose says what a payment buys. It travels with the intent to the
// backend and is echoed into the provider metadata.
type PaymentPurpose string

const (
	PurposeVote         PaymentPurpose = "vote"
	PurposeRegistration PaymentPurpose = "registration"
	PurposeDonation     PaymentPurpose = "donation"
)

// WorkflowPhase is the orchestrator's externally visible state.
type WorkflowPhase string

const (
	PhaseAwaitingPayment WorkflowPhase = "awaiting_payment"
	PhaseVerifying       WorkflowPhase = "verifying"
	PhaseApplyingEffect  WorkflowPhase = "applying_effect"
	PhaseDone            WorkflowPhase = "done"
	PhaseAborted         WorkflowPhase = "aborted"
)

// Terminal reports whether no further transition can happen from p.
func (p WorkflowPhase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

// PaymentIntent is what the fan is about to pay for. Amount is in the smallest
// currency unit and is advisory only: the backend recomputes the authoritative
// amount during verification and compares it against the provider's record,
// never against this field.
type PaymentIntent struct {
	Purpose    PaymentPurpose `json:"purpose"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	PayerEmail string         `json:"payer_email"`
	PayerName  string         `json:"payer_name,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	ItemID     string         `json:"item_id,omitempty"`
	Quantity   int64          `json:"quantity"`
}

// VerificationResult is produced only by the verifier after consulting the
// payment provider. A widget success callback is never a substitute for
// Verified == true.
type VerificationResult struct {
	Verified bool `json:"verified"`
	// AlreadyVerified marks a replay: the reference was consumed by an
	// earlier successful verification and this call reported the recorded
	// outcome without consulting the provider again.
	AlreadyVerified bool   `json:"already_verified,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// PaymentRecord is a ledger row for one payment attempt. Reference doubles as
// the idempotency key: it verifies at most once (ConsumedAt set) and its
// effect applies at most once.
type PaymentRecord struct {
	Reference  string         `json:"reference"`
	Purpose    PaymentPurpose `json:"purpose"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	PayerEmail string         `json:"payer_email"`
	SubjectID  string         `json:"subject_id,omitempty"`
	ItemID     string         `json:"item_id,omitempty"`
	Quantity   int64          `json:"quantity"`
	// Payload carries the purpose-specific details the effect needs
	// (registration form, donation record) so a verified payment can be
	// completed with no in-memory workflow around.
	Payload       json.RawMessage `json:"-"`
	Phase         WorkflowPhase   `json:"phase"`
	PreviousPhase WorkflowPhase   `json:"previous_phase,omitempty"`
	ConsumedAt    *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProviderTransaction is what the payment provider recorded for a reference.
// Amount and Currency here are the only figures trusted during verification.
type ProviderTransaction struct {
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Channel   string    `json:"channel,omitempty"`
	PaidAt    time.Time `json:"paid_at,omitempty"`
}

// ProviderStatusSuccess is the provider's terminal success status. Anything
// else fails verification.
const ProviderStatusSuccess = "success"

// AuditEvent is published to Kafka on every verification outcome and effect
// application. Failed effects after a captured payment form the manual
// reconciliation queue.
type AuditEvent struct {
	Kind      string         `json:"kind"`
	Reference string         `json:"reference"`
	Purpose   PaymentPurpose `json:"purpose"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Detail    string         `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const (
	AuditPaymentVerified = "payment.verified"
	AuditPaymentRejected = "payment.rejected"
	AuditEffectApplied   = "payment.effect.applied"
	AuditEffectFailed    = "payment.effect.failed"
)
