package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"sync"

	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/payment"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

const defaultCurrency = "NGN"

// PhaseUpdate is one observable step of a workflow. Reason is set on the
// aborted phase only.
type PhaseUpdate struct {
	Phase  models.WorkflowPhase `json:"phase"`
	Reason string               `json:"reason,omitempty"`
}

// WorkflowResult is the terminal outcome of a workflow.
type WorkflowResult struct {
	Phase      models.WorkflowPhase    `json:"phase"`
	Reason     string                  `json:"reason,omitempty"`
	VoteTotal  int64                   `json:"vote_total,omitempty"`
	Contestant *models.Contestant      `json:"contestant,omitempty"`
	Receipt    *models.DonationReceipt `json:"receipt,omitempty"`
}

// Workflow is one in-flight payment-gated effect. The UI subscribes to
// Updates and may Cancel while the hosted payment is still pending.
type Workflow struct {
	reference string
	authURL   string
	updates   chan PhaseUpdate
	done      chan struct{}
	cancel    func()

	mu     sync.Mutex
	phase  models.WorkflowPhase
	result *WorkflowResult
}

func (w *Workflow) Reference() string        { return w.reference }
func (w *Workflow) AuthorizationURL() string { return w.authURL }

// Updates streams phase changes until the workflow reaches a terminal phase,
// then closes.
func (w *Workflow) Updates() <-chan PhaseUpdate { return w.updates }

// Done closes when the workflow reaches done or aborted.
func (w *Workflow) Done() <-chan struct{} { return w.done }

// Phase is the current phase.
func (w *Workflow) Phase() models.WorkflowPhase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Result is nil until the workflow is terminal.
func (w *Workflow) Result() *WorkflowResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Cancel aborts the workflow if the hosted payment is still pending. After
// the success callback has fired it is a no-op: effect application cannot be
// interrupted.
func (w *Workflow) Cancel() {
	w.cancel()
}

// Orchestrator drives initiate → verify → apply strictly in sequence. No
// stage runs before its predecessor resolved, and the effect stage is never
// entered without a verified result for the same reference.
type Orchestrator struct {
	initiator   *payment.Initiator
	verifier    *Verifier
	effects     *Effects
	quoter      *Quoter
	ledger      interfaces.PaymentLedger
	contestants interfaces.ContestantRepository
	seasons     interfaces.SeasonRepository
}

func NewOrchestrator(
	initiator *payment.Initiator,
	verifier *Verifier,
	effects *Effects,
	quoter *Quoter,
	ledger interfaces.PaymentLedger,
	contestants interfaces.ContestantRepository,
	seasons interfaces.SeasonRepository,
) *Orchestrator {
	return &Orchestrator{
		initiator:   initiator,
		verifier:    verifier,
		effects:     effects,
		quoter:      quoter,
		ledger:      ledger,
		contestants: contestants,
		seasons:     seasons,
	}
}

type VotePurchaseRequest struct {
	ContestantID string `json:"contestant_id"`
	ItemID       string `json:"item_id"`
	Quantity     int64  `json:"quantity"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
}

// StartVotePurchase validates the fan's choice, resolves contestant and item
// server-side, and launches the workflow. Validation failures return
// synchronously before any network call.
func (o *Orchestrator) StartVotePurchase(ctx context.Context, req VotePurchaseRequest) (*Workflow, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}

	contestant, err := o.contestants.GetByID(ctx, req.ContestantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown contestant %q", ErrValidation, req.ContestantID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve contestant: %w", err)
	}
	if contestant.Status != models.ContestantActive {
		return nil, fmt.Errorf("%w: contestant %q is no longer in the competition", ErrValidation, req.ContestantID)
	}

	amount, _, err := o.quoter.VoteAmount(ctx, req.ItemID, req.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown streetfood %q", ErrValidation, req.ItemID)
	}
	if err != nil {
		return nil, err
	}

	intent := models.PaymentIntent{
		Purpose:    models.PurposeVote,
		Amount:     amount,
		Currency:   defaultCurrency,
		PayerEmail: req.Email,
		PayerName:  req.Name,
		SubjectID:  req.ContestantID,
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
	}

	return o.launch(ctx, intent, nil)
}

type RegistrationRequest struct {
	Payload  models.RegistrationPayload `json:"payload"`
	Currency string                     `json:"currency,omitempty"`
}

// StartRegistration checks the season gate before any payment is initiated;
// the gate is checked again at finalize time by the effect applier.
func (o *Orchestrator) StartRegistration(ctx context.Context, req RegistrationRequest) (*Workflow, error) {
	if req.Payload.Name == "" || req.Payload.PerformanceType == "" {
		return nil, fmt.Errorf("%w: name and performance type are required", ErrValidation)
	}
	if err := validateEmail(req.Payload.Email); err != nil {
		return nil, err
	}

	season, err := o.seasons.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current season: %w", err)
	}
	if !season.Acceptance {
		return nil, fmt.Errorf("%w: registration is closed", ErrValidation)
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	intent := models.PaymentIntent{
		Purpose:    models.PurposeRegistration,
		Amount:     season.RegistrationFee,
		Currency:   currency,
		PayerEmail: req.Payload.Email,
		PayerName:  req.Payload.Name,
		Quantity:   1,
	}

	return o.launch(ctx, intent, req.Payload)
}

type DonationRequest struct {
	models.DonationPayload
}

// StartDonation rejects amounts under the currency minimum before the hosted
// transaction is ever opened.
func (o *Orchestrator) StartDonation(ctx context.Context, req DonationRequest) (*Workflow, error) {
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := o.quoter.ValidateDonation(req.Currency, req.Amount); err != nil {
		return nil, err
	}

	intent := models.PaymentIntent{
		Purpose:    models.PurposeDonation,
		Amount:     req.Amount,
		Currency:   req.Currency,
		PayerEmail: req.Email,
		PayerName:  req.Name,
		Quantity:   1,
	}

	return o.launch(ctx, intent, req.DonationPayload)
}

// launch opens the hosted transaction, records the attempt in the ledger, and
// drives the remaining stages in the background. The workflow outlives the
// originating request: the payer may sit in the hosted checkout for minutes.
// payload is the purpose-specific data the effect needs; it is persisted with
// the record so the payment can also be completed through the manual path.
func (o *Orchestrator) launch(ctx context.Context, intent models.PaymentIntent, payload interface{}) (*Workflow, error) {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payment payload: %w", err)
		}
	}

	attempt := o.initiator.Open(ctx, intent)

	rec := &models.PaymentRecord{
		Reference:  attempt.Reference(),
		Purpose:    intent.Purpose,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		PayerEmail: intent.PayerEmail,
		SubjectID:  intent.SubjectID,
		ItemID:     intent.ItemID,
		Quantity:   intent.Quantity,
		Payload:    payloadJSON,
		Phase:      models.PhaseAwaitingPayment,
	}
	if err := o.ledger.CreateRecord(ctx, rec); err != nil {
		o.initiator.Resolve(attempt.Reference(), false, "internal error")
		return nil, fmt.Errorf("record payment attempt: %w", err)
	}

	wf := &Workflow{
		reference: attempt.Reference(),
		authURL:   attempt.AuthorizationURL(),
		updates:   make(chan PhaseUpdate, 8),
		done:      make(chan struct{}),
		phase:     models.PhaseAwaitingPayment,
	}
	reference := attempt.Reference()
	wf.cancel = func() {
		o.initiator.Resolve(reference, false, "cancelled by user")
	}

	go o.drive(context.WithoutCancel(ctx), wf, attempt, rec)
	return wf, nil
}

func (o *Orchestrator) drive(ctx context.Context, wf *Workflow, attempt *payment.Attempt, rec *models.PaymentRecord) {
	outcome := <-attempt.Outcome()

	if !outcome.Succeeded {
		reason := outcome.Reason
		if reason == "" {
			reason = "payment cancelled"
		}
		o.abort(ctx, wf, models.PhaseAwaitingPayment, reason)
		return
	}

	o.transition(ctx, wf, models.PhaseAwaitingPayment, models.PhaseVerifying, "")

	result, err := o.verifier.Verify(ctx, wf.reference, intentFromRecord(rec))
	if err != nil {
		o.abort(ctx, wf, models.PhaseVerifying, "verification error: "+err.Error())
		return
	}
	if !result.Verified {
		o.abort(ctx, wf, models.PhaseVerifying, result.Reason)
		return
	}

	o.transition(ctx, wf, models.PhaseVerifying, models.PhaseApplyingEffect, "")

	res, err := o.applyRecorded(ctx, rec)
	if err != nil {
		o.abort(ctx, wf, models.PhaseApplyingEffect, err.Error())
		return
	}

	o.transition(ctx, wf, models.PhaseApplyingEffect, models.PhaseDone, "")
	res.Phase = models.PhaseDone
	o.finish(wf, res)
}

// CompletePayment verifies a reference against its ledger record and applies
// the recorded effect. It backs POST /payments/verify: safe to call any
// number of times, before or after the widget callback, and it recovers a
// payment that was verified without its effect landing. The client supplies
// only the reference; everything else comes from the ledger.
func (o *Orchestrator) CompletePayment(ctx context.Context, reference string) (*WorkflowResult, error) {
	rec, err := o.ledger.GetByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return &WorkflowResult{Phase: models.PhaseAborted, Reason: ReasonUnknownReference}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment record: %w", err)
	}

	result, err := o.verifier.Verify(ctx, reference, intentFromRecord(rec))
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		// The record is left untouched: the payer may still complete the
		// charge and retry.
		return &WorkflowResult{Phase: models.PhaseAborted, Reason: result.Reason}, nil
	}

	o.persistTransition(ctx, reference, models.PhaseAwaitingPayment, models.PhaseVerifying)
	o.persistTransition(ctx, reference, models.PhaseVerifying, models.PhaseApplyingEffect)

	res, err := o.applyRecorded(ctx, rec)
	if errors.Is(err, ErrEffectFailed) {
		o.persistTransition(ctx, reference, models.PhaseApplyingEffect, models.PhaseAborted)
		return &WorkflowResult{Phase: models.PhaseAborted, Reason: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	o.persistTransition(ctx, reference, models.PhaseApplyingEffect, models.PhaseDone)

	// Wake any workflow still parked on the widget callback; it will observe
	// the verified reference and finish with the same result.
	o.initiator.Resolve(reference, true, "")

	res.Phase = models.PhaseDone
	return res, nil
}

// applyRecorded performs the business effect the record paid for. Idempotent
// per reference through the effect appliers.
func (o *Orchestrator) applyRecorded(ctx context.Context, rec *models.PaymentRecord) (*WorkflowResult, error) {
	switch rec.Purpose {
	case models.PurposeVote:
		total, err := o.effects.CreditVotes(ctx, rec.SubjectID, rec.ItemID, rec.Quantity, rec.Reference)
		if err != nil {
			return nil, err
		}
		return &WorkflowResult{VoteTotal: total}, nil
	case models.PurposeRegistration:
		var payload models.RegistrationPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode registration payload: %w", err)
		}
		contestant, err := o.effects.FinalizeRegistration(ctx, payload, rec.Reference)
		if err != nil {
			return nil, err
		}
		return &WorkflowResult{Contestant: contestant}, nil
	case models.PurposeDonation:
		var payload models.DonationPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode donation payload: %w", err)
		}
		receipt, err := o.effects.RecordDonation(ctx, payload, rec.Reference)
		if err != nil {
			return nil, err
		}
		return &WorkflowResult{Receipt: receipt}, nil
	default:
		return nil, fmt.Errorf("unknown payment purpose %q", rec.Purpose)
	}
}

func intentFromRecord(rec *models.PaymentRecord) models.PaymentIntent {
	return models.PaymentIntent{
		Purpose:    rec.Purpose,
		Amount:     rec.Amount,
		Currency:   rec.Currency,
		PayerEmail: rec.PayerEmail,
		SubjectID:  rec.SubjectID,
		ItemID:     rec.ItemID,
		Quantity:   rec.Quantity,
	}
}

func (o *Orchestrator) abort(ctx context.Context, wf *Workflow, from models.WorkflowPhase, reason string) {
	o.transition(ctx, wf, from, models.PhaseAborted, reason)
	o.finish(wf, &WorkflowResult{Phase: models.PhaseAborted, Reason: reason})
}

// transition persists the phase change, then notifies subscribers.
func (o *Orchestrator) transition(ctx context.Context, wf *Workflow, from, to models.WorkflowPhase, reason string) {
	o.persistTransition(ctx, wf.reference, from, to)

	wf.mu.Lock()
	wf.phase = to
	wf.mu.Unlock()

	select {
	case wf.updates <- PhaseUpdate{Phase: to, Reason: reason}:
	default:
	}
}

// persistTransition records the phase change with a compare-and-swap so a
// stale or duplicate driver can never rewind a workflow. A skipped swap means
// another driver got there first; the effect layer makes that harmless.
func (o *Orchestrator) persistTransition(ctx context.Context, reference string, from, to models.WorkflowPhase) {
	rows, err := o.ledger.TransitionPhase(ctx, reference, from, to)
	if err != nil {
		telemetry.Logger.Error("Failed to persist phase transition",
			zap.String("reference", reference),
			zap.String("from_phase", string(from)),
			zap.String("to_phase", string(to)),
			zap.Error(err),
		)
	} else if rows == 0 {
		telemetry.Logger.Warn("Phase transition skipped, record not in expected phase",
			zap.String("reference", reference),
			zap.String("from_phase", string(from)),
			zap.String("to_phase", string(to)),
		)
	}

	telemetry.Logger.Info("Workflow phase transition",
		zap.String("reference", reference),
		zap.String("from_phase", string(from)),
		zap.String("to_phase", string(to)),
	)
}

func (o *Orchestrator) finish(wf *Workflow, result *WorkflowResult) {
	wf.mu.Lock()
	wf.result = result
	wf.mu.Unlock()
	close(wf.updates)
	close(wf.done)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	return nil
}
