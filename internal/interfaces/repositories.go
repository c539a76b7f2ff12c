package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/streetgottalent/vote-payments/internal/models"
)

// ErrRegistrationClosed is returned by FinalizeRegistration when the season
// stopped accepting contestants between intent and finalization.
var ErrRegistrationClosed = errors.New("registration is closed")

// PaymentLedger records every payment attempt and its workflow phase.
// References are consumed at most once.
type PaymentLedger interface {
	CreateRecord(ctx context.Context, rec *models.PaymentRecord) error
	// TransitionPhase moves the record from one phase to another only if it
	// is still in the from phase; returns affected rows.
	TransitionPhase(ctx context.Context, reference string, from, to models.WorkflowPhase) (int64, error)
	GetByReference(ctx context.Context, reference string) (*models.PaymentRecord, error)
	// MarkConsumed sets consumed_at once; false means the reference was
	// already consumed by a prior verification.
	MarkConsumed(ctx context.Context, reference string) (bool, error)
	History(ctx context.Context, limit int) ([]models.PaymentRecord, error)
}

// ContestantRepository owns contestants and their vote totals. Mutations keyed
// by a payment reference are idempotent: a duplicate reference reports
// applied == false and the unchanged state.
type ContestantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contestant, error)
	ListCurrent(ctx context.Context) ([]models.Contestant, error)
	// CreditVotes atomically adds votes to a contestant, recording the
	// reference in the effect ledger in the same transaction. Returns the
	// resulting vote total and whether this call applied the credit.
	CreditVotes(ctx context.Context, contestantID string, votes int64, reference string) (int64, bool, error)
	// FinalizeRegistration creates the contestant if the current season still
	// accepts registrations; ErrRegistrationClosed otherwise. Idempotent per
	// reference.
	FinalizeRegistration(ctx context.Context, payload models.RegistrationPayload, reference string) (*models.Contestant, bool, error)
	Eliminate(ctx context.Context, id string) error
}

type StreetfoodRepository interface {
	GetByID(ctx context.Context, id string) (*models.StreetfoodItem, error)
	List(ctx context.Context) ([]models.StreetfoodItem, error)
	Create(ctx context.Context, item *models.StreetfoodItem) error
	Update(ctx context.Context, item *models.StreetfoodItem) error
	Delete(ctx context.Context, id string) error
}

type SeasonRepository interface {
	Current(ctx context.Context) (*models.Season, error)
	// Create opens a new season as the current one, retiring the previous.
	Create(ctx context.Context, season *models.Season) error
	UpdateStatus(ctx context.Context, status models.SeasonStatus) error
	UpdateRegistrationFee(ctx context.Context, fee int64) error
	UpdateAcceptance(ctx context.Context, acceptance bool) error
}

type DonationRepository interface {
	// Record stores the donation once per reference; a duplicate reference
	// returns the previously recorded receipt and recorded == false.
	Record(ctx context.Context, payload models.DonationPayload, reference string) (*models.DonationReceipt, bool, error)
}

// ErrInvalidLogin is returned by Login for a bad username/password pair.
var ErrInvalidLogin = errors.New("invalid username or password")

// AdminCredentialVerifier checks an admin bearer token against the backend.
// The token is carried per request, never held in client-global state.
type AdminCredentialVerifier interface {
	VerifyAdminToken(ctx context.Context, token string) (bool, error)
}

// AdminAuthenticator checks a username/password pair and issues the bearer
// token the admin surface expects.
type AdminAuthenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// ReferenceLocker serialises concurrent verification or effect application
// for one reference. First caller wins; others see acquired == false.
type ReferenceLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
