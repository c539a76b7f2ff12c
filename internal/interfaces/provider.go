package interfaces

import (
	"context"
	"errors"

	"github.com/streetgottalent/vote-payments/internal/models"
)

// ErrTransactionNotFound means the provider has no record of a reference.
var ErrTransactionNotFound = errors.New("transaction not found")

// PaymentProvider is the hosted payment collaborator. It is untrusted for
// authorization: only the record returned by VerifyTransaction carries weight,
// and only the backend interprets it.
type PaymentProvider interface {
	// InitializeTransaction opens a hosted checkout for the intent under the
	// given reference and returns the authorization URL the payer is sent to.
	InitializeTransaction(ctx context.Context, reference string, intent models.PaymentIntent) (string, error)
	// VerifyTransaction fetches what the provider recorded for a reference.
	VerifyTransaction(ctx context.Context, reference string) (*models.ProviderTransaction, error)
}

// AuditPublisher carries verification and effect outcomes to the audit stream.
type AuditPublisher interface {
	Publish(ctx context.Context, event models.AuditEvent) error
}

// TallyPublisher fans out live vote totals to subscribed clients.
type TallyPublisher interface {
	PublishVoteTally(contestantID string, votes int64) error
}
