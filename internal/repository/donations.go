package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/streetgottalent/vote-payments/internal/models"
)

type DonationRepository struct {
	db *sql.DB
}

func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Record inserts once per reference; the unique constraint makes retries
// return the first receipt.
func (r *DonationRepository) Record(ctx context.Context, payload models.DonationPayload, reference string) (*models.DonationReceipt, bool, error) {
	donorName := payload.Name
	if donorName == "" {
		donorName = "Anonymous"
	}

	receipt := &models.DonationReceipt{
		ID:        uuid.NewString(),
		Reference: reference,
		DonorName: donorName,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO donations (id, reference, donor_name, donor_email, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference) DO NOTHING
		RETURNING recorded_at
	`, receipt.ID, reference, donorName, payload.Email, payload.Amount, payload.Currency).Scan(&receipt.RecordedAt)

	if err == sql.ErrNoRows {
		// Conflict: return what the first caller recorded.
		var prior models.DonationReceipt
		err = r.db.QueryRowContext(ctx, `
			SELECT id, reference, donor_name, amount, currency, recorded_at
			FROM donations WHERE reference = $1
		`, reference).Scan(&prior.ID, &prior.Reference, &prior.DonorName,
			&prior.Amount, &prior.Currency, &prior.RecordedAt)
		if err != nil {
			return nil, false, err
		}
		return &prior, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return receipt, true, nil
}
