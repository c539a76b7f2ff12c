package repository

import (
	"context"
	"database/sql"

	"github.com/streetgottalent/vote-payments/internal/models"
)

type PaymentLedgerRepository struct {
	db *sql.DB
}

func NewPaymentLedgerRepository(db *sql.DB) *PaymentLedgerRepository {
	return &PaymentLedgerRepository{db: db}
}

func (r *PaymentLedgerRepository) CreateRecord(ctx context.Context, rec *models.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (reference, purpose, amount, currency, payer_email, subject_id, item_id, quantity, payload, phase, previous_phase)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) DO NOTHING
	`, rec.Reference, rec.Purpose, rec.Amount, rec.Currency, rec.PayerEmail,
		rec.SubjectID, rec.ItemID, rec.Quantity, []byte(rec.Payload), rec.Phase, rec.PreviousPhase)
	return err
}

func (r *PaymentLedgerRepository) TransitionPhase(ctx context.Context, reference string, from, to models.WorkflowPhase) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET phase = $1, previous_phase = $2, updated_at = NOW()
		WHERE reference = $3 AND phase = $4
	`, to, from, reference, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentLedgerRepository) GetByReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	var subjectID, itemID, previousPhase sql.NullString
	var consumedAt sql.NullTime
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT reference, purpose, amount, currency, payer_email, subject_id, item_id, quantity,
		       payload, phase, previous_phase, consumed_at, created_at, updated_at
		FROM payments WHERE reference = $1
	`, reference).Scan(&rec.Reference, &rec.Purpose, &rec.Amount, &rec.Currency, &rec.PayerEmail,
		&subjectID, &itemID, &rec.Quantity, &payload, &rec.Phase, &previousPhase, &consumedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.SubjectID = subjectID.String
	rec.ItemID = itemID.String
	rec.Payload = payload
	rec.PreviousPhase = models.WorkflowPhase(previousPhase.String)
	if consumedAt.Valid {
		rec.ConsumedAt = &consumedAt.Time
	}
	return &rec, nil
}

// MarkConsumed is the replay guard: the WHERE clause lets exactly one caller
// win per reference.
func (r *PaymentLedgerRepository) MarkConsumed(ctx context.Context, reference string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET consumed_at = NOW(), updated_at = NOW()
		WHERE reference = $1 AND consumed_at IS NULL
	`, reference)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *PaymentLedgerRepository) History(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference, purpose, amount, currency, payer_email, quantity, phase, created_at, updated_at
		FROM payments ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		var rec models.PaymentRecord
		if err := rows.Scan(&rec.Reference, &rec.Purpose, &rec.Amount, &rec.Currency,
			&rec.PayerEmail, &rec.Quantity, &rec.Phase, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
