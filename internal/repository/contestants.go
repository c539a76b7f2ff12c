package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
)

type ContestantRepository struct {
	db *sql.DB
}

func NewContestantRepository(db *sql.DB) *ContestantRepository {
	return &ContestantRepository{db: db}
}

func (r *ContestantRepository) GetByID(ctx context.Context, id string) (*models.Contestant, error) {
	return scanContestant(r.db.QueryRowContext(ctx, `
		SELECT id, name, performance_type, votes, status, socials, image_url, created_at
		FROM contestants WHERE id = $1
	`, id))
}

func (r *ContestantRepository) ListCurrent(ctx context.Context) ([]models.Contestant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, performance_type, votes, status, socials, image_url, created_at
		FROM contestants ORDER BY votes DESC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contestants []models.Contestant
	for rows.Next() {
		c, err := scanContestant(rows)
		if err != nil {
			return nil, err
		}
		contestants = append(contestants, *c)
	}
	return contestants, rows.Err()
}

// CreditVotes adds votes atomically, keyed by reference. The effect ledger
// insert and the increment share one transaction, so a duplicate reference
// never double-credits: the loser of the insert reads back the total the
// winner recorded.
func (r *ContestantRepository) CreditVotes(ctx context.Context, contestantID string, votes int64, reference string) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO applied_effects (reference, kind, result_id)
		VALUES ($1, 'vote', $2)
		ON CONFLICT (reference) DO NOTHING
	`, reference, contestantID)
	if err != nil {
		return 0, false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	if inserted == 0 {
		// Already applied; return the total recorded by the first caller.
		var total int64
		if err := tx.QueryRowContext(ctx,
			`SELECT result_total FROM applied_effects WHERE reference = $1`, reference).Scan(&total); err != nil {
			return 0, false, err
		}
		return total, false, tx.Commit()
	}

	var total int64
	err = tx.QueryRowContext(ctx, `
		UPDATE contestants SET votes = votes + $1 WHERE id = $2 RETURNING votes
	`, votes, contestantID).Scan(&total)
	if err != nil {
		return 0, false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE applied_effects SET result_total = $1 WHERE reference = $2`, total, reference); err != nil {
		return 0, false, err
	}

	return total, true, tx.Commit()
}

// FinalizeRegistration creates the contestant inside a transaction that
// re-reads the season gate, so a window that closed after the intent was
// built still rejects here.
func (r *ContestantRepository) FinalizeRegistration(ctx context.Context, payload models.RegistrationPayload, reference string) (*models.Contestant, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var existingID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT result_id FROM applied_effects WHERE reference = $1`, reference).Scan(&existingID)
	if err == nil && existingID.Valid {
		contestant, gerr := r.GetByID(ctx, existingID.String)
		if gerr != nil {
			return nil, false, gerr
		}
		return contestant, false, tx.Commit()
	}
	if err != nil && err != sql.ErrNoRows {
		return nil, false, err
	}

	var acceptance bool
	err = tx.QueryRowContext(ctx,
		`SELECT acceptance FROM seasons WHERE is_current = TRUE`).Scan(&acceptance)
	if err != nil {
		return nil, false, err
	}
	if !acceptance {
		return nil, false, interfaces.ErrRegistrationClosed
	}

	socials, err := json.Marshal(payload.Socials)
	if err != nil {
		return nil, false, err
	}

	contestant := &models.Contestant{
		ID:              uuid.NewString(),
		Name:            payload.Name,
		PerformanceType: payload.PerformanceType,
		Status:          models.ContestantActive,
		Socials:         payload.Socials,
		ImageURL:        payload.ImageURL,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO contestants (id, name, performance_type, status, socials, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, contestant.ID, contestant.Name, contestant.PerformanceType, contestant.Status,
		socials, contestant.ImageURL).Scan(&contestant.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO applied_effects (reference, kind, result_id)
		VALUES ($1, 'registration', $2)
	`, reference, contestant.ID); err != nil {
		return nil, false, err
	}

	return contestant, true, tx.Commit()
}

func (r *ContestantRepository) Eliminate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contestants SET status = $1 WHERE id = $2`, models.ContestantEvicted, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContestant(row rowScanner) (*models.Contestant, error) {
	var c models.Contestant
	var socials []byte
	var imageURL sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.PerformanceType, &c.Votes, &c.Status,
		&socials, &imageURL, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ImageURL = imageURL.String
	if len(socials) > 0 {
		if err := json.Unmarshal(socials, &c.Socials); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
