package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/streetgottalent/vote-payments/internal/models"
)

type SeasonRepository struct {
	db *sql.DB
}

func NewSeasonRepository(db *sql.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

func (r *SeasonRepository) Current(ctx context.Context) (*models.Season, error) {
	var season models.Season
	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, acceptance, registration_fee FROM seasons WHERE is_current = TRUE
	`).Scan(&season.ID, &season.Status, &season.Acceptance, &season.RegistrationFee)
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// Create opens a new season and retires the current one in one transaction.
func (r *SeasonRepository) Create(ctx context.Context, season *models.Season) error {
	if season.ID == "" {
		season.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE seasons SET is_current = FALSE WHERE is_current = TRUE`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO seasons (id, status, acceptance, registration_fee, is_current)
		VALUES ($1, $2, $3, $4, TRUE)
	`, season.ID, season.Status, season.Acceptance, season.RegistrationFee); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SeasonRepository) UpdateStatus(ctx context.Context, status models.SeasonStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET status = $1 WHERE is_current = TRUE`, status)
	return err
}

func (r *SeasonRepository) UpdateRegistrationFee(ctx context.Context, fee int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET registration_fee = $1 WHERE is_current = TRUE`, fee)
	return err
}

func (r *SeasonRepository) UpdateAcceptance(ctx context.Context, acceptance bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET acceptance = $1 WHERE is_current = TRUE`, acceptance)
	return err
}
