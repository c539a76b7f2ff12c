package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/streetgottalent/vote-payments/internal/models"
)

type StreetfoodRepository struct {
	db *sql.DB
}

func NewStreetfoodRepository(db *sql.DB) *StreetfoodRepository {
	return &StreetfoodRepository{db: db}
}

func (r *StreetfoodRepository) GetByID(ctx context.Context, id string) (*models.StreetfoodItem, error) {
	var item models.StreetfoodItem
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, vote_power, image_url FROM streetfoods WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Price, &item.VotePower, &imageURL)
	if err != nil {
		return nil, err
	}
	item.ImageURL = imageURL.String
	return &item, nil
}

func (r *StreetfoodRepository) List(ctx context.Context) ([]models.StreetfoodItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, price, vote_power, image_url FROM streetfoods ORDER BY price ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.StreetfoodItem
	for rows.Next() {
		var item models.StreetfoodItem
		var imageURL sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.VotePower, &imageURL); err != nil {
			return nil, err
		}
		item.ImageURL = imageURL.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *StreetfoodRepository) Create(ctx context.Context, item *models.StreetfoodItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streetfoods (id, name, price, vote_power, image_url)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.Name, item.Price, item.VotePower, item.ImageURL)
	return err
}

func (r *StreetfoodRepository) Update(ctx context.Context, item *models.StreetfoodItem) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE streetfoods SET name = $1, price = $2, vote_power = $3, image_url = $4
		WHERE id = $5
	`, item.Name, item.Price, item.VotePower, item.ImageURL, item.ID)
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

func (r *StreetfoodRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM streetfoods WHERE id = $1`, id)
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
