package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
)

// AdminTokenRepository issues and verifies admin bearer tokens. The token is
// presented on every request; nothing about admin identity lives client-side
// beyond the opaque token itself.
type AdminTokenRepository struct {
	db *sql.DB
}

func NewAdminTokenRepository(db *sql.DB) *AdminTokenRepository {
	return &AdminTokenRepository{db: db}
}

// Login checks the username/password pair against the stored bcrypt hash and
// issues a fresh token on success.
func (r *AdminTokenRepository) Login(ctx context.Context, username, password string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM admins WHERE username = $1`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", interfaces.ErrInvalidLogin
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", interfaces.ErrInvalidLogin
	}

	token := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_tokens (token, label) VALUES ($1, $2)`, token, username); err != nil {
		return "", err
	}
	return token, nil
}

func (r *AdminTokenRepository) VerifyAdminToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT revoked FROM admin_tokens WHERE token = $1`, token).Scan(&revoked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !revoked, nil
}
