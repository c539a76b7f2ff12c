package repository

import "database/sql"

// InitDB creates the schema. Safe to run on every start.
func InitDB(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			reference VARCHAR(255) PRIMARY KEY,
			purpose VARCHAR(50) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL,
			payer_email VARCHAR(255) NOT NULL,
			subject_id VARCHAR(255),
			item_id VARCHAR(255),
			quantity BIGINT NOT NULL DEFAULT 1,
			payload JSONB,
			phase VARCHAR(50) NOT NULL,
			previous_phase VARCHAR(50),
			consumed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_phase ON payments(phase)`,
		`CREATE TABLE IF NOT EXISTS applied_effects (
			reference VARCHAR(255) PRIMARY KEY,
			kind VARCHAR(50) NOT NULL,
			result_id VARCHAR(255),
			result_total BIGINT,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS contestants (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			performance_type VARCHAR(100) NOT NULL,
			votes BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(50) NOT NULL DEFAULT 'active',
			socials JSONB,
			image_url TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS streetfoods (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			vote_power BIGINT NOT NULL,
			image_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS seasons (
			id VARCHAR(255) PRIMARY KEY,
			status VARCHAR(50) NOT NULL,
			acceptance BOOLEAN NOT NULL DEFAULT FALSE,
			registration_fee BIGINT NOT NULL DEFAULT 0,
			is_current BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS donations (
			id VARCHAR(255) PRIMARY KEY,
			reference VARCHAR(255) NOT NULL UNIQUE,
			donor_name VARCHAR(255),
			donor_email VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id VARCHAR(255) PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS admin_tokens (
			token VARCHAR(255) PRIMARY KEY,
			label VARCHAR(255),
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
