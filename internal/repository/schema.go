package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/crypto"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/model"
)

// The partial unique index on sessions is what makes the single-active-
// session rule hold under concurrent starts; the attendance UNIQUE does
// the same for double check-ins.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'employee')),
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance (
	id        UUID PRIMARY KEY,
	user_id   UUID NOT NULL REFERENCES users(id),
	day       DATE NOT NULL,
	check_in  TIMESTAMPTZ NOT NULL,
	check_out TIMESTAMPTZ,
	status    TEXT NOT NULL,
	CONSTRAINT attendance_user_day_key UNIQUE (user_id, day)
);

CREATE TABLE IF NOT EXISTS sessions (
	id               UUID PRIMARY KEY,
	user_id          UUID NOT NULL REFERENCES users(id),
	started_at       TIMESTAMPTZ NOT NULL,
	ended_at         TIMESTAMPTZ,
	duration_minutes BIGINT,
	work_uploaded    BOOLEAN NOT NULL DEFAULT false
);

CREATE UNIQUE INDEX IF NOT EXISTS sessions_active_user_key
	ON sessions (user_id) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS work_uploads (
	id           UUID PRIMARY KEY,
	session_id   UUID NOT NULL REFERENCES sessions(id),
	user_id      UUID NOT NULL REFERENCES users(id),
	project_name TEXT NOT NULL,
	task_id      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	repo_link    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

var defaultSettings = map[string]string{
	"min_daily_hours":      "8",
	"max_session_duration": "4",
	"late_threshold":       "09:15",
	"auto_checkout":        "19:00",
}

// SeedDemoData inserts the two demo accounts and the default settings when
// the users table is empty.
func (s *Store) SeedDemoData(ctx context.Context) error {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	seedUsers := []struct {
		email, password, name, role string
	}{
		{"cto@tarqen.com", "password123", "Admin CTO", model.RoleAdmin},
		{"employee@tarqen.com", "password123", "John Employee", model.RoleEmployee},
	}
	for _, seed := range seedUsers {
		hash, err := crypto.HashPassword(seed.password)
		if err != nil {
			return err
		}
		if err := s.CreateUser(ctx, model.User{
			ID:           uuid.New().String(),
			Email:        seed.email,
			PasswordHash: hash,
			Name:         seed.name,
			Role:         seed.role,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
	}
	return s.UpsertSettings(ctx, defaultSettings)
}
