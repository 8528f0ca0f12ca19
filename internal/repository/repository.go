package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/model"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/tracker"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Users

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt)
	return user, mapNoRows(err)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt)
	return user, mapNoRows(err)
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.Name, user.Role, user.CreatedAt)
	return err
}

func (s *Store) CountEmployees(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, model.RoleEmployee).Scan(&count)
	return count, err
}

// ListEmployeesToday returns the employee roster joined with today's
// attendance, the admin monitoring view.
func (s *Store) ListEmployeesToday(ctx context.Context, day time.Time) ([]model.EmployeeToday, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.name, u.email, a.status, a.check_in
		FROM users u
		LEFT JOIN attendance a ON a.user_id = u.id AND a.day = $1
		WHERE u.role = $2
		ORDER BY u.name
	`, day, model.RoleEmployee)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []model.EmployeeToday
	for rows.Next() {
		var emp model.EmployeeToday
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.TodayStatus, &emp.CheckInTime); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// Attendance

func (s *Store) GetAttendance(ctx context.Context, userID string, day time.Time) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, day, check_in, check_out, status
		FROM attendance
		WHERE user_id = $1 AND day = $2
	`, userID, day)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Day, &rec.CheckIn, &rec.CheckOut, &rec.Status)
	return rec, mapNoRows(err)
}

func (s *Store) CreateAttendance(ctx context.Context, rec model.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (id, user_id, day, check_in, status)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.UserID, rec.Day, rec.CheckIn, rec.Status)
	if isUniqueViolation(err) {
		return tracker.ErrAlreadyCheckedIn
	}
	return err
}

func (s *Store) SetCheckOut(ctx context.Context, recordID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attendance SET check_out = $1
		WHERE id = $2 AND check_out IS NULL
	`, at, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tracker.ErrAlreadyCheckedOut
	}
	return nil
}

func (s *Store) ListAttendanceByUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, day, check_in, check_out, status
		FROM attendance
		WHERE user_id = $1
		ORDER BY day DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Day, &rec.CheckIn, &rec.CheckOut, &rec.Status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) CountPresent(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE day = $1`, day).Scan(&count)
	return count, err
}

// Sessions

func (s *Store) GetActiveSession(ctx context.Context, userID string) (model.WorkSession, error) {
	var session model.WorkSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_minutes, work_uploaded
		FROM sessions
		WHERE user_id = $1 AND ended_at IS NULL
	`, userID)
	err := row.Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt, &session.DurationMinutes, &session.WorkUploaded)
	return session, mapNoRows(err)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (model.WorkSession, error) {
	var session model.WorkSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_minutes, work_uploaded
		FROM sessions
		WHERE id = $1
	`, sessionID)
	err := row.Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt, &session.DurationMinutes, &session.WorkUploaded)
	return session, mapNoRows(err)
}

func (s *Store) CreateSession(ctx context.Context, session model.WorkSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, started_at, work_uploaded)
		VALUES ($1, $2, $3, false)
	`, session.ID, session.UserID, session.StartedAt)
	if isUniqueViolation(err) {
		return tracker.ErrSessionActive
	}
	return err
}

func (s *Store) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationMinutes int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET ended_at = $1, duration_minutes = $2
		WHERE id = $3 AND ended_at IS NULL
	`, endedAt, durationMinutes, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tracker.ErrNoActiveSession
	}
	return nil
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]model.WorkSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_minutes, work_uploaded
		FROM sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.WorkSession
	for rows.Next() {
		var session model.WorkSession
		if err := rows.Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt, &session.DurationMinutes, &session.WorkUploaded); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Work uploads

// CreateWorkUpload inserts the upload and flips the session flag as one
// transaction, so an upload never exists against an unmarked session.
func (s *Store) CreateWorkUpload(ctx context.Context, upload model.WorkUpload) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO work_uploads (id, session_id, user_id, project_name, task_id, description, repo_link, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, upload.ID, upload.SessionID, upload.UserID, upload.ProjectName, upload.TaskID, upload.Description, upload.RepoLink, upload.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE sessions SET work_uploaded = true WHERE id = $1`, upload.SessionID)
		return err
	})
}

func (s *Store) ListWorkUploadsByUser(ctx context.Context, userID string, limit int32) ([]model.WorkUpload, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_id, project_name, task_id, description, repo_link, created_at
		FROM work_uploads
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []model.WorkUpload
	for rows.Next() {
		var upload model.WorkUpload
		if err := rows.Scan(&upload.ID, &upload.SessionID, &upload.UserID, &upload.ProjectName, &upload.TaskID, &upload.Description, &upload.RepoLink, &upload.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *Store) UpsertSettings(ctx context.Context, updates map[string]string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for key, value := range updates {
			_, err := tx.Exec(ctx, `
				INSERT INTO settings (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
			`, key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Helpers

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return tracker.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
