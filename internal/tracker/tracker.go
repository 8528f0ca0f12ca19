// Package tracker holds the attendance and work-session rules: one
// attendance record per user per day, one open session per user, duration
// fixed at close, uploads bound to sessions they own.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/model"
)

// Store is the persistence the tracker needs. Implementations must run
// each mutating call in its own transaction and enforce the attendance
// (user, day) and single-open-session uniqueness at the storage level, so
// a concurrent duplicate insert surfaces as ErrAlreadyCheckedIn or
// ErrSessionActive instead of a second row.
type Store interface {
	GetAttendance(ctx context.Context, userID string, day time.Time) (model.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, rec model.AttendanceRecord) error
	SetCheckOut(ctx context.Context, recordID string, at time.Time) error

	GetActiveSession(ctx context.Context, userID string) (model.WorkSession, error)
	GetSession(ctx context.Context, sessionID string) (model.WorkSession, error)
	CreateSession(ctx context.Context, session model.WorkSession) error
	CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationMinutes int64) error

	// CreateWorkUpload inserts the upload and marks its session as
	// uploaded in the same transaction.
	CreateWorkUpload(ctx context.Context, upload model.WorkUpload) error

	CountEmployees(ctx context.Context) (int64, error)
	CountPresent(ctx context.Context, day time.Time) (int64, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Status is the employee dashboard view: today's attendance endpoints and
// the open session, if any.
type Status struct {
	CheckedIn     bool
	CheckInTime   *time.Time
	CheckOutTime  *time.Time
	ActiveSession *model.WorkSession
}

type Stats struct {
	TotalEmployees int64
	PresentToday   int64
	AbsentToday    int64
}

// UploadRequest carries the work-upload fields the employee submits.
type UploadRequest struct {
	SessionID   string
	ProjectName string
	TaskID      string
	Description string
	RepoLink    string
}

func (s *Service) CheckIn(ctx context.Context, userID string, now time.Time) error {
	day := dayOf(now)
	_, err := s.store.GetAttendance(ctx, userID, day)
	if err == nil {
		return ErrAlreadyCheckedIn
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.store.CreateAttendance(ctx, model.AttendanceRecord{
		ID:      uuid.New().String(),
		UserID:  userID,
		Day:     day,
		CheckIn: now.UTC(),
		Status:  model.AttendanceStatusPresent,
	})
}

func (s *Service) CheckOut(ctx context.Context, userID string, now time.Time) error {
	rec, err := s.store.GetAttendance(ctx, userID, dayOf(now))
	if errors.Is(err, ErrNotFound) {
		return ErrNotCheckedIn
	}
	if err != nil {
		return err
	}
	if rec.CheckOut != nil {
		return ErrAlreadyCheckedOut
	}
	return s.store.SetCheckOut(ctx, rec.ID, now.UTC())
}

func (s *Service) StartSession(ctx context.Context, userID string, now time.Time) (model.WorkSession, error) {
	_, err := s.store.GetActiveSession(ctx, userID)
	if err == nil {
		return model.WorkSession{}, ErrSessionActive
	}
	if !errors.Is(err, ErrNotFound) {
		return model.WorkSession{}, err
	}
	session := model.WorkSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		StartedAt: now.UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return model.WorkSession{}, err
	}
	return session, nil
}

// EndSession closes the open session and fixes its duration in whole
// minutes, floor of the elapsed time.
func (s *Service) EndSession(ctx context.Context, userID string, now time.Time) (model.WorkSession, error) {
	session, err := s.store.GetActiveSession(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return model.WorkSession{}, ErrNoActiveSession
	}
	if err != nil {
		return model.WorkSession{}, err
	}
	endedAt := now.UTC()
	duration := int64(endedAt.Sub(session.StartedAt) / time.Minute)
	if duration < 0 {
		duration = 0
	}
	if err := s.store.CloseSession(ctx, session.ID, endedAt, duration); err != nil {
		return model.WorkSession{}, err
	}
	session.EndedAt = &endedAt
	session.DurationMinutes = &duration
	return session, nil
}

// SubmitWork requires the target session to exist and to belong to the
// submitting user. Closed sessions still accept uploads.
func (s *Service) SubmitWork(ctx context.Context, userID string, req UploadRequest, now time.Time) error {
	session, err := s.store.GetSession(ctx, req.SessionID)
	if errors.Is(err, ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return ErrNotSessionOwner
	}
	return s.store.CreateWorkUpload(ctx, model.WorkUpload{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		UserID:      userID,
		ProjectName: req.ProjectName,
		TaskID:      req.TaskID,
		Description: req.Description,
		RepoLink:    req.RepoLink,
		CreatedAt:   now.UTC(),
	})
}

func (s *Service) Status(ctx context.Context, userID string, now time.Time) (Status, error) {
	var status Status

	rec, err := s.store.GetAttendance(ctx, userID, dayOf(now))
	if err == nil {
		status.CheckedIn = true
		checkIn := rec.CheckIn
		status.CheckInTime = &checkIn
		status.CheckOutTime = rec.CheckOut
	} else if !errors.Is(err, ErrNotFound) {
		return Status{}, err
	}

	session, err := s.store.GetActiveSession(ctx, userID)
	if err == nil {
		status.ActiveSession = &session
	} else if !errors.Is(err, ErrNotFound) {
		return Status{}, err
	}
	return status, nil
}

func (s *Service) Stats(ctx context.Context, now time.Time) (Stats, error) {
	total, err := s.store.CountEmployees(ctx)
	if err != nil {
		return Stats{}, err
	}
	present, err := s.store.CountPresent(ctx, dayOf(now))
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalEmployees: total,
		PresentToday:   present,
		AbsentToday:    total - present,
	}, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
