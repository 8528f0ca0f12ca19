package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/model"
)

// memStore mirrors the repository contract, including the
// constraint-backed conflicts on duplicate inserts.
type memStore struct {
	mu         sync.Mutex
	attendance map[string]model.AttendanceRecord
	sessions   map[string]model.WorkSession
	uploads    map[string]model.WorkUpload
	employees  int64
}

func newMemStore(employees int64) *memStore {
	return &memStore{
		attendance: make(map[string]model.AttendanceRecord),
		sessions:   make(map[string]model.WorkSession),
		uploads:    make(map[string]model.WorkUpload),
		employees:  employees,
	}
}

func attendanceKey(userID string, day time.Time) string {
	return userID + "|" + day.Format("2006-01-02")
}

func (m *memStore) GetAttendance(_ context.Context, userID string, day time.Time) (model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.attendance[attendanceKey(userID, day)]
	if !ok {
		return model.AttendanceRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) CreateAttendance(_ context.Context, rec model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey(rec.UserID, rec.Day)
	if _, ok := m.attendance[key]; ok {
		return ErrAlreadyCheckedIn
	}
	m.attendance[key] = rec
	return nil
}

func (m *memStore) SetCheckOut(_ context.Context, recordID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.attendance {
		if rec.ID == recordID {
			rec.CheckOut = &at
			m.attendance[key] = rec
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) GetActiveSession(_ context.Context, userID string) (model.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.UserID == userID && session.EndedAt == nil {
			return session, nil
		}
	}
	return model.WorkSession{}, ErrNotFound
}

func (m *memStore) GetSession(_ context.Context, sessionID string) (model.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.WorkSession{}, ErrNotFound
	}
	return session, nil
}

func (m *memStore) CreateSession(_ context.Context, session model.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.UserID == session.UserID && existing.EndedAt == nil {
			return ErrSessionActive
		}
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) CloseSession(_ context.Context, sessionID string, endedAt time.Time, durationMinutes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.EndedAt = &endedAt
	session.DurationMinutes = &durationMinutes
	m.sessions[sessionID] = session
	return nil
}

func (m *memStore) CreateWorkUpload(_ context.Context, upload model.WorkUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[upload.SessionID]
	if !ok {
		return ErrNotFound
	}
	m.uploads[upload.ID] = upload
	session.WorkUploaded = true
	m.sessions[upload.SessionID] = session
	return nil
}

func (m *memStore) CountEmployees(_ context.Context) (int64, error) {
	return m.employees, nil
}

func (m *memStore) CountPresent(_ context.Context, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var present int64
	for _, rec := range m.attendance {
		if rec.Day.Equal(day) {
			present++
		}
	}
	return present, nil
}

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return baseDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestCheckInTwiceSameDay(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}
	if err := svc.CheckIn(ctx, "user-1", at(10, 0)); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
}

func TestCheckInNextDayAllowed(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if err := svc.CheckIn(ctx, "user-1", at(9, 0).AddDate(0, 0, 1)); err != nil {
		t.Fatalf("next-day check-in failed: %v", err)
	}
}

func TestCheckOutBeforeCheckIn(t *testing.T) {
	svc := NewService(newMemStore(1))
	if err := svc.CheckOut(context.Background(), "user-1", at(18, 0)); !errors.Is(err, ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestCheckOutTwice(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if err := svc.CheckOut(ctx, "user-1", at(17, 0)); err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if err := svc.CheckOut(ctx, "user-1", at(18, 0)); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Fatalf("expected ErrAlreadyCheckedOut, got %v", err)
	}
}

func TestStartSessionWhileActive(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.StartSession(ctx, "user-1", at(9, 30)); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStartSessionAfterCloseAllowed(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.EndSession(ctx, "user-1", at(10, 0)); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if _, err := svc.StartSession(ctx, "user-1", at(11, 0)); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
}

func TestEndSessionWithoutActive(t *testing.T) {
	svc := NewService(newMemStore(1))
	if _, err := svc.EndSession(context.Background(), "user-1", at(10, 0)); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestEndSessionDurationFloorsToMinutes(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	start := at(9, 0)
	if _, err := svc.StartSession(ctx, "user-1", start); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session, err := svc.EndSession(ctx, "user-1", start.Add(125*time.Second))
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if session.DurationMinutes == nil || *session.DurationMinutes != 2 {
		t.Fatalf("expected duration 2, got %v", session.DurationMinutes)
	}
}

func TestSubmitWorkSetsUploadFlag(t *testing.T) {
	store := newMemStore(1)
	svc := NewService(store)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "user-1", at(9, 0))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.SubmitWork(ctx, "user-1", UploadRequest{
		SessionID:   session.ID,
		ProjectName: "portal",
		TaskID:      "T-12",
		Description: "wired the dashboard",
	}, at(9, 30)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	stored, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if !stored.WorkUploaded {
		t.Fatalf("expected work_uploaded flag to be set")
	}
}

func TestSubmitWorkUnknownSession(t *testing.T) {
	svc := NewService(newMemStore(1))
	err := svc.SubmitWork(context.Background(), "user-1", UploadRequest{SessionID: "missing"}, at(9, 0))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitWorkRejectsForeignSession(t *testing.T) {
	svc := NewService(newMemStore(2))
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "user-1", at(9, 0))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err = svc.SubmitWork(ctx, "user-2", UploadRequest{SessionID: session.ID}, at(9, 30))
	if !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("expected ErrNotSessionOwner, got %v", err)
	}
}

func TestSubmitWorkAllowedOnClosedSession(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session, err := svc.EndSession(ctx, "user-1", at(10, 0))
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if err := svc.SubmitWork(ctx, "user-1", UploadRequest{SessionID: session.ID}, at(10, 5)); err != nil {
		t.Fatalf("submit on closed session failed: %v", err)
	}
}

func TestStatusReflectsDay(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	status, err := svc.Status(ctx, "user-1", at(8, 0))
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CheckedIn || status.ActiveSession != nil {
		t.Fatalf("expected empty status")
	}

	checkIn := at(9, 0)
	if err := svc.CheckIn(ctx, "user-1", checkIn); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	session, err := svc.StartSession(ctx, "user-1", at(9, 5))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	status, err = svc.Status(ctx, "user-1", at(9, 10))
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.CheckedIn || status.CheckInTime == nil || !status.CheckInTime.Equal(checkIn) {
		t.Fatalf("expected check-in at %v, got %+v", checkIn, status)
	}
	if status.CheckOutTime != nil {
		t.Fatalf("expected no check-out yet")
	}
	if status.ActiveSession == nil || status.ActiveSession.ID != session.ID {
		t.Fatalf("expected active session %s", session.ID)
	}
}

// Full day: check in 09:00, work 09:05-13:05 (240 min), upload, check out
// 18:00.
func TestFullDayScenario(t *testing.T) {
	svc := NewService(newMemStore(1))
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if _, err := svc.StartSession(ctx, "user-1", at(9, 5)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session, err := svc.EndSession(ctx, "user-1", at(13, 5))
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if session.DurationMinutes == nil || *session.DurationMinutes != 240 {
		t.Fatalf("expected 240 minutes, got %v", session.DurationMinutes)
	}
	if err := svc.SubmitWork(ctx, "user-1", UploadRequest{SessionID: session.ID, ProjectName: "portal"}, at(13, 10)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := svc.CheckOut(ctx, "user-1", at(18, 0)); err != nil {
		t.Fatalf("check-out failed: %v", err)
	}

	status, err := svc.Status(ctx, "user-1", at(18, 30))
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CheckInTime == nil || !status.CheckInTime.Equal(at(9, 0)) {
		t.Fatalf("expected check-in 09:00, got %v", status.CheckInTime)
	}
	if status.CheckOutTime == nil || !status.CheckOutTime.Equal(at(18, 0)) {
		t.Fatalf("expected check-out 18:00, got %v", status.CheckOutTime)
	}
	if status.ActiveSession != nil {
		t.Fatalf("expected no active session after close")
	}
}

func TestStatsCountsAbsent(t *testing.T) {
	svc := NewService(newMemStore(2))
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "user-1", at(9, 0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	stats, err := svc.Stats(ctx, at(12, 0))
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEmployees != 2 || stats.PresentToday != 1 || stats.AbsentToday != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
