package model

import "time"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const (
	AttendanceStatusPresent = "Present"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
}

// AttendanceRecord covers one calendar day for one user. Day is the UTC
// midnight of that day; CheckOut stays nil until the user checks out and is
// never cleared afterwards.
type AttendanceRecord struct {
	ID       string
	UserID   string
	Day      time.Time
	CheckIn  time.Time
	CheckOut *time.Time
	Status   string
}

// WorkSession is an open-or-closed interval of work. EndedAt and
// DurationMinutes are set together when the session closes and never change
// afterwards.
type WorkSession struct {
	ID              string
	UserID          string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationMinutes *int64
	WorkUploaded    bool
}

type WorkUpload struct {
	ID          string
	SessionID   string
	UserID      string
	ProjectName string
	TaskID      string
	Description string
	RepoLink    string
	CreatedAt   time.Time
}

// EmployeeToday is the admin roster row: an employee plus today's
// attendance, if any.
type EmployeeToday struct {
	ID          string
	Name        string
	Email       string
	TodayStatus *string
	CheckInTime *time.Time
}
