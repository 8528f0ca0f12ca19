package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/auth"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/config"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/crypto"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/model"
	"github.com/Niki07388/TARQEN-WORKFORCE-PORTAL/internal/tracker"
)

const tokenCookieName = "token"

// HistoryStore is the read side the handlers need beyond the tracker:
// login lookups, per-user history, the admin roster and the settings map.
type HistoryStore interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	ListEmployeesToday(ctx context.Context, day time.Time) ([]model.EmployeeToday, error)
	ListAttendanceByUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]model.WorkSession, error)
	ListWorkUploadsByUser(ctx context.Context, userID string, limit int32) ([]model.WorkUpload, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	UpsertSettings(ctx context.Context, updates map[string]string) error
}

type Server struct {
	cfg     config.Config
	store   HistoryStore
	tracker *tracker.Service
	redis   *redis.Client
}

func NewServer(cfg config.Config, store HistoryStore, trackerSvc *tracker.Service, redisClient *redis.Client) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		tracker: trackerSvc,
		redis:   redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/api/auth/me", s.handleGetMe)

	r.Route("/api/employee", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleGetStatus)
		r.Post("/check-in", s.handleCheckIn)
		r.Post("/check-out", s.handleCheckOut)
		r.Post("/session/start", s.handleStartSession)
		r.Post("/session/end", s.handleEndSession)
		r.Post("/work-upload", s.handleWorkUpload)
		r.Get("/attendance", s.handleAttendanceHistory)
		r.Get("/sessions", s.handleSessionHistory)
		r.Get("/work-history", s.handleWorkHistory)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireAdmin)
		r.Get("/stats", s.handleAdminStats)
		r.Get("/employees", s.handleAdminEmployees)
		r.Get("/employees/{employeeId}", s.handleAdminEmployeeDetail)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// The browser client sends the cookie; other callers may use a bearer
// header instead.
func requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// Models

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	ID           string     `json:"id"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	Duration     *int64     `json:"duration"`
	WorkUploaded bool       `json:"workUploaded"`
}

type statusResponse struct {
	CheckedIn     bool             `json:"checkedIn"`
	CheckInTime   *time.Time       `json:"checkInTime"`
	CheckOutTime  *time.Time       `json:"checkOutTime"`
	ActiveSession *sessionResponse `json:"activeSession"`
}

type attendanceResponse struct {
	ID       string     `json:"id"`
	Date     string     `json:"date"`
	CheckIn  time.Time  `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
	Status   string     `json:"status"`
}

type workUploadRequest struct {
	SessionID   string `json:"sessionId"`
	ProjectName string `json:"projectName"`
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	RepoLink    string `json:"repoLink"`
}

type workUploadResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	ProjectName string    `json:"projectName"`
	TaskID      string    `json:"taskId"`
	Description string    `json:"description"`
	RepoLink    string    `json:"repoLink"`
	CreatedAt   time.Time `json:"createdAt"`
}

type statsResponse struct {
	TotalEmployees int64 `json:"totalEmployees"`
	PresentToday   int64 `json:"presentToday"`
	AbsentToday    int64 `json:"absentToday"`
}

type employeeTodayResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	TodayStatus *string    `json:"todayStatus"`
	CheckInTime *time.Time `json:"checkInTime"`
}

// Auth handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	http.SetCookie(w, s.tokenCookie(token, int(s.cfg.AccessTokenTTL.Seconds())))
	writeJSON(w, http.StatusOK, map[string]userResponse{"user": {
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
		Name:  user.Name,
	}})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.tokenCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]userResponse{"user": {
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
		Name:  claims.Name,
	}})
}

func (s *Server) tokenCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.cfg.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: sameSite,
	}
}

// Employee handlers

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	status, err := s.tracker.Status(r.Context(), claims.UserID, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := statusResponse{
		CheckedIn:    status.CheckedIn,
		CheckInTime:  status.CheckInTime,
		CheckOutTime: status.CheckOutTime,
	}
	if status.ActiveSession != nil {
		session := mapSession(*status.ActiveSession)
		resp.ActiveSession = &session
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if err := s.tracker.CheckIn(r.Context(), claims.UserID, time.Now()); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if err := s.tracker.CheckOut(r.Context(), claims.UserID, time.Now()); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if _, err := s.tracker.StartSession(r.Context(), claims.UserID, time.Now()); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	session, err := s.tracker.EndSession(r.Context(), claims.UserID, time.Now())
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
	})
}

func (s *Server) handleWorkUpload(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req workUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.ProjectName) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	err := s.tracker.SubmitWork(r.Context(), claims.UserID, tracker.UploadRequest{
		SessionID:   req.SessionID,
		ProjectName: req.ProjectName,
		TaskID:      req.TaskID,
		Description: req.Description,
		RepoLink:    req.RepoLink,
	}, time.Now())
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	records, err := s.store.ListAttendanceByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, mapAttendance(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	sessions, err := s.store.ListSessionsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, mapSession(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	uploads, err := s.store.ListWorkUploadsByUser(r.Context(), claims.UserID, 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]workUploadResponse, 0, len(uploads))
	for _, upload := range uploads {
		resp = append(resp, mapWorkUpload(upload))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Admin handlers

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if cached, ok := s.loadCachedStats(r.Context(), now); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	stats, err := s.tracker.Stats(r.Context(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := statsResponse{
		TotalEmployees: stats.TotalEmployees,
		PresentToday:   stats.PresentToday,
		AbsentToday:    stats.AbsentToday,
	}
	s.storeCachedStats(r.Context(), now, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.store.ListEmployeesToday(r.Context(), dayOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]employeeTodayResponse, 0, len(employees))
	for _, emp := range employees {
		resp = append(resp, employeeTodayResponse{
			ID:          emp.ID,
			Name:        emp.Name,
			Email:       emp.Email,
			TodayStatus: emp.TodayStatus,
			CheckInTime: emp.CheckInTime,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminEmployeeDetail(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	user, err := s.store.GetUserByID(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	records, err := s.store.ListAttendanceByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	sessions, err := s.store.ListSessionsByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	uploads, err := s.store.ListWorkUploadsByUser(r.Context(), user.ID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	attendanceResp := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		attendanceResp = append(attendanceResp, mapAttendance(rec))
	}
	sessionResp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		sessionResp = append(sessionResp, mapSession(session))
	}
	workResp := make([]workUploadResponse, 0, len(uploads))
	for _, upload := range uploads {
		workResp = append(workResp, mapWorkUpload(upload))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"employee": userResponse{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
			Name:  user.Name,
		},
		"attendance": attendanceResp,
		"sessions":   sessionResp,
		"work":       workResp,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if err := s.store.UpsertSettings(r.Context(), updates); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stats cache

func (s *Server) loadCachedStats(ctx context.Context, now time.Time) (statsResponse, bool) {
	if s.redis == nil {
		return statsResponse{}, false
	}
	value, err := s.redis.Get(ctx, statsCacheKey(now)).Result()
	if err != nil {
		return statsResponse{}, false
	}
	var resp statsResponse
	if err := json.Unmarshal([]byte(value), &resp); err != nil {
		return statsResponse{}, false
	}
	return resp, true
}

func (s *Server) storeCachedStats(ctx context.Context, now time.Time, resp statsResponse) {
	if s.redis == nil || s.cfg.StatsCacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, statsCacheKey(now), payload, s.cfg.StatsCacheTTL).Err()
}

func statsCacheKey(now time.Time) string {
	return "stats:" + now.UTC().Format("2006-01-02")
}

// Helpers

func mapSession(session model.WorkSession) sessionResponse {
	return sessionResponse{
		ID:           session.ID,
		StartTime:    session.StartedAt,
		EndTime:      session.EndedAt,
		Duration:     session.DurationMinutes,
		WorkUploaded: session.WorkUploaded,
	}
}

func mapAttendance(rec model.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		ID:       rec.ID,
		Date:     rec.Day.Format("2006-01-02"),
		CheckIn:  rec.CheckIn,
		CheckOut: rec.CheckOut,
		Status:   rec.Status,
	}
}

func mapWorkUpload(upload model.WorkUpload) workUploadResponse {
	return workUploadResponse{
		ID:          upload.ID,
		SessionID:   upload.SessionID,
		ProjectName: upload.ProjectName,
		TaskID:      upload.TaskID,
		Description: upload.Description,
		RepoLink:    upload.RepoLink,
		CreatedAt:   upload.CreatedAt,
	}
}

func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrAlreadyCheckedIn),
		errors.Is(err, tracker.ErrNotCheckedIn),
		errors.Is(err, tracker.ErrAlreadyCheckedOut),
		errors.Is(err, tracker.ErrSessionActive),
		errors.Is(err, tracker.ErrNoActiveSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, tracker.ErrNotSessionOwner):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
