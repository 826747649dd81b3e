// Package server exposes the record operations over JSON HTTP. It resolves
// the bearer identity per request, keeps one session per signed-in identity,
// and maps the application error taxonomy onto HTTP statuses.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harshsingh9817/datacollection/internal/app"
	"github.com/harshsingh9817/datacollection/internal/ratelimit"
	"github.com/harshsingh9817/datacollection/internal/usertoken"
	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/ai"
	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/storage"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  *usertoken.Verifier
	IDCardLimiter  *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
	// MaxSessions bounds the session registry; the least recently used
	// session is evicted when full. Zero means the default.
	MaxSessions int
}

const defaultMaxSessions = 4096

type sessionEntry struct {
	sess     *app.Session
	lastSeen time.Time
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	idCardLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
	maxSessions    int

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	locks    map[string]*sync.Mutex
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("server requires a token verifier")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 8 << 20
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		idCardLimiter:  cfg.IDCardLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		maxSessions:    maxSessions,
		sessions:       map[string]*sessionEntry{},
		locks:          map[string]*sync.Mutex{},
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the standard middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/session", s.withUser(s.handleSession))

	s.mux.Handle("/schools", s.withUser(s.handleSchools))
	s.mux.Handle("/schools/", s.withUser(s.handleSchoolByID))

	s.mux.Handle("/students", s.withUser(s.handleStudents))
	s.mux.Handle("/students/", s.withUser(s.handleStudentByID))

	s.mux.Handle("/admin/users", s.withUser(s.handleAdminUsers))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionHandler func(http.ResponseWriter, *http.Request, *app.Session)

// withUser verifies the bearer token and resolves the per-identity session,
// creating one on first sight of the identity.
func (s *Server) withUser(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.VerifyIdentity(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess, err := s.sessionFor(r, identity)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, sess)
	})
}

// sessionFor resolves the cached session for the verified identity. The
// cached identity is compared against the fresh token claims on every
// request: a drifted email or display name drops the stale session and runs
// sign-in again, so profile patching happens and the admin flag is
// recomputed. The registry lock is never held across the session bootstrap;
// a per-identity lock keeps concurrent first requests from loading twice.
func (s *Server) sessionFor(r *http.Request, identity domain.Identity) (*app.Session, error) {
	lock := s.identityLock(identity.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	entry, ok := s.sessions[identity.ID]
	if ok && entry.sess.Identity == identity {
		entry.lastSeen = time.Now()
		s.mu.Unlock()
		return entry.sess, nil
	}
	s.mu.Unlock()

	if ok {
		// Identity transition: discard the stale session before re-resolving.
		s.app.EndSession(entry.sess)
	}
	sess, err := s.app.NewSession(r.Context(), identity)
	if err != nil {
		return nil, err
	}
	s.storeSession(sess)
	return sess, nil
}

func (s *Server) identityLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

func (s *Server) storeSession(sess *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}
	s.sessions[sess.Identity.ID] = &sessionEntry{sess: sess, lastSeen: time.Now()}
}

func (s *Server) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range s.sessions {
		if oldestID == "" || entry.lastSeen.Before(oldest) {
			oldestID, oldest = id, entry.lastSeen
		}
	}
	if oldestID == "" {
		return
	}
	s.app.EndSession(s.sessions[oldestID].sess)
	delete(s.sessions, oldestID)
	delete(s.locks, oldestID)
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.locks, id)
}

// POST establishes (or refreshes) the session; DELETE signs out.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	switch r.Method {
	case http.MethodPost, http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"id":    sess.Identity.ID,
				"email": sess.Identity.Email,
				"name":  sess.Identity.DisplayName,
			},
			"isAdmin":           sess.Admin,
			"loading":           sess.Cache.IsLoading(),
			"predefinedClasses": domain.PredefinedClasses,
		})
	case http.MethodDelete:
		s.app.EndSession(sess)
		s.dropSession(sess.Identity.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSchools(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	switch r.Method {
	case http.MethodGet:
		schools, err := s.app.FetchSchoolsForUser(r.Context(), sess, targetOwner(r))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": schools, "count": len(schools)})
	case http.MethodPost:
		var req schoolRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		school, err := s.app.AddSchool(r.Context(), sess, req.TargetUserID, req.Name, req.ClassNames)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, school)
	default:
		methodNotAllowed(w)
	}
}

// /schools/{id}, /schools/{id}/classes, /schools/{id}/students
func (s *Server) handleSchoolByID(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	path := strings.TrimPrefix(r.URL.Path, "/schools/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "classes":
			s.handleSchoolClasses(w, r, sess, id)
		case "students":
			s.handleSchoolStudents(w, r, sess, id)
		default:
			notFound(w, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		school, err := s.app.FetchSchoolByID(r.Context(), sess, targetOwner(r), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, school)
	case http.MethodPatch:
		var req schoolRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		school, err := s.app.UpdateSchool(r.Context(), sess, req.TargetUserID, id, req.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, school)
	case http.MethodDelete:
		if err := s.app.DeleteSchool(r.Context(), sess, targetOwner(r), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSchoolClasses(w http.ResponseWriter, r *http.Request, sess *app.Session, schoolID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req classNamesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	names, err := s.app.UpdateSchoolClassNames(r.Context(), sess, req.TargetUserID, schoolID, req.Add, req.Remove)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classNames": names})
}

func (s *Server) handleSchoolStudents(w http.ResponseWriter, r *http.Request, sess *app.Session, schoolID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var (
		students []domain.Student
		err      error
	)
	if className := strings.TrimSpace(r.URL.Query().Get("className")); className != "" {
		students, err = s.app.FetchStudentsForClass(r.Context(), sess, targetOwner(r), schoolID, className)
	} else {
		students, err = s.app.FetchStudentsForSchool(r.Context(), sess, targetOwner(r), schoolID)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.studentViews(students), "count": len(students)})
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	in, photo, target, cleanup, err := s.parseStudentForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	st, err := s.app.AddStudent(r.Context(), sess, target, in, photo)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.studentView(st))
}

// /students/{id}, /students/{id}/id-card
func (s *Server) handleStudentByID(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	path := strings.TrimPrefix(r.URL.Path, "/students/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] == "id-card" {
			s.handleIDCard(w, r, sess, id)
			return
		}
		notFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		st, err := s.app.FetchStudentByID(r.Context(), sess, targetOwner(r), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.studentView(st))
	case http.MethodPut:
		in, photo, target, cleanup, err := s.parseStudentForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer cleanup()
		removePhoto := r.FormValue("removePhoto") == "true"
		st, err := s.app.UpdateStudent(r.Context(), sess, target, id, in, photo, removePhoto)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.studentView(st))
	case http.MethodDelete:
		if err := s.app.DeleteStudent(r.Context(), sess, targetOwner(r), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleIDCard(w http.ResponseWriter, r *http.Request, sess *app.Session, studentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.idCardLimiter != nil {
		key := "idcard:" + util.ClientIP(r, s.trustedProxies)
		if !s.idCardLimiter.Allow(key) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
	}
	var req idCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	card, err := s.app.GenerateIDCard(r.Context(), sess, req.TargetUserID, studentID, req.LogoDataURI)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageDataUri": card})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profiles, err := s.app.ListUserProfiles(r.Context(), sess)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": profiles, "count": len(profiles)})
}

// parseStudentForm reads the multipart student payload. The returned cleanup
// closes the photo file and must always be deferred.
func (s *Server) parseStudentForm(w http.ResponseWriter, r *http.Request) (app.StudentInput, *app.PhotoUpload, string, func(), error) {
	noop := func() {}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		return app.StudentInput{}, nil, "", noop, errors.New("invalid form data")
	}
	in := app.StudentInput{
		SchoolID:      r.FormValue("schoolId"),
		ClassName:     r.FormValue("className"),
		Name:          r.FormValue("name"),
		FatherName:    r.FormValue("fatherName"),
		RollNumber:    r.FormValue("rollNumber"),
		DateOfBirth:   r.FormValue("dateOfBirth"),
		Address:       r.FormValue("address"),
		ContactNumber: r.FormValue("contactNumber"),
	}
	target := r.FormValue("targetUserId")
	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, target, noop, nil
		}
		return app.StudentInput{}, nil, "", noop, errors.New("invalid photo upload")
	}
	photo := &app.PhotoUpload{
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}
	return in, photo, target, func() { file.Close() }, nil
}

// studentView decorates a student with its resolved photo URL.
type studentView struct {
	domain.Student
	PhotoURL string `json:"photoUrl"`
}

func (s *Server) studentView(st domain.Student) studentView {
	return studentView{Student: st, PhotoURL: s.app.PhotoPreviewURL(st)}
}

func (s *Server) studentViews(students []domain.Student) []studentView {
	views := make([]studentView, 0, len(students))
	for _, st := range students {
		views = append(views, s.studentView(st))
	}
	return views
}

type schoolRequest struct {
	Name         string   `json:"name"`
	ClassNames   []string `json:"classNames"`
	TargetUserID string   `json:"targetUserId"`
}

type classNamesRequest struct {
	Add          []string `json:"add"`
	Remove       []string `json:"remove"`
	TargetUserID string   `json:"targetUserId"`
}

type idCardRequest struct {
	LogoDataURI  string `json:"logoDataUri"`
	TargetUserID string `json:"targetUserId"`
}

func targetOwner(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// writeAppError maps the application error taxonomy onto HTTP statuses.
// Transport failures keep their wrapped message so staff can see what broke.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, app.ErrSchoolNotFound):
		writeError(w, http.StatusNotFound, "school not found")
	case errors.Is(err, app.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "student not found")
	case errors.Is(err, app.ErrPhotoTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
	case errors.Is(err, app.ErrSessionLoading):
		writeError(w, http.StatusConflict, "session data still loading")
	case errors.Is(err, app.ErrIDCardsNotConfigured), errors.Is(err, storage.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, storage.ErrUploadFailed):
		writeErrorCode(w, http.StatusBadGateway, "PHOTO_UPLOAD_FAILED", err.Error())
	case errors.Is(err, ai.ErrComposeFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, errorCode(status), msg)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "RECORDS_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "RECORDS_FORBIDDEN"
	case http.StatusNotFound:
		return "RECORDS_NOT_FOUND"
	case http.StatusConflict:
		return "RECORDS_SESSION_LOADING"
	case http.StatusRequestEntityTooLarge:
		return "PHOTO_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusServiceUnavailable:
		return "SYSTEM_NOT_CONFIGURED"
	case http.StatusBadGateway:
		return "IDCARD_COMPOSE_FAILED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
