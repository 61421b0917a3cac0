package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Authenticator issues and resolves bearer tokens. *auth.Service implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *types.User, error)
	Authenticate(ctx context.Context, token string) (*types.User, error)
}

// Starter creates started lectures. *session.Manager implements it.
type Starter interface {
	Start(ctx context.Context, user *types.User, lectureID int64) (*types.StartedLecture, error)
}

// Engine serves projections and ends sessions with fan-out. *presentation.Engine implements it.
type Engine interface {
	Snapshot(ctx context.Context, user *types.User, sessionID int64, role types.Role) (interface{}, error)
	Responses(ctx context.Context, user *types.User, sessionID int64) ([]*types.QuestionResponse, error)
	StopSession(ctx context.Context, user *types.User, sessionID int64) error
}

// HealthChecker reports database health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Registry interface to avoid tight coupling to websocket.Registry implementation
type Registry interface {
	GetStats() map[string]int
}

// Deps are the collaborators of a Server.
type Deps struct {
	Auth      Authenticator
	Sessions  Starter
	Engine    Engine
	Database  HealthChecker
	Registry  Registry
	WebSocket http.Handler
	// Stats adds named component statistics to /health.
	Stats map[string]func() map[string]interface{}
}

// Server is the HTTP surface: login, starting and inspecting started
// lectures, the websocket endpoint and health.
type Server struct {
	deps           Deps
	allowedOrigins map[string]bool
	validate       *validator.Validate
	router         *http.ServeMux
	log            *logger.Logger
}

// NewServer creates a server. An empty allowedOrigins list, or one
// containing "*", allows every origin.
func NewServer(deps Deps, allowedOrigins []string, log *logger.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: validator.New(),
		router:   http.NewServeMux(),
		log:      log.With("component", "api"),
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			s.allowedOrigins = nil
			break
		}
		if s.allowedOrigins == nil {
			s.allowedOrigins = make(map[string]bool)
		}
		s.allowedOrigins[o] = true
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.handle("POST /api/sessions", s.login)
	s.handle("POST /api/started_lectures", s.startLecture)
	s.handle("GET /api/started_lectures/{id}", s.getStartedLecture)
	s.handle("GET /api/started_lectures/{id}/student", s.getStartedLectureStudent)
	s.handle("GET /api/started_lectures/{id}/responses", s.getResponses)
	s.handle("DELETE /api/started_lectures/{id}", s.stopLecture)
	s.handle("GET /health", s.healthCheck)

	if s.deps.WebSocket != nil {
		s.router.Handle("GET /ws", s.deps.WebSocket)
	}
	// Preflight for every API route.
	s.router.Handle("OPTIONS /", s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
}

func (s *Server) handle(pattern string, fn http.HandlerFunc) {
	s.router.Handle(pattern, s.corsMiddleware(s.jsonMiddleware(fn)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=255"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

type StartLectureRequest struct {
	LectureID int64 `json:"lecture_id" validate:"required,gt=0"`
}

type ResponsesResponse struct {
	Responses []*types.QuestionResponse `json:"responses"`
}

type HealthResponse struct {
	Status      string                            `json:"status"`
	Timestamp   time.Time                         `json:"timestamp"`
	Database    string                            `json:"database"`
	Connections map[string]int                    `json:"connections"`
	Components  map[string]map[string]interface{} `json:"components,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/sessions
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decode(r, &req); err != nil {
		s.sendError(w, err)
		return
	}

	token, user, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.send(w, http.StatusCreated, LoginResponse{Token: token, User: user})
}

// POST /api/started_lectures
func (s *Server) startLecture(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req StartLectureRequest
	if err := s.decode(r, &req); err != nil {
		s.sendError(w, err)
		return
	}

	started, err := s.deps.Sessions.Start(r.Context(), user, req.LectureID)
	if err != nil {
		s.sendError(w, err)
		return
	}

	snap, err := s.deps.Engine.Snapshot(r.Context(), user, started.ID, types.RolePresenting)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.send(w, http.StatusCreated, snap)
}

// GET /api/started_lectures/{id}
func (s *Server) getStartedLecture(w http.ResponseWriter, r *http.Request) {
	s.snapshot(w, r, types.RolePresenting)
}

// GET /api/started_lectures/{id}/student
func (s *Server) getStartedLectureStudent(w http.ResponseWriter, r *http.Request) {
	s.snapshot(w, r, types.RoleViewing)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request, role types.Role) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	snap, err := s.deps.Engine.Snapshot(r.Context(), user, id, role)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.send(w, http.StatusOK, snap)
}

// GET /api/started_lectures/{id}/responses
func (s *Server) getResponses(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	responses, err := s.deps.Engine.Responses(r.Context(), user, id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if responses == nil {
		responses = []*types.QuestionResponse{}
	}
	s.send(w, http.StatusOK, ResponsesResponse{Responses: responses})
}

// DELETE /api/started_lectures/{id}
func (s *Server) stopLecture(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	if err := s.deps.Engine.StopSession(r.Context(), user, id); err != nil {
		s.sendError(w, err)
		return
	}
	s.send(w, http.StatusOK, map[string]string{"message": "Lecture stopped"})
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Database:    "healthy",
		Connections: s.deps.Registry.GetStats(),
	}

	if err := s.deps.Database.HealthCheck(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = fmt.Sprintf("error: %v", err)
	}

	if len(s.deps.Stats) > 0 {
		resp.Components = make(map[string]map[string]interface{}, len(s.deps.Stats))
		for name, stats := range s.deps.Stats {
			resp.Components[name] = stats()
		}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.send(w, code, resp)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*types.User, bool) {
	user, err := s.deps.Auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		s.sendError(w, err)
		return nil, false
	}
	return user, true
}

func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON", types.ErrBadRequest)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid started lecture id", types.ErrBadRequest)
	}
	return id, nil
}

func (s *Server) send(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch types.KindOf(err) {
	case types.KindUnauthorized:
		return http.StatusUnauthorized
	case types.KindForbidden:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		message = "internal error"
	}
	s.send(w, code, ErrorResponse{
		Error:   types.KindOf(err),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.allowedOrigins == nil:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case s.allowedOrigins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
