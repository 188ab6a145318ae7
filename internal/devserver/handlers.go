package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapadmin/internal/browser"
)

// Page size bounds for the table data endpoint.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type userJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func toUserJSON(u UserRecord) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

type tableDataResponse struct {
	TableName  string                     `json:"table_name"`
	Columns    []browser.ColumnDescriptor `json:"columns"`
	Data       []map[string]any           `json:"data"`
	Page       int                        `json:"page"`
	Limit      int                        `json:"limit"`
	Total      int64                      `json:"total"`
	TotalPages int                        `json:"total_pages"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Message: "database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "leapadmin devserver (" + s.store.Dialect() + ")"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	u, err := s.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !checkPassword(u.PasswordHash, req.Password)) {
		s.logger.Info("login failed", "email", req.Email)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	s.logger.Info("login", "user_id", u.ID, "email", u.Email)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserJSON(u)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := userIDFrom(r.Context())
	u, err := s.store.UserByID(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("profile lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]userJSON{"user": toUserJSON(u)})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	out := make([]browser.TableSummary, 0, len(Tables))
	for _, t := range Tables {
		n, err := s.store.Count(r.Context(), t)
		if err != nil {
			s.logger.Error("failed to count rows", "table", t.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list tables")
			return
		}
		out = append(out, browser.TableSummary{
			Name:           t.Name,
			ApproxRowCount: n,
			ApproxSizeMB:   t.EstimateSizeMB(n),
			Description:    t.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTableData(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	// chi routes on RawPath when the request has one, leaving params escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid table name")
			return
		}
		name = unescaped
	}
	t, ok := LookupTable(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid table name")
		return
	}

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}

	total, err := s.store.Count(r.Context(), t)
	if err != nil {
		s.logger.Error("failed to count rows", "table", t.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch table data")
		return
	}
	page, totalPages, offset := Paginate(total, page, limit)

	rows, err := s.store.Page(r.Context(), t, limit, offset)
	if err != nil {
		s.logger.Error("failed to fetch rows", "table", t.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch table data")
		return
	}

	writeJSON(w, http.StatusOK, tableDataResponse{
		TableName:  t.Name,
		Columns:    t.Columns,
		Data:       rows,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}
