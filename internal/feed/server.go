package feed

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// PunchReader is the read side the replay server needs.
type PunchReader interface {
	GetPunches(ctx context.Context, filter service.PunchFilter) ([]model.RawPunchEvent, error)
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ReplayServer serves stored punches in the terminal feed's wire format, so
// another engine instance can sync from this one.
type ReplayServer struct {
	store PunchReader
	token string
}

// NewReplayServer creates a replay server. An empty token disables auth.
func NewReplayServer(store PunchReader, token string) *ReplayServer {
	return &ReplayServer{store: store, token: token}
}

// Handler returns the HTTP routes of the replay server.
func (s *ReplayServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/punches", s.listPunches)
	})
	return r
}

func (s *ReplayServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			want := "Bearer " + s.token
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *ReplayServer) listPunches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil || end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 and not before start")
		return
	}
	page := intParam(q.Get("page"), 1)
	if page < 1 {
		writeError(w, http.StatusBadRequest, "page must be positive")
		return
	}
	pageSize := intParam(q.Get("page_size"), defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	punches, err := s.store.GetPunches(r.Context(), service.PunchFilter{Start: start, End: end})
	if err != nil {
		slog.Error("Replay query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read punches")
		return
	}

	total := len(punches)
	resp := pageResponse{
		Data:         []punchRecord{},
		Page:         page,
		TotalPages:   (total + pageSize - 1) / pageSize,
		TotalRecords: total,
	}
	if from := (page - 1) * pageSize; from < total {
		to := min(from+pageSize, total)
		for _, p := range punches[from:to] {
			resp.Data = append(resp.Data, fromModel(p))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
