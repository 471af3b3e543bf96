// Package server exposes the member lookup over HTTP: a JSON profile API and
// a small embedded lookup page.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/profile"
)

//go:embed index.html
var indexHTML []byte

// ProfileBuilder is the lookup pipeline the handlers call into.
type ProfileBuilder interface {
	Build(ctx context.Context, identifier string) profile.Result
}

// Server is the HTTP front end.
type Server struct {
	builder ProfileBuilder
	router  chi.Router
}

// New wires the routes and middleware.
func New(builder ProfileBuilder) *Server {
	s := &Server{builder: builder}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/api/profile", s.handleProfile)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	// A malformed body is treated like an empty identifier, matching the
	// permissive behavior callers rely on.
	_ = json.NewDecoder(r.Body).Decode(&req)

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": profile.MsgEmptyInput})
		return
	}

	res := s.builder.Build(r.Context(), identifier)
	switch res.Kind {
	case profile.KindOK:
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    "OK",
			"profile": res.Profile,
		})
	case profile.KindChoices:
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    "CHOICES",
			"message": res.Message,
			"matches": res.Matches,
			"keyword": res.Keyword,
		})
	case profile.KindInvalid:
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": res.Message})
	case profile.KindNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": res.Message})
	default:
		zap.L().Error("unhandled lookup result kind",
			zap.Int("kind", int(res.Kind)),
			zap.String("identifier", identifier))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": profile.MsgUnexpectedError})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

// requestID tags every request with a UUID, echoed back in X-Request-ID and
// attached to the request log line.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		zap.L().Info("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// recoverer converts handler panics into logged 500 responses.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.L().Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"message": profile.MsgUnexpectedError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
