// Package httpapi exposes the story engine as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/platform/errors/i18n"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

const (
	maxBodyBytes      = 64 << 10
	defaultOutfitDraw = 4
	maxOutfitDraw     = 20
)

// Engine is the story surface the API serves.
type Engine interface {
	GetNode(ctx context.Context, nodeID, characterID int64) (graph.Node, error)
	StartNode(ctx context.Context) (graph.Node, error)
	GetProgress(ctx context.Context, characterID int64) (progression.View, error)
	SubmitChoice(ctx context.Context, sub progression.Submission) (progression.Result, error)
	SubmitPassword(ctx context.Context, sub progression.Submission) (progression.Result, error)
	RandomOutfits(ctx context.Context, n int) ([]outfit.Option, error)
	CreateCharacter(ctx context.Context, name string) (storage.Character, error)
	GetCharacter(ctx context.Context, characterID int64) (storage.Character, error)
}

// Profiles reads character profiles.
type Profiles interface {
	Get(ctx context.Context, characterID int64) (profile.Profile, error)
}

// Options configures optional server collaborators.
type Options struct {
	Metrics *metrics.Metrics
	Logf    func(format string, args ...any)
}

// Server serves the story API.
type Server struct {
	engine   Engine
	profiles Profiles
	metrics  *metrics.Metrics
	logf     func(format string, args ...any)
	clock    func() time.Time
}

// NewServer builds a Server over engine and profiles.
func NewServer(engine Engine, profiles Profiles, opts Options) *Server {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Server{
		engine:   engine,
		profiles: profiles,
		metrics:  opts.Metrics,
		logf:     logf,
		clock:    time.Now,
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes registers the story API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	s.handle(mux, http.MethodGet+" /api/story/start", s.handleStart)
	s.handle(mux, http.MethodGet+" /api/story/nodes/{nodeID}", s.handleGetNode)
	s.handle(mux, http.MethodGet+" /api/story/progress/{characterID}", s.handleGetProgress)
	s.handle(mux, http.MethodPost+" /api/story/choice", s.handleSubmitChoice)
	s.handle(mux, http.MethodPost+" /api/story/password-choice", s.handleSubmitPassword)
	s.handle(mux, http.MethodGet+" /api/story/outfits/random", s.handleRandomOutfits)

	s.handle(mux, http.MethodGet+" /api/profile/{characterID}", s.handleProfile)
	s.handle(mux, http.MethodGet+" /api/profile/{characterID}/alignment", s.handleAlignment)
	s.handle(mux, http.MethodGet+" /api/profile/{characterID}/attributes", s.handleAttributes)
	s.handle(mux, http.MethodGet+" /api/profile/{characterID}/preferences", s.handlePreferences)

	s.handle(mux, http.MethodPost+" /api/characters", s.handleCreateCharacter)
	s.handle(mux, http.MethodGet+" /api/characters/{characterID}", s.handleGetCharacter)

	mux.HandleFunc(http.MethodGet+" /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// handle registers fn under pattern and records its status and latency.
func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	route := pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		s.metrics.HTTPRequest(r.Method+" "+route, rec.status, s.clock().Sub(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// writeError renders err with a message localized from Accept-Language.
// Errors without a domain code are logged and reported as UNKNOWN.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	catalog := i18n.FromAcceptLanguage(r.Header.Get("Accept-Language"))
	desc := apperrors.Describe(err, catalog)
	if desc.Code == apperrors.CodeUnknown || desc.Code == apperrors.CodePersistenceFailure {
		s.logf("story api: %s %s: %v", r.Method, r.URL.Path, err)
	}
	w.Header().Set("Content-Language", catalog.Locale())
	writeJSON(w, desc.Code.HTTPStatus(), errorResponse{Error: errorBody{
		Code:      string(desc.Code),
		Message:   desc.Message,
		Retryable: desc.Retryable,
		Metadata:  desc.Metadata,
	}})
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}

// pathID parses a positive id path value.
func pathID(r *http.Request, name string) (int64, error) {
	return parseID(r.PathValue(name), name)
}

func parseID(raw, name string) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, invalidArgument(name + " is required")
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidArgument(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return invalidArgument("request body is too large")
		case errors.Is(err, io.EOF):
			return invalidArgument("request body is required")
		default:
			return invalidArgument("request body is not valid JSON")
		}
	}
	return nil
}

// profileError maps profile reads onto the character codes.
func profileError(characterID int64, err error) error {
	if apperrors.GetCode(err) != apperrors.CodeUnknown {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WrapWithMetadata(apperrors.CodeCharacterNotFound,
			fmt.Sprintf("character %d not found", characterID),
			map[string]string{"CharacterID": strconv.FormatInt(characterID, 10)}, err)
	}
	return apperrors.Wrap(apperrors.CodePersistenceFailure, "load profile", err)
}
