package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"solation/core/state"
	"solation/journal"
	"solation/native/oracle"
	"solation/native/rfq"
	"solation/observability"
)

const defaultMaxBodyBytes = 1 << 20

// JournalReader is the query surface of the event journal.
type JournalReader interface {
	ListByIntent(ctx context.Context, intentID uint64) ([]journal.Record, error)
	ListByPosition(ctx context.Context, positionID uint64) ([]journal.Record, error)
	ListByType(ctx context.Context, eventType string, limit int) ([]journal.Record, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine         *rfq.Engine
	State          *state.Manager
	Oracle         *oracle.Feed
	Journal        JournalReader
	Hub            *Hub
	Auth           *Authenticator
	RateLimit      RateLimit
	MaxBodyBytes   int64
	OriginPatterns []string
	ServiceName    string
	Logger         *slog.Logger
}

// Server exposes the settlement engine over HTTP.
type Server struct {
	engine         *rfq.Engine
	state          *state.Manager
	oracle         *oracle.Feed
	journal        JournalReader
	hub            *Hub
	auth           *Authenticator
	limiter        *RateLimiter
	maxBody        int64
	originPatterns []string
	logger         *slog.Logger

	router http.Handler
}

// New constructs the router. Engine, State and Auth are required.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.State == nil {
		return nil, errors.New("rpc: engine and state are required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("rpc: authenticator required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "solationd"
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	srv := &Server{
		engine:         cfg.Engine,
		state:          cfg.State,
		oracle:         cfg.Oracle,
		journal:        cfg.Journal,
		hub:            cfg.Hub,
		auth:           cfg.Auth,
		limiter:        NewRateLimiter(cfg.RateLimit),
		maxBody:        cfg.MaxBodyBytes,
		originPatterns: cfg.OriginPatterns,
		logger:         cfg.Logger,
	}
	srv.router = otelhttp.NewHandler(srv.buildRouter(), cfg.ServiceName)
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.auth.Middleware)
		api.Use(s.limiter.Middleware)

		api.Route("/intents", func(ir chi.Router) {
			ir.Post("/", s.handleSubmitIntent)
			ir.Get("/", s.handleOpenIntents)
			ir.Get("/{id}", s.handleGetIntent)
			ir.Get("/{id}/journal", s.handleIntentJournal)
			ir.Post("/{id}/fill", s.handleFillIntent)
			ir.Post("/{id}/cancel", s.handleCancelIntent)
			ir.Post("/{id}/expire", s.handleExpireIntent)
			ir.Post("/{id}/dispute", s.handleFlagDispute)

			ir.Post("/{id}/resolve/unwind", s.handleMutualUnwind)
			ir.Post("/{id}/resolve/continue", s.handleForceContinue)
			ir.Post("/{id}/resolve/settle", s.handleForceSettleNow)
			ir.Post("/{id}/resolve/split", s.handleProportionalSplit)
			ir.Post("/{id}/resolve/treasury", s.handleEscrowToTreasury)
		})

		api.Get("/positions/{id}", s.handleGetPosition)
		api.Get("/positions/{id}/journal", s.handlePositionJournal)
		api.Post("/positions/{id}/settle", s.handleSettlePosition)

		api.Post("/mm", s.handleRegisterMM)
		api.Put("/mm/signing-key", s.handleUpdateSigningKey)
		api.Get("/mm/{owner}", s.handleGetMarketMaker)
		api.Get("/mm/{owner}/nonces", s.handleGetNonceTracker)
		api.Put("/mm/{owner}/active", s.handleSetMMActive)

		api.Post("/protocol/shutdown", s.handleEmergencyShutdown)
		api.Patch("/protocol", s.handleUpdateGlobal)
		api.Get("/protocol", s.handleGetGlobal)
		api.Get("/assets", s.handleListAssets)
		api.Post("/assets", s.handleAddAsset)
		api.Patch("/assets/{mint}", s.handleUpdateAsset)
		api.Get("/balances/{mint}/{account}", s.handleGetBalance)
		api.Post("/oracle/prices", s.handlePublishPrice)

		api.Get("/journal", s.handleJournalByType)
		api.Get("/events/ws", s.handleEventStream)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe records request metrics and logs each request once it completes.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)
		route := routePattern(r)
		observability.HTTP().Observe(route, r.Method, recorder.status, duration)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		}
		if caller, ok := CallerFromContext(r.Context()); ok {
			attrs = append(attrs, "caller", caller.String())
		}
		s.logger.Info("http request", attrs...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "request body required")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "invalid payload: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "id must be an unsigned integer")
		return 0, false
	}
	return id, true
}
