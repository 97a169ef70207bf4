// Package rpc exposes the strategy daemon's admin and status API.
package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"compounder/config"
	"compounder/native/strategy"
	"compounder/observability"
	"compounder/storage"
)

const (
	defaultHarvestLimit = 20
	maxHarvestLimit     = 100

	visitorTTL = 5 * time.Minute
)

// Harvester abstracts the scheduler surface the API can trigger and inspect.
type Harvester interface {
	HarvestNow(ctx context.Context, recipient ethcommon.Address) error
}

// Config captures the server dependencies.
type Config struct {
	Engine    *strategy.Engine
	Journal   *storage.Journal
	Harvester Harvester
	Manager   ethcommon.Address
	AuthToken string
	RateLimit config.RateLimit
	Logger    *slog.Logger
}

// Server serves the REST surface over chi.
type Server struct {
	engine    *strategy.Engine
	journal   *storage.Journal
	harvester Harvester
	manager   ethcommon.Address
	authToken string
	logger    *slog.Logger
	handler   http.Handler

	limitRate  rate.Limit
	limitBurst int
	evictAfter time.Duration
	mu         sync.Mutex
	visitors   map[string]*rate.Limiter
}

// NewServer wires the routes and middleware.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("rpc: engine required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 10
	}

	s := &Server{
		engine:     cfg.Engine,
		journal:    cfg.Journal,
		harvester:  cfg.Harvester,
		manager:    cfg.Manager,
		authToken:  strings.TrimSpace(cfg.AuthToken),
		logger:     logger,
		limitRate:  rate.Limit(rps),
		limitBurst: burst,
		evictAfter: visitorTTL,
		visitors:   make(map[string]*rate.Limiter),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.throttle)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/strategy", func(sr chi.Router) {
		sr.Get("/status", s.handleStatus)
		sr.Get("/routes", s.handleRoutes)
		sr.Get("/reward", s.handleReward)
		sr.Get("/harvests", s.handleHarvests)

		sr.Group(func(ar chi.Router) {
			ar.Use(s.authorize)
			ar.Post("/harvest", s.handleHarvest)
			ar.Post("/pause", s.handlePause)
			ar.Post("/unpause", s.handleUnpause)
			ar.Post("/panic", s.handlePanic)
			ar.Post("/harvest-on-deposit", s.handleHarvestOnDeposit)
			ar.Post("/pending-method", s.handlePendingMethod)
			ar.Post("/routes/{name}", s.handleSetRoute)
		})
	})

	s.handler = otelhttp.NewHandler(r, "strategyd")
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.obtainLimiter(clientID(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) obtainLimiter(id string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[id]
	if !ok {
		limiter = rate.NewLimiter(s.limitRate, s.limitBurst)
		s.visitors[id] = limiter
		go s.evictVisitor(id)
	}
	return limiter
}

func (s *Server) evictVisitor(id string) {
	timer := time.NewTimer(s.evictAfter)
	defer timer.Stop()
	<-timer.C
	s.mu.Lock()
	delete(s.visitors, id)
	s.mu.Unlock()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		observability.HTTP().Observe(route, r.Method, ww.Status(), time.Since(start))
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			writeError(w, http.StatusForbidden, "management API disabled: no auth token configured")
			return
		}
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Paused           bool              `json:"paused"`
	Retired          bool              `json:"retired"`
	HarvestOnDeposit bool              `json:"harvestOnDeposit"`
	WithdrawalFee    uint64            `json:"withdrawalFee"`
	LastHarvest      *time.Time        `json:"lastHarvest,omitempty"`
	TotalManagedWei  string            `json:"totalManagedWei"`
	LocalWantWei     string            `json:"localWantWei"`
	StakedWantWei    string            `json:"stakedWantWei"`
	Assets           map[string]string `json:"assets"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.engine.TotalManagedAssets(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	local, err := s.engine.LocalWantBalance(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	staked, err := s.engine.StakedWantBalance(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	assets := s.engine.Assets()
	resp := statusResponse{
		Paused:           s.engine.Paused(),
		Retired:          s.engine.Retired(),
		HarvestOnDeposit: s.engine.HarvestOnDeposit(),
		WithdrawalFee:    s.engine.WithdrawalFee(),
		TotalManagedWei:  total.String(),
		LocalWantWei:     local.String(),
		StakedWantWei:    staked.String(),
		Assets: map[string]string{
			"want":          assets.Want.Hex(),
			"lpToken0":      assets.LPToken0.Hex(),
			"lpToken1":      assets.LPToken1.Hex(),
			"output":        assets.Output.Hex(),
			"native":        assets.Native.Hex(),
			"secondaryPair": assets.SecondaryPair.Hex(),
		},
	}
	if last := s.engine.LastHarvest(); !last.IsZero() {
		utc := last.UTC()
		resp.LastHarvest = &utc
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	toNative, toLP0, toLP1, toSec0, toSec1 := s.engine.Routes()
	writeJSON(w, http.StatusOK, map[string][]string{
		"outputToNative":     hexRoute(toNative),
		"outputToLP0":        hexRoute(toLP0),
		"outputToLP1":        hexRoute(toLP1),
		"nativeToSecondary0": hexRoute(toSec0),
		"nativeToSecondary1": hexRoute(toSec1),
	})
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := s.engine.RewardAvailable(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	callReward, err := s.engine.CallReward(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"pendingRewardWei": pending.String(),
		"callRewardWei":    callReward.String(),
	})
}

func (s *Server) handleHarvests(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal not configured")
		return
	}
	limit := defaultHarvestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxHarvestLimit {
			parsed = maxHarvestLimit
		}
		limit = parsed
	}
	records, err := s.journal.RecentHarvests(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"harvests": records})
}

type harvestRequest struct {
	Recipient string `json:"recipient,omitempty"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient := s.manager
	if strings.TrimSpace(req.Recipient) != "" {
		parsed, err := config.ParseAddress(req.Recipient)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		recipient = parsed
	}

	var err error
	if s.harvester != nil {
		err = s.harvester.HarvestNow(r.Context(), recipient)
	} else {
		err = s.engine.ManagerHarvest(r.Context(), s.manager, recipient)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "harvested"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "paused", s.engine.Pause)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "active", s.engine.Unpause)
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "panicked", s.engine.Panic)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, state string, op func(context.Context, ethcommon.Address) error) {
	if err := op(r.Context(), s.manager); err != nil {
		writeEngineError(w, err)
		return
	}
	s.logger.Info("lifecycle transition", "state", state)
	writeJSON(w, http.StatusOK, map[string]string{"status": state})
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleHarvestOnDeposit(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetHarvestOnDeposit(s.manager, req.Enabled); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"harvestOnDeposit": req.Enabled})
}

type pendingMethodRequest struct {
	Name string `json:"name"`
}

func (s *Server) handlePendingMethod(w http.ResponseWriter, r *http.Request) {
	var req pendingMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetPendingRewardMethod(s.manager, req.Name); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pendingRewardMethod": req.Name})
}

type routeRequest struct {
	Route []string `json:"route"`
}

func (s *Server) handleSetRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parsed, err := config.ParseRoute(req.Route)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	route := strategy.Route(parsed)

	switch chi.URLParam(r, "name") {
	case "output-to-native":
		err = s.engine.SetOutputToNativeRoute(s.manager, route)
	case "output-to-lp0":
		err = s.engine.SetOutputToLP0Route(s.manager, route)
	case "output-to-lp1":
		err = s.engine.SetOutputToLP1Route(s.manager, route)
	default:
		writeError(w, http.StatusNotFound, "unknown route name")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"route": req.Route})
}

func hexRoute(route strategy.Route) []string {
	out := make([]string, 0, len(route))
	for _, hop := range route {
		out = append(out, hop.Hex())
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}
