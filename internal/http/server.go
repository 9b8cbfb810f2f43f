package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "pasti/internal/log"
	"pasti/internal/middleware/ratelimit"
	"pasti/internal/middleware/security"
	"pasti/internal/middleware/trace"
)

// Options tunes a Server. The zero value is usable.
type Options struct {
	// Ready backs /readyz; nil always reports ready.
	Ready     func(context.Context) error
	Logger    *applog.Logger
	RateLimit ratelimit.Config
}

// Server is the tracker's HTTP front end.
type Server struct {
	http.Server

	tracker      Tracker
	ready        func(context.Context) error
	events       *applog.StructuredLogger
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Call Shutdown to release the limiter goroutine.
func NewServer(addr string, tracker Tracker, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		tracker: tracker,
		ready:   opts.Ready,
		events:  applog.NewStructuredLogger(httpLogger),
		limiter: ratelimit.NewLimiter(opts.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/slots", s.handleListSlots)
	mux.HandleFunc("GET /api/foods", s.handleListFoods)
	mux.HandleFunc("POST /api/foods", s.handleRegisterFood)
	mux.HandleFunc("GET /api/users/{user}/meals", s.handleMealHistory)
	mux.HandleFunc("POST /api/users/{user}/meals", s.handleLogMeal)
	mux.HandleFunc("GET /api/users/{user}/meals/{date}", s.handleMealDay)
	mux.HandleFunc("GET /api/users/{user}/weights", s.handleWeightTrend)
	mux.HandleFunc("POST /api/users/{user}/weights", s.handleLogWeight)
	mux.HandleFunc("GET /api/profile", s.handleProfile)

	detector := security.NewDetector(logger)
	tracer := trace.NewMiddleware(detector.ExtractClientIP, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		httpLogger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorDTO{Error: "rate limit exceeded", RequestID: trace.FromRequest(r)})
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, onLimit, http.MethodPost)(h)
	h = applog.RequestIDMiddleware(trace.FromRequest)(h)
	h = applog.Middleware(httpLogger)(h)
	h = headers.Middleware(h)
	h = detector.Middleware(h)
	h = tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
