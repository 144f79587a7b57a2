package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puddingmeetup/server/internal/api/handlers"
	"github.com/puddingmeetup/server/internal/api/middleware"
	"github.com/puddingmeetup/server/internal/auth"
	"github.com/puddingmeetup/server/internal/config"
	"github.com/puddingmeetup/server/internal/domain/attendance"
	"github.com/puddingmeetup/server/internal/domain/events"
	"github.com/puddingmeetup/server/internal/domain/leaderboard"
	"github.com/puddingmeetup/server/internal/domain/users"
	"github.com/puddingmeetup/server/internal/metrics"
	"github.com/rs/zerolog"
)

// Deps carries the wired services the router exposes.
type Deps struct {
	Users       *users.Service
	Events      *events.Service
	Attendance  *attendance.Service
	Leaderboard *leaderboard.Service
	JWT         *auth.JWTManager
	DB          handlers.Pinger
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT, cfg.Environment)
	eventsHandler := handlers.NewEventsHandler(deps.Events, cfg.Environment)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Attendance, cfg.Environment)
	leaderboardHandler := handlers.NewLeaderboardHandler(deps.Leaderboard, cfg.Environment)

	requireUser := middleware.RequireUser(deps.JWT, cfg.Environment)
	userTier := middleware.WithRateLimitTierHandler(middleware.TierUser)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	// One shared limiter store; the tier must be in context before the
	// limiter runs, so it wraps the innermost handler.
	limit := middleware.RateLimit(cfg.RateLimit)
	public := func(h http.HandlerFunc) http.Handler {
		return limit(h)
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return requireUser(userTier(limit(h)))
	}
	login := func(h http.HandlerFunc) http.Handler {
		return loginTier(limit(h))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.DB))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.Register),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: login(authHandler.Login),
	}))
	mux.Handle("/api/v1/auth/me", methodMux(map[string]http.Handler{
		http.MethodGet: authed(authHandler.Me),
	}))

	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  public(eventsHandler.List),
		http.MethodPost: authed(eventsHandler.Create),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: public(eventsHandler.Get),
	}))
	mux.Handle("/api/v1/events/{id}/cancel", methodMux(map[string]http.Handler{
		http.MethodPost: authed(eventsHandler.Cancel),
	}))

	mux.Handle("/api/v1/events/{id}/requests", methodMux(map[string]http.Handler{
		http.MethodGet:  authed(attendanceHandler.List),
		http.MethodPost: authed(attendanceHandler.Join),
	}))
	mux.Handle("/api/v1/events/{id}/requests/{requestId}/approve", methodMux(map[string]http.Handler{
		http.MethodPost: authed(attendanceHandler.Approve),
	}))
	mux.Handle("/api/v1/events/{id}/requests/{requestId}/reject", methodMux(map[string]http.Handler{
		http.MethodPost: authed(attendanceHandler.Reject),
	}))

	mux.Handle("/api/v1/leaderboard", methodMux(map[string]http.Handler{
		http.MethodGet: public(leaderboardHandler.Get),
	}))

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
