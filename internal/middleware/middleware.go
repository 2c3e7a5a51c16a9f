package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"
	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"instafeed/internal/config"
	handlers "instafeed/internal/handler"
	"instafeed/internal/metrics"
	"instafeed/internal/service"
)

var logger = loggo.GetLogger("instafeed.middleware")

type Middleware func(http.Handler) http.Handler

// TokenValidator resolves an access token to a user id.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

var publicPaths = map[string]bool{
	"/api/auth/signup":        true,
	"/api/auth/login":         true,
	"/api/auth/refresh-token": true,
	"/health":                 true,
	"/metrics":                true,
}

// AuthMiddleware verifies the bearer token and puts the user id into the
// request context. Websocket clients may pass the token as ?token=.
func AuthMiddleware(tokens TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				handlers.WriteError(w, "user not found, create your account", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.ValidateToken(tokenString)
			if err != nil {
				handlers.WriteError(w, err.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("token")
		return token, token != "" && r.URL.Path == "/api/events"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
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

// Unwrap lets http.ResponseController reach the underlying writer, which
// the websocket upgrade needs.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

type routeKey struct{}

// routeLabel is filled in by RouteLabelMiddleware once the router has
// matched a route. Unmatched requests keep the zero value.
type routeLabel struct {
	template string
}

const unmatchedRoute = "unmatched"

// LoggingMiddleware tags each request with an id, logs it and records
// request metrics. It wraps the router so that 404 and 405 responses are
// counted too; those are labelled "unmatched" to keep the route label
// bounded.
func LoggingMiddleware(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := xid.New().String()
			w.Header().Set("X-Request-ID", requestID)

			label := &routeLabel{}
			r = r.WithContext(context.WithValue(r.Context(), routeKey{}, label))

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			took := time.Since(start)

			route := label.template
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveRequest(r.Method, route, rec.status, took)
			logger.Infof("[%s] %s %s %d %s", requestID, r.Method, r.URL.Path, rec.status, took)
		})
	}
}

// RouteLabelMiddleware runs inside the router and hands the matched path
// template back to LoggingMiddleware.
func RouteLabelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeKey{}).(*routeLabel); ok {
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					label.template = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one limiter per client key and forgets clients
// idle for longer than idleTTL.
type clientLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(cfg config.RateLimit, now func() time.Time) *clientLimiters {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &clientLimiters{
		limiters:  map[string]*clientLimiter{},
		limit:     rate.Limit(cfg.PerSecond),
		burst:     cfg.Burst,
		idleTTL:   idleTTL,
		lastSweep: now(),
		now:       now,
	}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idleTTL {
		c.sweep(now)
	}

	entry, ok := c.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle clients. Callers hold mu.
func (c *clientLimiters) sweep(now time.Time) {
	for key, entry := range c.limiters {
		if now.Sub(entry.lastSeen) >= c.idleTTL {
			delete(c.limiters, key)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// RateLimitMiddleware limits auth endpoints per client IP. The IP is the
// connection's remote address; X-Forwarded-For is only honoured when
// cfg.TrustProxy is set.
func RateLimitMiddleware(cfg config.RateLimit) Middleware {
	return rateLimit(cfg, newClientLimiters(cfg, time.Now))
}

func rateLimit(cfg config.RateLimit, limiters *clientLimiters) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/auth/") {
				next.ServeHTTP(w, r)
				return
			}

			if !limiters.allow(clientIP(r, cfg.TrustProxy)) {
				handlers.WriteError(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
