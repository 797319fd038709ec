// Package filter enforces the AUTH rate limit on authentication endpoints.
//
// The middleware keys the limit by client address, answers denials itself with a
// structured 429 and never lets a rate-limit error reach the wrapped handler.
package filter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/next-trace/scg-saas-dispatch/ratelimit"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/stats"
)

const (
	HeaderRemaining         = "X-Rate-Limit-Remaining"
	HeaderRetryAfterSeconds = "X-Rate-Limit-Retry-After-Seconds"

	ErrorCode    = "RATE_LIMIT_EXCEEDED"
	ErrorMessage = "Too many authentication attempts. Please try again later."

	// DefaultAuthPathPrefix is used when Options.AuthPathPrefixes is empty.
	DefaultAuthPathPrefix = "/api/auth/"
)

// Service is the part of ratelimit.Service the filter needs.
type Service interface {
	ConsumeTokenWithStrategy(ctx context.Context, identifier, endpoint string, s ratelimit.Strategy) (ratelimit.Result, error)
}

// Options configures the filter.
type Options struct {
	// Enabled switches enforcement on. A disabled filter passes every request through.
	Enabled bool
	// AuthPathPrefixes selects the limited paths.
	AuthPathPrefixes []string
	// Stats, when set, records every decision best-effort.
	Stats  stats.Store
	Logger *slog.Logger
	Now    func() time.Time
}

type appliedKey struct{}

// New returns the middleware. Installing it twice in one chain enforces once.
func New(svc Service, opts Options) func(http.Handler) http.Handler {
	if len(opts.AuthPathPrefixes) == 0 {
		opts.AuthPathPrefixes = []string{DefaultAuthPathPrefix}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Value(appliedKey{}) != nil {
				next.ServeHTTP(w, r)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), appliedKey{}, true))

			route, ok := matchPrefix(r.URL.Path, opts.AuthPathPrefixes)
			if !opts.Enabled || !ok {
				next.ServeHTTP(w, r)
				return
			}

			id := Identifier(r)

			res, err := svc.ConsumeTokenWithStrategy(r.Context(), id, r.URL.Path, ratelimit.StrategyAuth)
			if err != nil {
				opts.Logger.ErrorContext(r.Context(), "rate limit check failed, letting request through",
					"identifier", id, "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)

				return
			}

			record(r, opts, id, route, res)

			if res.IsAllowed() {
				w.Header().Set(HeaderRemaining, strconv.FormatInt(res.Remaining(), 10))
				next.ServeHTTP(w, r)

				return
			}

			writeDenied(w, r, opts.Now(), res)
		})
	}
}

// matchPrefix returns the first configured prefix path starts with.
func matchPrefix(path string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return p, true
		}
	}

	return "", false
}

// Identifier keys a request by client address: the first X-Forwarded-For entry, then the
// remote host, then "unknown". The result is prefixed with "IP:".
func Identifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "IP:" + ip
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return "IP:" + host
	}

	if addr != "" {
		return "IP:" + addr
	}

	return "IP:unknown"
}

func record(r *http.Request, opts Options, id, route string, res ratelimit.Result) {
	if opts.Stats == nil {
		return
	}

	err := opts.Stats.Record(r.Context(), stats.Event{
		Identifier: id,
		Strategy:   ratelimit.StrategyAuth.String(),
		Allowed:    res.IsAllowed(),
		Method:     r.Method,
		Route:      route,
		At:         opts.Now(),
	})
	if err != nil {
		opts.Logger.WarnContext(r.Context(), "rate limit stats not recorded", "err", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	RetryAfter int64  `json:"retryAfter"`
	Path       string `json:"path"`
}

func writeDenied(w http.ResponseWriter, r *http.Request, now time.Time, res ratelimit.Result) {
	secs := res.RetryAfterSeconds()
	v := strconv.FormatInt(secs, 10)

	w.Header().Set(HeaderRetryAfterSeconds, v)
	w.Header().Set("Retry-After", v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Code:       ErrorCode,
		Message:    ErrorMessage,
		Timestamp:  now.UTC().Format(time.RFC3339),
		RetryAfter: secs,
		Path:       r.URL.Path,
	}})
}
