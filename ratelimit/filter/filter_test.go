package filter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/next-trace/scg-saas-dispatch/ratelimit"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/filter"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/stats"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) *ratelimit.Service {
	t.Helper()

	store := ratelimit.NewMemoryBucketStore(ratelimit.WithClock(func() time.Time { return fixedNow }))

	l, err := ratelimit.NewTokenBucketLimiter(store, nil)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}

	return ratelimit.NewService(l, nil)
}

func okHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, path, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "10.0.0.1:5555"

	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestFilter_SixthLoginIsRejected(t *testing.T) {
	var calls int32

	st := stats.NewMemoryStore()
	mw := filter.New(newService(t), filter.Options{
		Enabled: true,
		Stats:   st,
		Now:     func() time.Time { return fixedNow },
	})
	h := mw(okHandler(&calls))

	for i := 4; i >= 0; i-- {
		rec := doRequest(h, "/api/auth/login", "203.0.113.5, 10.1.1.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}

		if got := rec.Header().Get(filter.HeaderRemaining); got != strconv.Itoa(i) {
			t.Fatalf("remaining header=%q want %d", got, i)
		}
	}

	rec := doRequest(h, "/api/auth/login", "203.0.113.5")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", rec.Code)
	}

	if calls != 5 {
		t.Fatalf("business handler must not run on denial, calls=%d", calls)
	}

	if rec.Header().Get(filter.HeaderRetryAfterSeconds) != "12" || rec.Header().Get("Retry-After") != "12" {
		t.Fatalf("retry headers: %v", rec.Header())
	}

	var body struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			Timestamp  string `json:"timestamp"`
			RetryAfter int64  `json:"retryAfter"`
			Path       string `json:"path"`
		} `json:"error"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}

	e := body.Error
	if e.Code != filter.ErrorCode || e.Message != filter.ErrorMessage || e.Path != "/api/auth/login" {
		t.Fatalf("body=%+v", e)
	}

	if e.RetryAfter <= 0 || e.RetryAfter > 60 || e.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("body=%+v", e)
	}

	if got := st.Total(); got.Allowed != 5 || got.Denied != 1 {
		t.Fatalf("stats=%+v", got)
	}
}

func TestFilter_StatsKeyedByMatchedPrefix(t *testing.T) {
	var calls int32

	st := stats.NewMemoryStore()
	h := filter.New(newService(t), filter.Options{Enabled: true, Stats: st})(okHandler(&calls))

	for _, p := range []string{"/api/auth/login", "/api/auth/x1", "/api/auth/x2/y"} {
		doRequest(h, p, "198.51.100.20")
	}

	routes := st.ByRoute()
	if len(routes) != 1 || routes["POST /api/auth/"].Allowed != 3 {
		t.Fatalf("routes=%+v", routes)
	}
}

func TestFilter_NonAuthPathsBypass(t *testing.T) {
	var calls int32

	h := filter.New(newService(t), filter.Options{Enabled: true})(okHandler(&calls))

	for range 10 {
		rec := doRequest(h, "/api/workspace/123", "203.0.113.5")
		if rec.Code != http.StatusOK || rec.Header().Get(filter.HeaderRemaining) != "" {
			t.Fatalf("workspace path must not be limited: %d %v", rec.Code, rec.Header())
		}
	}

	if calls != 10 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestFilter_DisabledPassesThrough(t *testing.T) {
	var calls int32

	h := filter.New(newService(t), filter.Options{Enabled: false})(okHandler(&calls))

	for range 7 {
		if rec := doRequest(h, "/api/auth/login", ""); rec.Code != http.StatusOK {
			t.Fatalf("disabled filter rejected: %d", rec.Code)
		}
	}
}

type countingService struct {
	calls int32
	err   error
}

func (s *countingService) ConsumeTokenWithStrategy(context.Context, string, string, ratelimit.Strategy) (ratelimit.Result, error) {
	atomic.AddInt32(&s.calls, 1)

	if s.err != nil {
		return ratelimit.Result{}, s.err
	}

	return ratelimit.Allowed(3), nil
}

func TestFilter_InstalledTwiceConsumesOnce(t *testing.T) {
	var calls int32

	svc := &countingService{}
	mw := filter.New(svc, filter.Options{Enabled: true})

	h := mw(mw(okHandler(&calls)))
	doRequest(h, "/api/auth/register", "")

	if svc.calls != 1 {
		t.Fatalf("want one token consumed per request, got %d", svc.calls)
	}
}

func TestFilter_LimiterErrorFailsOpen(t *testing.T) {
	var calls int32

	svc := &countingService{err: errors.New("store offline")}
	h := filter.New(svc, filter.Options{Enabled: true})(okHandler(&calls))

	if rec := doRequest(h, "/api/auth/login", ""); rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("want request to continue, got %d calls=%d", rec.Code, calls)
	}
}

func TestFilter_CustomPrefixes(t *testing.T) {
	var calls int32

	svc := &countingService{}
	h := filter.New(svc, filter.Options{Enabled: true, AuthPathPrefixes: []string{"/login"}})(okHandler(&calls))

	doRequest(h, "/api/auth/login", "")
	doRequest(h, "/login/sso", "")

	if svc.calls != 1 {
		t.Fatalf("only configured prefixes are limited, got %d", svc.calls)
	}
}

func TestIdentifier(t *testing.T) {
	cases := []struct {
		name, xff, remote, want string
	}{
		{"forwarded first entry", " 203.0.113.5 , 10.0.0.2", "10.0.0.1:1", "IP:203.0.113.5"},
		{"remote host", "", "192.0.2.7:4321", "IP:192.0.2.7"},
		{"remote without port", "", "192.0.2.8", "IP:192.0.2.8"},
		{"blank forwarded falls back", " , 1.1.1.1", "192.0.2.9:1", "IP:192.0.2.9"},
		{"nothing", "", "", "IP:unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote

			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}

			if got := filter.Identifier(req); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
