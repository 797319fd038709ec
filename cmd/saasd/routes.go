package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
	"github.com/next-trace/scg-saas-dispatch/internal/workspace"
	"github.com/next-trace/scg-saas-dispatch/ratelimit"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/filter"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

// businessLimiter applies the BUSINESS strategy to tenant routes.
type businessLimiter interface {
	ConsumeToken(ctx context.Context, identifier, endpoint string) (ratelimit.Result, error)
}

type api struct {
	bus    cbus.Mediator
	limits businessLimiter
	logger *slog.Logger
}

func routes(a api) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", a.register)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.HandleFunc("GET /api/workspace/{id}", a.getWorkspace)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return withCorrelation(mux)
}

// withCorrelation carries an inbound correlation header into the request context.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(cbus.CorrelationHeader); id != "" {
			r = r.WithContext(cbus.WithCorrelationID(r.Context(), id))
		}

		next.ServeHTTP(w, r)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
}

func (a api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	id, err := servicebus.ExecuteWithResult[string](r.Context(), a.bus, workspace.RegisterUser{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{UserID: id, WorkspaceID: workspace.DefaultWorkspaceID(id)})
}

func (a api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	u, err := servicebus.Ask[workspace.User](r.Context(), a.bus, workspace.Authenticate{Email: req.Email, Password: req.Password})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{UserID: u.ID, WorkspaceID: workspace.DefaultWorkspaceID(u.ID)})
}

func (a api) getWorkspace(w http.ResponseWriter, r *http.Request) {
	id := filter.Identifier(r)

	res, err := a.limits.ConsumeToken(r.Context(), id, r.URL.Path)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	w.Header().Set(filter.HeaderRemaining, strconv.FormatInt(res.Remaining(), 10))

	if !res.IsAllowed() {
		w.Header().Set(filter.HeaderRetryAfterSeconds, strconv.FormatInt(res.RetryAfterSeconds(), 10))
		w.Header().Set("Retry-After", strconv.FormatInt(res.RetryAfterSeconds(), 10))
		a.fail(w, r, res.Err(id))

		return
	}

	ws, err := servicebus.Ask[workspace.Workspace](r.Context(), a.bus, workspace.GetWorkspace{ID: r.PathValue("id")})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ws)
}

type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// fail maps err onto a status. Unexpected failures are logged and their detail withheld.
func (a api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := berr.HTTPStatus(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)

		msg = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{Status: status, Error: http.StatusText(status), Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body: %v: %w", err, berr.ErrValidation)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
