package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

type RegisterUserHandler struct {
	Store     *Store
	Passwords PasswordHasher
	Events    cbus.DomainPublisher
	Now       func() time.Time
}

var _ cbus.CommandWithResultHandler[RegisterUser, string] = RegisterUserHandler{}

func (h RegisterUserHandler) Handle(ctx context.Context, c RegisterUser) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	hash, err := h.Passwords.Hash(c.Password)
	if err != nil {
		return "", err
	}

	u := User{ID: uuid.NewString(), Email: c.Email, Name: c.Name, CreatedAt: now(h.Now)}
	if err := h.Store.addUser(u, hash); err != nil {
		return "", err
	}

	if h.Events != nil {
		h.Events.Publish(ctx, UserCreatedEvent{
			BaseEvent: cbus.NewBaseEvent(),
			UserID:    u.ID,
			Email:     u.Email,
			Name:      u.Name,
		})
	}

	return u.ID, nil
}

type AuthenticateHandler struct {
	Store     *Store
	Passwords PasswordHasher
	// DecoyHash is verified for unknown emails so both failures cost one hash comparison.
	DecoyHash string
}

var _ cbus.QueryHandler[Authenticate, User] = AuthenticateHandler{}

func (h AuthenticateHandler) Handle(_ context.Context, q Authenticate) (User, error) {
	u, hash, ok := h.Store.userByEmail(q.Email)
	if !ok {
		if h.DecoyHash != "" {
			_ = h.Passwords.Verify(h.DecoyHash, q.Password)
		}

		return User{}, fmt.Errorf("authenticate %s: %w", q.Email, berr.ErrUnauthorized)
	}

	if err := h.Passwords.Verify(hash, q.Password); err != nil {
		return User{}, fmt.Errorf("authenticate %s: %w", q.Email, err)
	}

	return u, nil
}

type CreateWorkspaceHandler struct {
	Store *Store
	Now   func() time.Time
}

var _ cbus.CommandHandler[CreateWorkspace] = CreateWorkspaceHandler{}

func (h CreateWorkspaceHandler) Handle(_ context.Context, c CreateWorkspace) error {
	if err := c.validate(); err != nil {
		return err
	}

	return h.Store.addWorkspace(Workspace{ID: c.ID, OwnerID: c.OwnerID, Name: c.Name, CreatedAt: now(h.Now)})
}

type GetWorkspaceHandler struct{ Store *Store }

var _ cbus.QueryHandler[GetWorkspace, Workspace] = GetWorkspaceHandler{}

func (h GetWorkspaceHandler) Handle(_ context.Context, q GetWorkspace) (Workspace, error) {
	return h.Store.workspace(q.ID)
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now().UTC()
	}

	return fn().UTC()
}
