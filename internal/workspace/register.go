package workspace

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/provider"
)

// Dispatcher is the slice of the bus the workspace domain depends on.
type Dispatcher interface {
	cbus.Mediator
	cbus.DomainPublisher
}

type Options struct {
	Logger *slog.Logger
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

// Register binds the workspace handlers and the default workspace subscriber in reg.
// b serves both as the subscriber's mediator and the handlers' event publisher.
func Register(reg *provider.Registry, store *Store, b Dispatcher, opts Options) error {
	pw := Bcrypt{Cost: opts.PasswordCost}

	decoy, err := pw.Hash(uuid.NewString())
	if err != nil {
		return err
	}

	return errors.Join(
		provider.RegisterCommandWithResult[RegisterUser, string](reg, RegisterUserHandler{Store: store, Passwords: pw, Events: b}),
		provider.RegisterQuery[Authenticate, User](reg, AuthenticateHandler{Store: store, Passwords: pw, DecoyHash: decoy}),
		provider.RegisterCommand[CreateWorkspace](reg, CreateWorkspaceHandler{Store: store}),
		provider.RegisterQuery[GetWorkspace, Workspace](reg, GetWorkspaceHandler{Store: store}),
		reg.Register(DefaultWorkspaceSubscriber{Mediator: b, Logger: opts.Logger}),
	)
}
