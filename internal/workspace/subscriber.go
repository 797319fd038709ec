package workspace

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

var defaultWorkspaceNS = uuid.MustParse("8f7c3b4e-2d1a-4c6e-9b0f-5a3d2e1c7b90")

// DefaultWorkspaceID is the ID of the workspace created for a new user.
func DefaultWorkspaceID(userID string) string {
	return uuid.NewSHA1(defaultWorkspaceNS, []byte(userID)).String()
}

// DefaultWorkspaceSubscriber gives every new user a personal workspace. Failures are
// logged and never reach the publisher.
type DefaultWorkspaceSubscriber struct {
	Mediator cbus.Mediator
	Logger   *slog.Logger
}

var _ servicebus.Subscriber = DefaultWorkspaceSubscriber{}

func (s DefaultWorkspaceSubscriber) Subscribe(em *servicebus.Emitter) {
	servicebus.OnAll(em, s.onUserCreated)
}

func (s DefaultWorkspaceSubscriber) onUserCreated(ctx context.Context, e UserCreatedEvent) error {
	cmd := CreateWorkspace{ID: DefaultWorkspaceID(e.UserID), OwnerID: e.UserID, Name: e.Name + "'s workspace"}

	if err := servicebus.Execute(ctx, s.Mediator, cmd); err != nil {
		s.logger().WarnContext(ctx, "default workspace not created",
			"user_id", e.UserID,
			"workspace_id", cmd.ID,
			"error", err,
		)
	}

	return nil
}

func (s DefaultWorkspaceSubscriber) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}

	return s.Logger
}
