// Package workspace is the demo tenant domain served by saasd: user registration,
// workspace creation and lookup, all dispatched through the mediator.
package workspace

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Workspace struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterUser creates a user and yields its ID.
type RegisterUser struct {
	cbus.BaseCommandWithResult[string]

	Email    string
	Name     string
	Password string
}

// Authenticate resolves the user owning Email when Password matches.
// Unknown emails and wrong passwords fail alike with ErrUnauthorized.
type Authenticate struct {
	cbus.BaseQuery[User]

	Email    string
	Password string
}

// bcrypt only reads the first 72 bytes of a password.
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

type CreateWorkspace struct {
	cbus.BaseCommand

	ID      string
	OwnerID string
	Name    string
}

type GetWorkspace struct {
	cbus.BaseQuery[Workspace]

	ID string
}

// UserCreatedEvent is published after a user has been stored.
type UserCreatedEvent struct {
	cbus.BaseEvent

	UserID string
	Email  string
	Name   string
}

func (c RegisterUser) validate() error {
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("email %q: %w", c.Email, berr.ErrValidation)
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required: %w", berr.ErrValidation)
	}

	if len(c.Password) < minPasswordLen || len(c.Password) > maxPasswordLen {
		return fmt.Errorf("password must be %d to %d bytes: %w", minPasswordLen, maxPasswordLen, berr.ErrValidation)
	}

	return nil
}

func (c CreateWorkspace) validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("workspace id is required: %w", berr.ErrValidation)
	case c.OwnerID == "":
		return fmt.Errorf("owner id is required: %w", berr.ErrValidation)
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("workspace name is required: %w", berr.ErrValidation)
	}

	return nil
}

// Store keeps users, their password hashes and workspaces in memory.
type Store struct {
	mu         sync.RWMutex
	users      map[string]User
	hashes     map[string]string
	byEmail    map[string]string
	workspaces map[string]Workspace
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]User),
		hashes:     make(map[string]string),
		byEmail:    make(map[string]string),
		workspaces: make(map[string]Workspace),
	}
}

func (s *Store) addUser(u User, hash string) error {
	key := strings.ToLower(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("user %s: %w", u.Email, berr.ErrConflict)
	}

	s.users[u.ID] = u
	s.hashes[u.ID] = hash
	s.byEmail[key] = u.ID

	return nil
}

// userByEmail returns the user and its password hash.
func (s *Store) userByEmail(email string) (User, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, "", false
	}

	return s.users[id], s.hashes[id], true
}

func (s *Store) addWorkspace(w Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[w.OwnerID]; !ok {
		return fmt.Errorf("owner %s: %w", w.OwnerID, berr.ErrValidation)
	}

	if _, ok := s.workspaces[w.ID]; ok {
		return fmt.Errorf("workspace %s: %w", w.ID, berr.ErrConflict)
	}

	s.workspaces[w.ID] = w

	return nil
}

func (s *Store) workspace(id string) (Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workspaces[id]
	if !ok {
		return Workspace{}, fmt.Errorf("workspace %s: %w", id, berr.ErrNotFound)
	}

	return w, nil
}
