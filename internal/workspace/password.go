package workspace

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// Bcrypt hashes passwords with bcrypt at Cost; zero means bcrypt.DefaultCost.
type Bcrypt struct{ Cost int }

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports a mismatch as ErrUnauthorized.
func (Bcrypt) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return berr.ErrUnauthorized
	}

	return err
}
