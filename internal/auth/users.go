package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"marketdash/pkg/models"
)

var (
	ErrMissingFields   = errors.New("all fields are required")
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// bcrypt only reads the first 72 bytes of a password.
const maxPasswordBytes = 72

func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

type account struct {
	name         string
	email        string
	passwordHash []byte
}

// UserStore keeps accounts in memory keyed by email. Accounts are never
// updated or deleted and are lost on restart.
type UserStore struct {
	users map[string]*account
	cost  int
	mu    sync.RWMutex
}

func NewUserStore(bcryptCost int) *UserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserStore{
		users: make(map[string]*account),
		cost:  bcryptCost,
	}
}

func (s *UserStore) Signup(name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return models.User{}, ErrMissingFields
	}

	s.mu.RLock()
	_, exists := s.users[email]
	s.mu.RUnlock()
	if exists {
		return models.User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword(passwordBytes(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check: another signup may have won while hashing.
	if _, exists := s.users[email]; exists {
		return models.User{}, ErrUserExists
	}
	s.users[email] = &account{name: name, email: email, passwordHash: hash}

	return models.User{Name: name, Email: email}, nil
}

func (s *UserStore) Login(email, password string) (models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.User{}, ErrMissingFields
	}

	s.mu.RLock()
	acc, exists := s.users[email]
	s.mu.RUnlock()
	if !exists {
		return models.User{}, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, passwordBytes(password)); err != nil {
		return models.User{}, ErrInvalidPassword
	}

	return models.User{Name: acc.name, Email: acc.email}, nil
}

func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
