package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestGate_Authenticate(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)
	gate := NewGate(issuer)

	valid, err := issuer.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	foreign, err := NewIssuer("other-secret", 0).Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"valid token", "Bearer " + valid, nil},
		{"lowercase scheme", "bearer " + valid, nil},
		{"no header", "", ErrUnauthorized},
		{"scheme only", "Bearer", ErrUnauthorized},
		{"wrong scheme", "Basic " + valid, ErrUnauthorized},
		{"extra fields", "Bearer a b", ErrUnauthorized},
		{"garbage token", "Bearer not-a-jwt", ErrInvalidToken},
		{"wrong signature", "Bearer " + foreign, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := gate.Authenticate(tt.header)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Authenticate() unexpected error: %v", err)
				}
				if claims.Email != "a@x.com" {
					t.Errorf("Expected email a@x.com, got %s", claims.Email)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() error = %v, expected %v", err, tt.wantErr)
			}
			if !IsAuthError(err) {
				t.Errorf("Expected IsAuthError for %v", err)
			}
		})
	}
}

func TestGate_ExpiredTokenIsInvalid(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, err := issuer.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	issuer.now = time.Now
	_, err = NewGate(issuer).Authenticate("Bearer " + token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("Expired token must be distinct from a missing credential")
	}
}

func TestUserStore_SignupThenLogin(t *testing.T) {
	store := NewUserStore(bcrypt.MinCost)

	user, err := store.Signup("A", "a@x.com", "p")
	if err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	if user.Name != "A" || user.Email != "a@x.com" {
		t.Errorf("Unexpected user %+v", user)
	}

	user, err = store.Login("a@x.com", "p")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if user.Name != "A" {
		t.Errorf("Expected name A, got %s", user.Name)
	}

	if _, err := store.Login("a@x.com", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Expected ErrInvalidPassword, got %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 user, got %d", store.Count())
	}
}

func TestUserStore_LongPassword(t *testing.T) {
	store := NewUserStore(bcrypt.MinCost)
	long := strings.Repeat("x", maxPasswordBytes+20)

	if _, err := store.Signup("A", "a@x.com", long); err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	if _, err := store.Login("a@x.com", long); err != nil {
		t.Errorf("Login() with the full password error: %v", err)
	}
	if _, err := store.Login("a@x.com", long[:maxPasswordBytes]); err != nil {
		t.Errorf("Login() with the first %d bytes error: %v", maxPasswordBytes, err)
	}
	if _, err := store.Login("a@x.com", long[:maxPasswordBytes-1]); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Expected ErrInvalidPassword, got %v", err)
	}
}

func TestUserStore_Errors(t *testing.T) {
	store := NewUserStore(bcrypt.MinCost)
	if _, err := store.Signup("A", "a@x.com", "p"); err != nil {
		t.Fatalf("Signup() error: %v", err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"signup missing name", func() error { _, err := store.Signup("", "b@x.com", "p"); return err }, ErrMissingFields},
		{"signup missing password", func() error { _, err := store.Signup("B", "b@x.com", ""); return err }, ErrMissingFields},
		{"signup duplicate email", func() error { _, err := store.Signup("A2", "a@x.com", "q"); return err }, ErrUserExists},
		{"login missing fields", func() error { _, err := store.Login("", "p"); return err }, ErrMissingFields},
		{"login unknown email", func() error { _, err := store.Login("nobody@x.com", "p"); return err }, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, expected %v", err, tt.wantErr)
			}
		})
	}

	if store.Count() != 1 {
		t.Errorf("Expected 1 account, got %d", store.Count())
	}
}
