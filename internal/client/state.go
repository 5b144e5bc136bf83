package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"marketdash/pkg/models"
)

// storedState mirrors the three keys the browser dashboard keeps in local
// storage.
type storedState struct {
	AuthToken   string         `json:"authToken,omitempty"`
	CurrentUser *models.User   `json:"currentUser,omitempty"`
	PriceAlerts []models.Alert `json:"priceAlerts"`
}

// StateFile is the client's local persisted state. An empty path keeps
// everything in memory.
type StateFile struct {
	path string
	mu   sync.Mutex
	data storedState
}

// OpenState loads path if it exists. A missing file starts empty.
func OpenState(path string) (*StateFile, error) {
	s := &StateFile{path: path}
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return s, nil
}

func (s *StateFile) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AuthToken
}

// User returns the logged-in user, if any.
func (s *StateFile) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.CurrentUser == nil {
		return models.User{}, false
	}
	return *s.data.CurrentUser, true
}

func (s *StateFile) Alerts() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.data.PriceAlerts...)
}

func (s *StateFile) SetSession(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := session.User
	s.data.AuthToken = session.Token
	s.data.CurrentUser = &user
	return s.writeLocked()
}

// Logout forgets the token and user. Alerts survive a logout.
func (s *StateFile) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.AuthToken = ""
	s.data.CurrentUser = nil
	return s.writeLocked()
}

func (s *StateFile) SaveAlerts(alerts []models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.PriceAlerts = append([]models.Alert(nil), alerts...)
	return s.writeLocked()
}

func (s *StateFile) writeLocked() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
