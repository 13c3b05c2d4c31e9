// Package session persists the client's single-job session between command
// invocations: the current job, its canonical result set, the table view
// state, and the pending-edit overlay.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/racmlabs/racm-int/internal/job"
	"github.com/racmlabs/racm-int/internal/models"
	"github.com/racmlabs/racm-int/internal/table"
)

// Session is everything the client remembers about the current job. Exactly
// one session exists; a new submission replaces it.
type Session struct {
	Job      *models.Job        `json:"job,omitempty"`
	Activity []job.ActivityEntry `json:"activity,omitempty"`
	Result   *models.ResultSet  `json:"result,omitempty"`
	View     table.ViewState    `json:"view"`
}

// HasResult reports whether results have been loaded for the current job.
func (s *Session) HasResult() bool {
	return s.Result != nil
}

// HasPendingEdits reports whether the persisted overlay is non-empty.
func (s *Session) HasPendingEdits() bool {
	return len(s.View.Overlay) > 0
}

// Manager reads and writes the session file.
type Manager struct {
	path string
}

// NewManager creates a manager for the default session file,
// ~/.racm/session.json.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return &Manager{path: filepath.Join(home, ".racm", "session.json")}, nil
}

// NewManagerWithPath creates a manager for a specific session file path.
func NewManagerWithPath(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the session file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the session. A missing file yields an empty session. A corrupt
// file also yields an empty session, with the parse error returned so the
// caller can warn; the broken file is left in place until the next Save.
func (m *Manager) Load() (*Session, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return &Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return &Session{}, fmt.Errorf("session file %s is corrupt: %w", m.path, err)
	}
	return &s, nil
}

// Save writes the session atomically (write temp, then rename).
func (m *Manager) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing an absent session is a no-op.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
