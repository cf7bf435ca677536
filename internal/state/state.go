// Package state persists the listening session (queue and volume) between
// runs in a SQLite database.
package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "cadence"
	dbFileName   = "session.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	writeMu   sync.Mutex // held while a save is in flight
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *Session
	onError   func(error)
}

// Open opens the session database at path, or at the default location
// under $XDG_DATA_HOME when path is empty.
func Open(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db, onError: func(error) {}}, nil
}

// DefaultPath returns the session database location.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// OnError sets the function called when a deferred save fails.
func (m *Manager) OnError(fn func(error)) {
	m.saveMu.Lock()
	m.onError = fn
	m.saveMu.Unlock()
}

// Close writes any pending session and closes the database.
func (m *Manager) Close() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	var err error
	if pending != nil {
		err = saveSession(m.db, *pending)
	}
	if cerr := m.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Load returns the saved session, or nil if none was saved.
func (m *Manager) Load() (*Session, error) {
	return getSession(m.db)
}

// Save writes s immediately.
func (m *Manager) Save(s Session) error {
	return saveSession(m.db, s)
}

// SaveLater writes s after a short delay. A later call replaces s.
func (m *Manager) SaveLater(s Session) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &s

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()

		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		onError := m.onError
		m.saveMu.Unlock()

		if pending != nil {
			if err := saveSession(m.db, *pending); err != nil {
				onError(err)
			}
		}
	})
}
