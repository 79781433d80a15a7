package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionFileName is the file holding the saved login session.
const SessionFileName = ".board_session.yaml"

// SessionCookie is one saved cookie.
type SessionCookie struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// SessionFile represents the top-level structure of the session file.
type SessionFile struct {
	Version  string          `yaml:"version"`
	Server   string          `yaml:"server"`
	Location string          `yaml:"location,omitempty"`
	Saved    string          `yaml:"saved,omitempty"`
	Cookies  []SessionCookie `yaml:"cookies"`
}

// SessionManager persists the server session between command invocations so
// that a login survives until logout.
type SessionManager interface {
	// Cookies returns the saved cookies when they belong to server.
	Cookies(server string) map[string]string
	// Location returns the last visited path on server, or "".
	Location(server string) string
	// Update replaces the saved state for server.
	Update(server, location string, cookies map[string]string)
	Clear()
	Load() error
	Save() error
}

type fileSessionManager struct {
	basePath string
	data     SessionFile
	now      func() time.Time
}

// NewSessionManager creates a SessionManager backed by a session file in the
// given base directory.
func NewSessionManager(basePath string) SessionManager {
	return &fileSessionManager{
		basePath: basePath,
		data:     SessionFile{Version: "1.0"},
		now:      time.Now,
	}
}

func (m *fileSessionManager) filePath() string {
	return filepath.Join(m.basePath, SessionFileName)
}

func (m *fileSessionManager) Cookies(server string) map[string]string {
	out := make(map[string]string)
	if m.data.Server != server {
		return out
	}
	for _, c := range m.data.Cookies {
		out[c.Name] = c.Value
	}
	return out
}

func (m *fileSessionManager) Location(server string) string {
	if m.data.Server != server {
		return ""
	}
	return m.data.Location
}

func (m *fileSessionManager) Update(server, location string, cookies map[string]string) {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make([]SessionCookie, 0, len(names))
	for _, name := range names {
		saved = append(saved, SessionCookie{Name: name, Value: cookies[name]})
	}
	m.data = SessionFile{
		Version:  "1.0",
		Server:   server,
		Location: location,
		Saved:    m.now().UTC().Format(time.RFC3339),
		Cookies:  saved,
	}
}

func (m *fileSessionManager) Clear() {
	m.data = SessionFile{Version: "1.0"}
}

func (m *fileSessionManager) Load() error {
	data, err := os.ReadFile(m.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			m.data = SessionFile{Version: "1.0"}
			return nil
		}
		return fmt.Errorf("loading session: %w", err)
	}

	var sf SessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("loading session: parsing YAML: %w", err)
	}
	m.data = sf
	return nil
}

func (m *fileSessionManager) Save() error {
	if err := os.MkdirAll(m.basePath, 0o750); err != nil {
		return fmt.Errorf("saving session: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&m.data)
	if err != nil {
		return fmt.Errorf("saving session: marshaling YAML: %w", err)
	}

	unlock, err := lockFile(m.filePath() + ".lock")
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	defer func() { _ = unlock() }()

	// Write to a sibling file and rename so a reader never sees a partial file.
	tmp := m.filePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("saving session: writing file: %w", err)
	}
	if err := os.Rename(tmp, m.filePath()); err != nil {
		return fmt.Errorf("saving session: replacing file: %w", err)
	}
	return nil
}
