package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// SessionState is mutable per-session scratch state, separate from the
// immutable cached Project.
type SessionState struct {
	mu         sync.RWMutex
	currentDir string
}

// CurrentDir returns the session's cached working directory.
func (s *SessionState) CurrentDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDir
}

// SetCurrentDir updates the session's cached working directory, as
// reported by a send_working_directory callback.
func (s *SessionState) SetCurrentDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDir = dir
}

// Listener receives session lifecycle notifications. The template context
// cache is the canonical listener (§4.H): on either callback it drops its
// memoised context chain.
type Listener interface {
	OnSessionChanged(projectName string)
	OnConfigChanged(projectName string)
}

// Session is per-project runtime state: the project name, a reference to
// the backing ConfigManager, a lazily-loaded and cached immutable Project,
// mutable SessionState, and a set of listeners notified on session and
// config changes.
type Session struct {
	configManager *ConfigManager
	projectName   string

	mu             sync.Mutex
	cachedProject  *Project
	state          *SessionState
	listeners      []Listener
}

// New builds a Session for projectName, validating the name immediately.
func New(configManager *ConfigManager, projectName string) (*Session, error) {
	if err := ValidateProjectName(projectName); err != nil {
		return nil, err
	}
	return &Session{
		configManager: configManager,
		projectName:   projectName,
		state:         &SessionState{},
	}, nil
}

// ProjectName returns the session's project name.
func (s *Session) ProjectName() string { return s.projectName }

// State returns the session's mutable scratch state.
func (s *Session) State() *SessionState { return s.state }

// Docroot returns the document root configured for the project store.
func (s *Session) Docroot() string { return s.configManager.GetDocroot() }

// AddListener registers listener, a no-op if already registered.
func (s *Session) AddListener(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		if l == listener {
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

// RemoveListener unregisters listener.
func (s *Session) RemoveListener(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.listeners[:0:0]
	for _, l := range s.listeners {
		if l != listener {
			kept = append(kept, l)
		}
	}
	s.listeners = kept
}

func (s *Session) notifySessionChanged() {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		notifySafely(func() { l.OnSessionChanged(s.projectName) })
	}
}

func (s *Session) notifyConfigChanged() {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		notifySafely(func() { l.OnConfigChanged(s.projectName) })
	}
}

func notifySafely(f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("session.listener_panic", "recover", r)
		}
	}()
	f()
}

// GetProject returns the lazily-loaded, cached Project, loading it from
// the ConfigManager on first access.
func (s *Session) GetProject() (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedProject != nil {
		return s.cachedProject, nil
	}
	p, err := s.configManager.GetOrCreateProjectConfig(s.projectName)
	if err != nil {
		return nil, err
	}
	s.cachedProject = p
	return p, nil
}

// UpdateConfig loads the current Project, applies updater, persists the
// result atomically, replaces the cached value, and notifies listeners.
func (s *Session) UpdateConfig(updater func(*Project) (*Project, error)) error {
	current, err := s.GetProject()
	if err != nil {
		return err
	}
	updated, err := updater(current)
	if err != nil {
		return err
	}
	if err := s.configManager.SaveProjectConfig(updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.cachedProject = updated
	s.mu.Unlock()

	s.notifyConfigChanged()
	return nil
}

// SaveProject persists project directly without touching the session's
// cache — mirrors the source's save_project, used when saving a project
// other than the currently cached one.
func (s *Session) SaveProject(project *Project) error {
	return s.configManager.SaveProjectConfig(project)
}

// GetAllProjects returns a point-in-time snapshot of every persisted
// project.
func (s *Session) GetAllProjects() (map[string]*Project, error) {
	return s.configManager.GetAllProjectConfigs()
}

// InvalidateCache forces the next GetProject call to reload from disk.
func (s *Session) InvalidateCache() {
	s.mu.Lock()
	s.cachedProject = nil
	s.mu.Unlock()
}

// Manager owns task-local session isolation: the Go analogue of the
// source's ContextVar-based active_sessions, implemented as an explicit
// map keyed by caller-supplied scope token rather than implicit
// propagation. cmd/serve.go passes the same scope "default" for every
// request, so requests share one session map.
type Manager struct {
	mu       sync.Mutex
	sessions map[scopeKey]map[string]*Session

	configManager *ConfigManager
}

type scopeKey = string

// NewManager builds a session Manager backed by configManager.
func NewManager(configManager *ConfigManager) *Manager {
	return &Manager{
		sessions:      make(map[scopeKey]map[string]*Session),
		configManager: configManager,
	}
}

// GetOrCreateSession returns the Session for projectName within scope,
// creating one (and registering listener, if non-nil, and notifying it of
// the new session) if absent. scope is the task-local isolation key: the
// Go analogue of a Python ContextVar snapshot, typically one per inbound
// request.
func (m *Manager) GetOrCreateSession(scope, projectName string, listener Listener) (*Session, error) {
	m.mu.Lock()
	scoped, ok := m.sessions[scope]
	if !ok {
		scoped = make(map[string]*Session)
		m.sessions[scope] = scoped
	}
	if existing, ok := scoped[projectName]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	sess, err := New(m.configManager, projectName)
	if err != nil {
		return nil, err
	}
	if listener != nil {
		sess.AddListener(listener)
	}

	m.mu.Lock()
	m.sessions[scope][projectName] = sess
	m.mu.Unlock()

	sess.notifySessionChanged()
	return sess, nil
}

// GetCurrentSession returns the session for projectName within scope, or
// the first available session in that scope if projectName is empty.
func (m *Manager) GetCurrentSession(scope, projectName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	scoped, ok := m.sessions[scope]
	if !ok {
		return nil
	}
	if projectName != "" {
		return scoped[projectName]
	}
	for _, s := range scoped {
		return s
	}
	return nil
}

// RemoveCurrentSession drops the session for projectName within scope.
func (m *Manager) RemoveCurrentSession(scope, projectName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scoped, ok := m.sessions[scope]; ok {
		delete(scoped, projectName)
	}
}

// ErrNoCurrentProject is returned when project resolution finds nothing.
var ErrNoCurrentProject = fmt.Errorf("no current project set")
