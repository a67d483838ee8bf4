package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	sessionChanges []string
	configChanges  []string
}

func (f *fakeListener) OnSessionChanged(name string) { f.sessionChanges = append(f.sessionChanges, name) }
func (f *fakeListener) OnConfigChanged(name string)  { f.configChanges = append(f.configChanges, name) }

func newTestManager(t *testing.T) *Manager {
	cm, err := NewConfigManager(t.TempDir(), "/docroot")
	require.NoError(t, err)
	return NewManager(cm)
}

func TestManager_GetOrCreateSession_ReusesExisting(t *testing.T) {
	m := newTestManager(t)
	listener := &fakeListener{}

	s1, err := m.GetOrCreateSession("scope-a", "proj", listener)
	require.NoError(t, err)
	s2, err := m.GetOrCreateSession("scope-a", "proj", listener)
	require.NoError(t, err)

	require.Same(t, s1, s2)
	require.Equal(t, []string{"proj"}, listener.sessionChanges)
}

func TestManager_GetOrCreateSession_IsolatesByScope(t *testing.T) {
	m := newTestManager(t)
	a, err := m.GetOrCreateSession("scope-a", "proj", nil)
	require.NoError(t, err)
	b, err := m.GetOrCreateSession("scope-b", "proj", nil)
	require.NoError(t, err)

	require.NotSame(t, a, b)
}

func TestSession_GetProject_CachesAfterFirstLoad(t *testing.T) {
	m := newTestManager(t)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	p1, err := s.GetProject()
	require.NoError(t, err)
	p2, err := s.GetProject()
	require.NoError(t, err)
	require.Same(t, p1, p2)
}

func TestSession_UpdateConfig_NotifiesConfigListener(t *testing.T) {
	m := newTestManager(t)
	listener := &fakeListener{}
	s, err := m.GetOrCreateSession("scope", "proj", listener)
	require.NoError(t, err)

	err = s.UpdateConfig(func(p *Project) (*Project, error) {
		return p.WithCategory(Category{Name: "docs", Patterns: []string{"*.md"}})
	})
	require.NoError(t, err)

	require.Equal(t, []string{"proj"}, listener.configChanges)

	p, err := s.GetProject()
	require.NoError(t, err)
	require.Contains(t, p.Categories, "docs")
}

func TestSession_InvalidateCache_ForcesReload(t *testing.T) {
	m := newTestManager(t)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	p1, err := s.GetProject()
	require.NoError(t, err)
	s.InvalidateCache()
	p2, err := s.GetProject()
	require.NoError(t, err)

	require.NotSame(t, p1, p2)
	require.Equal(t, p1.Name, p2.Name)
}

func TestAddListener_NoOpWhenAlreadyRegistered(t *testing.T) {
	m := newTestManager(t)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	listener := &fakeListener{}
	s.AddListener(listener)
	s.AddListener(listener)

	s.notifySessionChanged()
	require.Len(t, listener.sessionChanges, 1, "duplicate AddListener must not duplicate notifications")
}
