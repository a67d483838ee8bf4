package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFlagName(t *testing.T) {
	require.True(t, ValidateFlagName("workflow"))
	require.True(t, ValidateFlagName("content-style"))
	require.False(t, ValidateFlagName("has.dot"))
}

func TestValidateFlagValue(t *testing.T) {
	require.True(t, ValidateFlagValue(true))
	require.True(t, ValidateFlagValue("str"))
	require.True(t, ValidateFlagValue([]string{"a"}))
	require.True(t, ValidateFlagValue(map[string]string{"a": "b"}))
	require.False(t, ValidateFlagValue(42))
}

func TestGlobalFlags_SetGetRemove(t *testing.T) {
	dir := t.TempDir()
	flags := GlobalFlags(dir)

	require.NoError(t, flags.Set("workflow", true))
	v, ok, err := flags.Get("workflow")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, true, v)

	require.NoError(t, flags.Remove("workflow"))
	_, ok, err = flags.Get("workflow")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGlobalFlags_RejectsInvalidNameOrValue(t *testing.T) {
	flags := GlobalFlags(t.TempDir())
	require.Error(t, flags.Set("bad.name", true))
	require.Error(t, flags.Set("ok", 42))
}

func TestResolvedFlag_ProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewConfigManager(dir, "/docroot")
	require.NoError(t, err)
	m := NewManager(cm)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	require.NoError(t, GlobalFlags(dir).Set("workflow", false))
	require.NoError(t, s.ProjectFlags().Set("workflow", true))

	v, ok, err := ResolvedFlag(s, dir, "workflow")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, true, v)
}

func TestResolvedFlag_FallsBackToGlobal(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewConfigManager(dir, "/docroot")
	require.NoError(t, err)
	m := NewManager(cm)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	require.NoError(t, GlobalFlags(dir).Set("workflow", true))

	v, ok, err := ResolvedFlag(s, dir, "workflow")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, true, v)
}

func TestResolvedFlag_NeitherSet(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewConfigManager(dir, "/docroot")
	require.NoError(t, err)
	m := NewManager(cm)
	s, err := m.GetOrCreateSession("scope", "proj", nil)
	require.NoError(t, err)

	_, ok, err := ResolvedFlag(s, dir, "unset")
	require.NoError(t, err)
	require.False(t, ok)
}
