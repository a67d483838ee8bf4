package guide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guidemcp/gateway/internal/session"
)

func newTestProjectWithFiles(t *testing.T) (*session.Project, string) {
	t.Helper()
	docroot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(docroot, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docroot, "docs", "api.md"), []byte("api"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docroot, "docs", "guide.md"), []byte("guide"), 0o644))

	p, err := session.NewProject("demo")
	require.NoError(t, err)
	p, err = p.WithCategory(session.Category{Name: "docs", Patterns: []string{"docs/*.md"}})
	require.NoError(t, err)
	p, err = p.WithCollection(session.Collection{Name: "everything", Categories: []string{"docs"}})
	require.NoError(t, err)
	return p, docroot
}

func TestGetContent_ResolvesCategory(t *testing.T) {
	p, docroot := newTestProjectWithFiles(t)
	files, err := GetContent(p, docroot, "docs")
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestGetContent_ResolvesCollection(t *testing.T) {
	p, docroot := newTestProjectWithFiles(t)
	files, err := GetContent(p, docroot, "everything")
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestGetContent_DedupesAcrossNames(t *testing.T) {
	p, docroot := newTestProjectWithFiles(t)
	files, err := GetContent(p, docroot, "docs,everything")
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestGetContent_UnknownNameErrors(t *testing.T) {
	p, docroot := newTestProjectWithFiles(t)
	_, err := GetContent(p, docroot, "nonexistent")
	require.Error(t, err)
}

func TestGetContent_CollectionCycleTerminates(t *testing.T) {
	p, docroot := newTestProjectWithFiles(t)
	p, err := p.WithCollection(session.Collection{Name: "a", Categories: []string{"docs"}})
	require.NoError(t, err)

	// Force a cycle by constructing collections that reference each other
	// directly, bypassing WithCollection's category-existence validation.
	p.Collections["a"] = session.Collection{Name: "a", Categories: []string{"b"}}
	p.Collections["b"] = session.Collection{Name: "b", Categories: []string{"a", "docs"}}

	files, err := GetContent(p, docroot, "a")
	require.NoError(t, err)
	require.Len(t, files, 2)
}
