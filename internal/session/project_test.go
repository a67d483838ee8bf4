package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProject_ValidatesName(t *testing.T) {
	_, err := NewProject("")
	require.Error(t, err)

	_, err = NewProject("has a space")
	require.Error(t, err)

	p, err := NewProject("valid-name_1")
	require.NoError(t, err)
	require.Equal(t, "valid-name_1", p.Name)
	require.NotEmpty(t, p.Key)
}

func TestWithCategory_RejectsReservedUnderscore(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithCategory(Category{Name: "_internal", Patterns: []string{"*.md"}})
	require.Error(t, err)
}

func TestWithCategory_RejectsOverlongName(t *testing.T) {
	p, _ := NewProject("proj")
	long := ""
	for i := 0; i < 31; i++ {
		long += "a"
	}
	_, err := p.WithCategory(Category{Name: long})
	require.Error(t, err)
}

func TestWithCategory_RejectsTraversalPattern(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithCategory(Category{Name: "docs", Patterns: []string{"../etc/passwd"}})
	require.Error(t, err)
}

func TestWithCategory_RejectsAbsolutePattern(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithCategory(Category{Name: "docs", Patterns: []string{"/etc/passwd"}})
	require.Error(t, err)
}

func TestWithCategory_AddsAndPreservesOrder(t *testing.T) {
	p, _ := NewProject("proj")
	p, err := p.WithCategory(Category{Name: "b", Patterns: []string{"*.md"}})
	require.NoError(t, err)
	p, err = p.WithCategory(Category{Name: "a", Patterns: []string{"*.go"}})
	require.NoError(t, err)

	require.Equal(t, []string{"b", "a"}, p.CategoryOrder)
	require.Len(t, p.Categories, 2)
}

func TestWithCategory_IsImmutable(t *testing.T) {
	original, _ := NewProject("proj")
	updated, err := original.WithCategory(Category{Name: "docs", Patterns: []string{"*.md"}})
	require.NoError(t, err)

	require.Empty(t, original.Categories, "original Project must not be mutated")
	require.Len(t, updated.Categories, 1)
}

func TestWithCollection_RequiresExistingCategories(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithCollection(Collection{Name: "all", Categories: []string{"missing"}})
	require.Error(t, err)
}

func TestWithCollection_SucceedsWhenCategoriesExist(t *testing.T) {
	p, _ := NewProject("proj")
	p, err := p.WithCategory(Category{Name: "docs", Patterns: []string{"*.md"}})
	require.NoError(t, err)

	p, err = p.WithCollection(Collection{Name: "everything", Categories: []string{"docs"}})
	require.NoError(t, err)
	require.Contains(t, p.Collections, "everything")
}

func TestWithCategory_RejectsDescriptionWithQuotes(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithCategory(Category{Name: "docs", Description: `has "quotes"`})
	require.Error(t, err)
}

func TestWithoutCategory_RemovesFromOrderAndMap(t *testing.T) {
	p, _ := NewProject("proj")
	p, _ = p.WithCategory(Category{Name: "docs", Patterns: []string{"*.md"}})
	p = p.WithoutCategory("docs")

	require.Empty(t, p.Categories)
	require.Empty(t, p.CategoryOrder)
}

func TestWithFlag_RejectsInvalidName(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithFlag("bad.name", true)
	require.Error(t, err)
}

func TestWithFlag_RejectsUnsupportedValueType(t *testing.T) {
	p, _ := NewProject("proj")
	_, err := p.WithFlag("flag", 42)
	require.Error(t, err)
}
