package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// nameRegex bounds category, collection, and project identifiers.
var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const (
	maxNameLen        = 30
	maxDescriptionLen = 500
)

// InvalidNameError reports a category/collection/project name or
// description that violates the naming invariants.
type InvalidNameError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Message)
}

func validateName(field, name string, allowLeadingUnderscore bool) error {
	if name == "" {
		return &InvalidNameError{Field: field, Value: name, Message: "must not be empty"}
	}
	if len(name) > maxNameLen {
		return &InvalidNameError{Field: field, Value: name, Message: fmt.Sprintf("must be at most %d characters", maxNameLen)}
	}
	if !nameRegex.MatchString(name) {
		return &InvalidNameError{Field: field, Value: name, Message: "must match ^[A-Za-z0-9_-]+$"}
	}
	if !allowLeadingUnderscore && strings.HasPrefix(name, "_") {
		return &InvalidNameError{Field: field, Value: name, Message: "must not begin with a reserved underscore"}
	}
	return nil
}

func validateDescription(field, desc string) error {
	if len(desc) > maxDescriptionLen {
		return &InvalidNameError{Field: field, Value: desc, Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLen)}
	}
	if strings.ContainsAny(desc, `"'`) {
		return &InvalidNameError{Field: field, Value: desc, Message: "must not contain embedded quotes"}
	}
	return nil
}

func validatePattern(pattern string) error {
	if strings.HasPrefix(pattern, "/") || strings.HasPrefix(pattern, `\`) {
		return &InvalidNameError{Field: "pattern", Value: pattern, Message: "must not be an absolute path"}
	}
	for _, seg := range strings.Split(strings.ReplaceAll(pattern, `\`, "/"), "/") {
		if seg == ".." {
			return &InvalidNameError{Field: "pattern", Value: pattern, Message: "must not contain .. segments"}
		}
	}
	return nil
}

// ValidateProjectName validates a project name per the Session creation
// invariant (no reserved-underscore exception here — unlike categories,
// project names may begin with an underscore).
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &InvalidNameError{Field: "project", Value: name, Message: "must not be empty"}
	}
	if !nameRegex.MatchString(name) {
		return &InvalidNameError{Field: "project", Value: name, Message: "must match ^[A-Za-z0-9_-]+$"}
	}
	return nil
}

// Category groups files under a set of glob patterns.
type Category struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Patterns    []string `json:"patterns"`
}

// Collection aggregates one or more Categories under a friendly name.
type Collection struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
}

// Project is the immutable, lazily-loaded configuration for one project.
// Any mutation produces a new Project value via With* methods; the caller
// persists it and swaps the session's cached pointer.
type Project struct {
	Name        string                `json:"name"`
	Key         string                `json:"key"`
	Categories  map[string]Category   `json:"categories"`
	Collections map[string]Collection `json:"collections"`
	Flags       map[string]any        `json:"flags,omitempty"`

	OpenSpecVersion   string `json:"openspec_version,omitempty"`
	OpenSpecValidated bool   `json:"openspec_validated,omitempty"`

	// CategoryOrder and CollectionOrder preserve insertion order for
	// templates that render "categories" as an ordered list — Go maps do
	// not preserve order, so callers should consult these alongside the
	// maps above rather than ranging over the maps directly.
	CategoryOrder   []string `json:"category_order,omitempty"`
	CollectionOrder []string `json:"collection_order,omitempty"`
}

// NewProject builds an empty Project for name, computing its content hash.
func NewProject(name string) (*Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}
	p := &Project{
		Name:        name,
		Categories:  map[string]Category{},
		Collections: map[string]Collection{},
		Flags:       map[string]any{},
	}
	p.Key = p.hash()
	return p, nil
}

// hash computes a stable content digest, used as Project.Key.
func (p *Project) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|%v", p.Name, p.CategoryOrder, p.CollectionOrder)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Clone returns a deep-enough copy of p suitable as the basis for an
// update: maps and order slices are copied so the updater may mutate the
// clone freely without affecting the cached original.
func (p *Project) Clone() *Project {
	c := *p
	c.Categories = make(map[string]Category, len(p.Categories))
	for k, v := range p.Categories {
		c.Categories[k] = v
	}
	c.Collections = make(map[string]Collection, len(p.Collections))
	for k, v := range p.Collections {
		c.Collections[k] = v
	}
	c.Flags = make(map[string]any, len(p.Flags))
	for k, v := range p.Flags {
		c.Flags[k] = v
	}
	c.CategoryOrder = append([]string(nil), p.CategoryOrder...)
	c.CollectionOrder = append([]string(nil), p.CollectionOrder...)
	return &c
}

// WithCategory returns a clone of p with category added or replaced,
// after validating its name, description, and patterns.
func (p *Project) WithCategory(cat Category) (*Project, error) {
	if err := validateName("category", cat.Name, false); err != nil {
		return nil, err
	}
	if err := validateDescription("category description", cat.Description); err != nil {
		return nil, err
	}
	for _, pat := range cat.Patterns {
		if err := validatePattern(pat); err != nil {
			return nil, err
		}
	}

	c := p.Clone()
	if _, exists := c.Categories[cat.Name]; !exists {
		c.CategoryOrder = append(c.CategoryOrder, cat.Name)
	}
	c.Categories[cat.Name] = cat
	c.Key = c.hash()
	return c, nil
}

// WithCollection returns a clone of p with collection added or replaced.
// Every referenced category must already exist on p — this is enforced on
// update, not on load, so legacy configs with dangling references remain
// loadable.
func (p *Project) WithCollection(col Collection) (*Project, error) {
	if err := validateName("collection", col.Name, true); err != nil {
		return nil, err
	}
	if err := validateDescription("collection description", col.Description); err != nil {
		return nil, err
	}
	for _, catName := range col.Categories {
		if _, ok := p.Categories[catName]; !ok {
			return nil, &InvalidNameError{Field: "collection.categories", Value: catName, Message: "references a category that does not exist"}
		}
	}

	c := p.Clone()
	if _, exists := c.Collections[col.Name]; !exists {
		c.CollectionOrder = append(c.CollectionOrder, col.Name)
	}
	c.Collections[col.Name] = col
	c.Key = c.hash()
	return c, nil
}

// WithoutCategory returns a clone of p with category removed.
func (p *Project) WithoutCategory(name string) *Project {
	c := p.Clone()
	delete(c.Categories, name)
	c.CategoryOrder = removeString(c.CategoryOrder, name)
	c.Key = c.hash()
	return c
}

// WithoutCollection returns a clone of p with collection removed.
func (p *Project) WithoutCollection(name string) *Project {
	c := p.Clone()
	delete(c.Collections, name)
	c.CollectionOrder = removeString(c.CollectionOrder, name)
	c.Key = c.hash()
	return c
}

// WithFlag returns a clone of p with a project-scoped flag set.
func (p *Project) WithFlag(name string, value any) (*Project, error) {
	if !nameRegex.MatchString(name) {
		return nil, &InvalidNameError{Field: "flag", Value: name, Message: "must match ^[A-Za-z0-9_-]+$"}
	}
	if !isValidFlagValue(value) {
		return nil, &InvalidNameError{Field: "flag", Value: name, Message: "has an unsupported value type"}
	}
	c := p.Clone()
	c.Flags[name] = value
	return c, nil
}

func isValidFlagValue(v any) bool {
	switch v.(type) {
	case bool, string, []string:
		return true
	}
	if m, ok := v.(map[string]string); ok {
		_ = m
		return true
	}
	return false
}

func removeString(list []string, target string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
