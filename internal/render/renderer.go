// Package render renders the markdown instruction and response templates
// that the server sends to the agent, using Go's text/template against a
// flattened view of the template context chain. Grounded on
// render/renderer.py and render/cache.py, adapted from Mustache to
// text/template since output is always markdown, never escaped HTML.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// Renderer loads and caches parsed templates from a root directory,
// keyed by their path relative to that root (without extension).
type Renderer struct {
	root string

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// New builds a Renderer rooted at templateRoot (typically
// docroot/commands or an ambient "common" templates directory).
func New(templateRoot string) *Renderer {
	return &Renderer{root: templateRoot, cache: make(map[string]*template.Template)}
}

// candidateExtensions mirrors discovery/files.py's TEMPLATE_EXTENSIONS.
var candidateExtensions = []string{".md.tmpl", ".md", ".tmpl"}

func (r *Renderer) load(name string) (*template.Template, error) {
	r.mu.RLock()
	if t, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	var data []byte
	var readErr error
	for _, ext := range candidateExtensions {
		data, readErr = os.ReadFile(filepath.Join(r.root, name+ext))
		if readErr == nil {
			break
		}
	}
	if readErr != nil {
		return nil, fmt.Errorf("render: template %q not found under %s: %w", name, r.root, readErr)
	}

	t, err := template.New(name).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("render: parse template %q: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = t
	r.mu.Unlock()
	return t, nil
}

// Invalidate drops name from the parsed-template cache, forcing a reload
// on next render — used when the docroot's templates change underfoot in
// dev mode (paired with the optional fsnotify watcher).
func (r *Renderer) Invalidate(name string) {
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
}

// RenderCommon renders a named common template against ctx merged with
// extraContext (extraContext fields take precedence on key collision).
func (r *Renderer) RenderCommon(name string, ctx map[string]any, extraContext map[string]any) (string, error) {
	t, err := r.load(name)
	if err != nil {
		return "", err
	}

	merged := make(map[string]any, len(ctx)+len(extraContext))
	for k, v := range ctx {
		merged[k] = v
	}
	for k, v := range extraContext {
		merged[k] = v
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, merged); err != nil {
		return "", fmt.Errorf("render: execute template %q: %w", name, err)
	}
	return buf.String(), nil
}
