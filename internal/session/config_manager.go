package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ConfigManager owns on-disk persistence of per-project Project configs,
// one JSON file per project under configDir. Saves are atomic (temp file
// then rename), mirroring the teacher's sessions.Manager.Save. Reads of
// the whole directory (GetAllProjectConfigs) take a point-in-time
// snapshot under the same mutex used for writes, satisfying the "atomic
// with respect to itself" requirement for concurrent callers.
type ConfigManager struct {
	mu        sync.Mutex
	configDir string
	docroot   string
}

// NewConfigManager builds a ConfigManager rooted at configDir, creating it
// if necessary.
func NewConfigManager(configDir, docroot string) (*ConfigManager, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create config dir: %w", err)
	}
	return &ConfigManager{configDir: configDir, docroot: docroot}, nil
}

// GetDocroot returns the configured document root for the project store.
func (cm *ConfigManager) GetDocroot() string {
	return cm.docroot
}

func (cm *ConfigManager) pathFor(name string) string {
	return filepath.Join(cm.configDir, sanitizeProjectFilename(name)+".json")
}

func sanitizeProjectFilename(name string) string {
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}

// GetOrCreateProjectConfig loads the Project for name, creating an empty
// one on first access.
func (cm *ConfigManager) GetOrCreateProjectConfig(name string) (*Project, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	p, err := cm.readLocked(name)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	fresh, err := NewProject(name)
	if err != nil {
		return nil, err
	}
	if err := cm.writeLocked(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// SaveProjectConfig persists project atomically, overwriting any prior
// version.
func (cm *ConfigManager) SaveProjectConfig(project *Project) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.writeLocked(project)
}

// GetAllProjectConfigs returns every persisted project, read under a
// single lock acquisition for a consistent point-in-time snapshot.
func (cm *ConfigManager) GetAllProjectConfigs() (map[string]*Project, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	entries, err := os.ReadDir(cm.configDir)
	if err != nil {
		return nil, fmt.Errorf("config: list project dir: %w", err)
	}

	out := make(map[string]*Project)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(cm.configDir, entry.Name()))
		if err != nil {
			continue
		}
		var p Project
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		out[p.Name] = &p
	}
	return out, nil
}

// ListProjects returns just the project names, unsorted.
func (cm *ConfigManager) ListProjects() ([]string, error) {
	all, err := cm.GetAllProjectConfigs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	return names, nil
}

func (cm *ConfigManager) readLocked(name string) (*Project, error) {
	data, err := os.ReadFile(cm.pathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read project %q: %w", name, err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse project %q: %w", name, err)
	}
	return &p, nil
}

// writeLocked performs the temp-file-then-rename atomic write. Caller
// must hold cm.mu.
func (cm *ConfigManager) writeLocked(project *Project) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal project %q: %w", project.Name, err)
	}

	tmp, err := os.CreateTemp(cm.configDir, "project-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, cm.pathFor(project.Name)); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	cleanup = false
	return nil
}
