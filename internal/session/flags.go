package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var flagNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateFlagName reports whether name meets the flag naming invariant
// (alphanumeric, hyphen, underscore — no dots).
func ValidateFlagName(name string) bool {
	return flagNameRegex.MatchString(name)
}

// ValidateFlagValue reports whether value is one of the supported flag
// value shapes: bool, string, []string, or map[string]string.
func ValidateFlagValue(value any) bool {
	switch value.(type) {
	case bool, string, []string, map[string]string:
		return true
	}
	return false
}

// GlobalFlagStore persists process-wide feature flags to a single JSON
// file, atomically (temp file then rename), independent of any project.
type GlobalFlagStore struct {
	path string
}

// NewGlobalFlagStore builds a store backed by configDir/flags.json.
func NewGlobalFlagStore(configDir string) *GlobalFlagStore {
	return &GlobalFlagStore{path: filepath.Join(configDir, "flags.json")}
}

func (g *GlobalFlagStore) load() (map[string]any, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var flags map[string]any
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

func (g *GlobalFlagStore) save(flags map[string]any) error {
	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(g.path)
	tmp, err := os.CreateTemp(dir, "flags-*.tmp")
	if err != nil {
		return err
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
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, g.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// FlagProxy exposes get/set/remove/list over a flag map, shared shape for
// both the global store and a project's flag map.
type FlagProxy interface {
	Get(name string) (any, bool, error)
	Set(name string, value any) error
	Remove(name string) error
	List() (map[string]any, error)
}

type globalFlagProxy struct {
	store *GlobalFlagStore
}

// GlobalFlags returns a FlagProxy over the process-wide flag store.
func GlobalFlags(configDir string) FlagProxy {
	return &globalFlagProxy{store: NewGlobalFlagStore(configDir)}
}

func (p *globalFlagProxy) Get(name string) (any, bool, error) {
	flags, err := p.store.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := flags[name]
	return v, ok, nil
}

func (p *globalFlagProxy) Set(name string, value any) error {
	if !ValidateFlagName(name) {
		return fmt.Errorf("invalid flag name %q", name)
	}
	if !ValidateFlagValue(value) {
		return fmt.Errorf("invalid flag value for %q", name)
	}
	flags, err := p.store.load()
	if err != nil {
		return err
	}
	flags[name] = value
	return p.store.save(flags)
}

func (p *globalFlagProxy) Remove(name string) error {
	flags, err := p.store.load()
	if err != nil {
		return err
	}
	delete(flags, name)
	return p.store.save(flags)
}

func (p *globalFlagProxy) List() (map[string]any, error) {
	return p.store.load()
}

// projectFlagProxy reads/writes flags on the session's current Project.
type projectFlagProxy struct {
	session *Session
}

func (p *projectFlagProxy) Get(name string) (any, bool, error) {
	project, err := p.session.GetProject()
	if err != nil {
		return nil, false, err
	}
	v, ok := project.Flags[name]
	return v, ok, nil
}

func (p *projectFlagProxy) Set(name string, value any) error {
	if !ValidateFlagName(name) {
		return fmt.Errorf("invalid flag name %q", name)
	}
	if !ValidateFlagValue(value) {
		return fmt.Errorf("invalid flag value for %q", name)
	}
	return p.session.UpdateConfig(func(proj *Project) (*Project, error) {
		return proj.WithFlag(name, value)
	})
}

func (p *projectFlagProxy) Remove(name string) error {
	return p.session.UpdateConfig(func(proj *Project) (*Project, error) {
		c := proj.Clone()
		delete(c.Flags, name)
		return c, nil
	})
}

func (p *projectFlagProxy) List() (map[string]any, error) {
	project, err := p.session.GetProject()
	if err != nil {
		return nil, err
	}
	return project.Flags, nil
}

// FeatureFlags returns a proxy over the global flag store.
func (s *Session) FeatureFlags(configDir string) FlagProxy {
	return GlobalFlags(configDir)
}

// ProjectFlags returns a proxy over this session's current Project flags.
func (s *Session) ProjectFlags() FlagProxy {
	return &projectFlagProxy{session: s}
}

// ResolvedFlag returns name's value using the resolution order: project
// override, then global, then (false, false, nil) if neither has it.
func ResolvedFlag(s *Session, configDir, name string) (any, bool, error) {
	if v, ok, err := s.ProjectFlags().Get(name); err != nil {
		return nil, false, err
	} else if ok {
		return v, true, nil
	}
	return s.FeatureFlags(configDir).Get(name)
}
