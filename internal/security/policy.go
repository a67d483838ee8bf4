// Package security implements the read/write path validation policy for
// the Agent-FS Bridge: which paths the agent may be asked to read, and
// which paths a write-capable tool may target.
package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Error is returned when a path violates the read or write policy.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Path)
}

// Policy is a ReadWriteSecurityPolicy: two disjoint permission sets (write-
// allowed relative directories, additional absolute read paths) plus an
// optional project root for resolving relatives. Ported from
// filesystem/read_write_security.py.
type Policy struct {
	writeAllowedPaths   []string // each stored with a trailing separator
	additionalReadPaths []string
	projectRoot         string

	violations atomic.Int64
}

// New builds a Policy. writeAllowedPaths are relative directories (a
// trailing separator is added if missing); additionalReadPaths are
// absolute paths outside projectRoot that may also be read.
func New(writeAllowedPaths, additionalReadPaths []string, projectRoot string) *Policy {
	p := &Policy{
		additionalReadPaths: additionalReadPaths,
		projectRoot:         projectRoot,
	}
	for _, wp := range writeAllowedPaths {
		p.writeAllowedPaths = append(p.writeAllowedPaths, strings.TrimRight(wp, "/")+"/")
	}
	return p
}

// SetProjectRoot injects the project root once discovered, mirroring the
// Python policy's late-binding set_project_root.
func (p *Policy) SetProjectRoot(root string) {
	p.projectRoot = root
}

// ViolationCount returns the number of security violations observed.
func (p *Policy) ViolationCount() int64 {
	return p.violations.Load()
}

func (p *Policy) violate(kind, path, msg string) error {
	n := p.violations.Add(1)
	slog.Warn("security.violation", "kind", kind, "count", n, "path", path, "message", msg)
	return &Error{Path: path, Message: msg}
}

// ValidateReadPath validates path for a read operation, returning the
// normalized path or an error.
func (p *Policy) ValidateReadPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		posixPath := filepath.ToSlash(filepath.Clean(path))
		for _, allowed := range p.additionalReadPaths {
			allowedTrimmed := strings.TrimRight(filepath.ToSlash(allowed), "/")
			if posixPath == allowedTrimmed || strings.HasPrefix(posixPath, allowedTrimmed+"/") {
				if isSystemDirectory(path) {
					return "", p.violate("read", path, "system directory access denied")
				}
				return filepath.Clean(path), nil
			}
		}

		if p.projectRoot != "" {
			rel, err := filepath.Rel(p.projectRoot, path)
			if err == nil && !strings.HasPrefix(rel, "..") {
				return p.validateRelativeRead(rel, path)
			}
		}

		return "", p.violate("read", path, "absolute path not in additional_read_paths")
	}

	return p.validateRelativeRead(path, path)
}

func (p *Policy) validateRelativeRead(normalized, original string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(normalized))
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", p.violate("read", original, "path traversal detected")
		}
	}
	return clean, nil
}

// ValidateWritePath validates path for a write operation, returning the
// normalized path or an error.
func (p *Policy) ValidateWritePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if isSafeTempPath(path) {
			slog.Debug("security.write_allowed_temp", "path", path)
			return filepath.Clean(path), nil
		}
		return "", p.violate("write", path, "write to absolute path not allowed")
	}

	normalized := filepath.ToSlash(filepath.Clean(path))
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", p.violate("write", path, "path traversal detected")
		}
	}

	if isSafeTempPath(normalized) {
		slog.Debug("security.write_allowed_temp", "path", path)
		return normalized, nil
	}

	for _, allowed := range p.writeAllowedPaths {
		allowedPrefix := strings.TrimRight(allowed, "/") + "/"
		if strings.HasPrefix(normalized, allowedPrefix) {
			slog.Debug("security.write_allowed", "path", path, "normalized", normalized)
			return normalized, nil
		}
	}

	return "", p.violate("write", path, fmt.Sprintf("path outside allowed write directories: %v", p.writeAllowedPaths))
}
