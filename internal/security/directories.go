package security

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// systemBlacklist holds absolute path prefixes that are never readable,
// even when explicitly listed in additional read paths — the blacklist
// dominates. Ported from filesystem/system_directories.py.
var systemBlacklistPosix = []string{
	"/etc", "/usr/bin", "/bin", "/sbin", "/boot", "/dev", "/proc", "/sys", "/root",
}

var systemBlacklistWindows = []string{
	`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`,
}

// isSystemDirectory reports whether path falls under a blacklisted system
// directory, including the user .ssh convention on POSIX systems.
func isSystemDirectory(path string) bool {
	clean := filepath.Clean(path)
	list := systemBlacklistPosix
	if runtime.GOOS == "windows" {
		list = systemBlacklistWindows
	}
	for _, prefix := range list {
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return isSSHDirectory(clean)
}

// isSSHDirectory matches /home/*/.ssh and /Users/*/.ssh.
func isSSHDirectory(clean string) bool {
	for _, root := range []string{"/home/", "/Users/"} {
		if strings.HasPrefix(clean, root) {
			rest := strings.TrimPrefix(clean, root)
			parts := strings.SplitN(rest, string(filepath.Separator), 2)
			if len(parts) == 2 && (parts[1] == ".ssh" || strings.HasPrefix(parts[1], ".ssh"+string(filepath.Separator))) {
				return true
			}
		}
	}
	return false
}

// isSafeTempPath reports whether path is within a recognised temp
// directory: it contains a "tmp"/"temp" path segment, is prefixed by
// TMPDIR/TEMP/TMP, or lives inside a ".cache" directory. Ported from
// filesystem/temp_directories.py.
func isSafeTempPath(path string) bool {
	clean := filepath.Clean(path)
	lower := strings.ToLower(clean)

	for _, seg := range strings.Split(lower, string(filepath.Separator)) {
		if seg == "tmp" || seg == "temp" || seg == ".cache" {
			return true
		}
	}

	for _, envVar := range []string{"TMPDIR", "TEMP", "TMP"} {
		if v := os.Getenv(envVar); v != "" {
			if strings.HasPrefix(clean, filepath.Clean(v)) {
				return true
			}
		}
	}
	return false
}
