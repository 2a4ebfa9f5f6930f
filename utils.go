package imgapi

import (
	"strings"
)

// IsValidPath validates that a caller-supplied storage key is acceptable.
// It checks that the key:
//   - is not empty
//   - does not start with "/" or "." (absolute paths and hidden entries)
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain control characters (< 0x20), including NUL, LF and TAB
//
// Returns true if the key is valid, false otherwise.
func IsValidPath(p string) bool {
	if p == "" {
		return false
	}

	if p[0] == '/' || p[0] == '.' {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	for _, r := range p {
		if r < 0x20 {
			return false
		}
	}

	return true
}
