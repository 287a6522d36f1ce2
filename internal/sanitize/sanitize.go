package sanitize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilename is returned when a raw filename cannot be made
// filesystem-safe.
var ErrInvalidFilename = errors.New("invalid filename")

// Sanitize strips directory components and dangerous characters from a
// proposed filename and returns a safe basename. It rejects anything
// containing a parent-directory token rather than repairing it.
// Sanitize is idempotent: re-sanitizing a successful result is a no-op.
func Sanitize(raw string) (string, error) {
	// reject rather than repair: a parent-directory token anywhere in the
	// raw input is a traversal attempt, even when basename extraction
	// would drop it
	if strings.Contains(raw, "..") {
		return "", fmt.Errorf("%w: path traversal in %q", ErrInvalidFilename, raw)
	}

	name := raw
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(replaceForbidden, name)
	name = strings.Trim(name, ". ")

	if name == "" {
		return "", fmt.Errorf("%w: %q is empty after sanitizing", ErrInvalidFilename, raw)
	}
	return name, nil
}

// replaceForbidden maps path separators, shell-special characters and all
// control characters (including DEL and the C1 range) to underscore.
func replaceForbidden(r rune) rune {
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		return '_'
	}
	if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
		return '_'
	}
	return r
}
