package broker

import (
	"fmt"
	"regexp"
)

// MaxNameLength is the maximum length for a session name (DNS-compatible)
const MaxNameLength = 63

// NamePattern is the regex pattern for valid session names.
// Session names end up in container and network names, so they follow DNS
// label rules: lowercase alphanumeric, hyphens allowed but not at start/end.
var NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks if a session name can name Docker resources.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("session name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid session name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}
