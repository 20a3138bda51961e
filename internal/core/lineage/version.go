// Package lineage contains the pure business logic for schema version lineages:
// version ordering, validity windows, and the insert plan for a new version.
// Guards are pure functions that evaluate preconditions without side effects.
package lineage

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a "major.minor" schema version.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses a version string (e.g., "1.2") into major and minor components.
// Returns an error if the format is invalid or contains non-numeric components.
func ParseVersion(version string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version format %q: expected major.minor", version)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version: %w", err)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version: %w", err)
	}

	if major < 0 || minor < 0 {
		return Version{}, fmt.Errorf("version components must be non-negative")
	}

	return Version{Major: major, Minor: minor}, nil
}

// Compare returns -1, 0 or 1 ordering v against o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// After reports whether v is strictly newer than o.
func (v Version) After(o Version) bool { return v.Compare(o) > 0 }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
