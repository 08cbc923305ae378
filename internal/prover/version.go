package prover

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is a parsed Coq version. Patch-level differences never change
// backend selection, so only major and minor are kept.
type Version struct {
	Major int
	Minor int
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// SupportsLSP reports whether this Coq ships coq-lsp support (8.16+).
// Older versions speak only the sertop symbolic-expression protocol.
func (v Version) SupportsLSP() bool {
	return v.Major > 8 || (v.Major == 8 && v.Minor >= 16)
}

// Supported reports whether this module can drive the version at all.
// Versions before 8.10 predate both supported transports.
func (v Version) Supported() bool {
	return v.Major > 8 || (v.Major == 8 && v.Minor >= 10)
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseVersion extracts the Coq version from a version string. It accepts
// either a bare "8.16.1" or the full `coqc --version` banner.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("no version number in %q", s)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("parse major version: %w", err)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("parse minor version: %w", err)
	}
	return Version{Major: major, Minor: minor}, nil
}
