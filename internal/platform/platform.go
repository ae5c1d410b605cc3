package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnknownPlatform is returned when no OS descriptor identifies the host.
var ErrUnknownPlatform = errors.New("unknown platform")

const (
	FamilyDebian string = "debian"
	FamilyUbuntu string = "ubuntu"
	FamilyRedHat string = "redhat"
	FamilyCentOS string = "centos"
	FamilyFedora string = "fedora"
	FamilyMacOSX string = "macosx"
)

// Packaging families group distributions that share a package format.
const (
	PackagingDebian string = "debian"
	PackagingRHEL   string = "rhel"
	PackagingOther  string = "other"
)

// Platform identifies the host as family/version. It is detected once and
// never modified afterwards.
type Platform struct {
	Family  string `yaml:"family"`            // e.g., "ubuntu"
	Version string `yaml:"version,omitempty"` // e.g., "14.04"
	Arch    string `yaml:"arch,omitempty"`    // e.g., "amd64"
}

// New normalizes family and version and fills in the host architecture.
func New(family, version string) Platform {
	family = Normalize(family)
	return Platform{
		Family:  family,
		Version: normalizeVersion(family, Normalize(version)),
		Arch:    DetectArch(),
	}
}

// ParseID builds a Platform from its "family/version" form.
func ParseID(id string) (Platform, error) {
	family, version, ok := strings.Cut(strings.TrimSpace(id), "/")
	if !ok || strings.TrimSpace(family) == "" {
		return Platform{}, fmt.Errorf("%w: %q is not of the form family/version", ErrUnknownPlatform, id)
	}
	return New(family, version), nil
}

// ID returns the "family/version" key used by the decision tables.
func (p Platform) ID() string {
	return p.Family + "/" + p.Version
}

func (p Platform) String() string { return p.ID() }

// Major returns the first version segment.
func (p Platform) Major() string {
	major, _, _ := strings.Cut(p.Version, ".")
	return major
}

// Known reports whether the family is one the decision tables know about.
func (p Platform) Known() bool {
	switch p.Family {
	case FamilyDebian, FamilyUbuntu, FamilyRedHat, FamilyCentOS, FamilyFedora, FamilyMacOSX:
		return true
	}
	return false
}

// PackagingFamily classifies the platform by native package format.
func (p Platform) PackagingFamily() string {
	if _, ok := debianIDs[p.Family]; ok {
		return PackagingDebian
	}
	if _, ok := rhelIDs[p.Family]; ok {
		return PackagingRHEL
	}
	return PackagingOther
}

// Normalize lowercases and trims
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

var debianIDs = set("debian", "ubuntu", "linuxmint", "raspbian", "pop", "neon", "kali", "zorin", "elementary")
var rhelIDs = set("redhat", "rocky", "almalinux", "centos", "fedora", "ol")

// generate a map from strings
func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// normalizeVersion keeps only the major version for families whose minor
// releases share packages, and major.minor for Mac OS X.
func normalizeVersion(family, version string) string {
	switch family {
	case FamilyRedHat, FamilyCentOS, FamilyDebian:
		return firstSegments(version, 1)
	case FamilyMacOSX:
		return firstSegments(version, 2)
	default:
		return version
	}
}

func firstSegments(version string, n int) string {
	parts := strings.SplitN(version, ".", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, ".")
}

// DetectArch returns the Go architecture name of the host, e.g. "amd64".
func DetectArch() string {
	return runtime.GOARCH
}
