package toolchain

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
)

// ToolRequirement is a binary the pipeline needs on PATH. Any of
// Alternatives satisfies it as well.
type ToolRequirement struct {
	Name         string
	Alternatives []string
	Optional     bool
	Purpose      string
}

// LookPathFunc resolves a binary name like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Requirements lists the tools a build needs. An explicit compiler replaces
// the default search for that compiler.
func Requirements(opts Options) []ToolRequirement {
	reqs := []ToolRequirement{
		{Name: "make", Purpose: "build driver"},
		{Name: "autoreconf", Optional: true, Purpose: "bootstrapping from a git checkout"},
		{Name: "fpm", Purpose: "package builder"},
		{Name: "javac", Optional: true, Purpose: "Java bindings"},
	}
	if opts.CC != "" {
		reqs = append(reqs, ToolRequirement{Name: opts.CC, Purpose: "C compiler"})
	} else {
		reqs = append(reqs, ToolRequirement{Name: "gcc", Alternatives: []string{"clang", "cc"}, Purpose: "C compiler"})
	}
	if opts.CXX != "" {
		reqs = append(reqs, ToolRequirement{Name: opts.CXX, Purpose: "C++ compiler"})
	} else {
		reqs = append(reqs, ToolRequirement{Name: "g++", Alternatives: []string{"clang++", "c++"}, Purpose: "C++ compiler"})
	}
	if opts.Patch != "" {
		reqs = append(reqs, ToolRequirement{Name: "patch", Purpose: "applying --patch"})
	}
	return reqs
}

// CheckRequiredTools reports every missing required tool in one error.
func CheckRequiredTools(lookPath LookPathFunc, requirements []ToolRequirement) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var missing []string
	for _, req := range requirements {
		if req.Optional || available(lookPath, req) {
			continue
		}
		if req.Purpose != "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
		} else {
			missing = append(missing, req.Name)
		}
	}
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%w: %s not found in PATH", planner.ErrMissingRequiredDependency, missing[0])
	default:
		return fmt.Errorf("%w: missing required tools: %s", planner.ErrMissingRequiredDependency, strings.Join(missing, ", "))
	}
}

func available(lookPath LookPathFunc, req ToolRequirement) bool {
	for _, name := range append([]string{req.Name}, req.Alternatives...) {
		if _, err := lookPath(name); err == nil {
			return true
		}
	}
	return false
}
