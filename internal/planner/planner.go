// Package planner turns a requested version, a source reference and the
// detected platform into a BuildPlan: configure flags, runtime
// dependencies, init integration and packaging backend.
package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/vigiglobe/mesos-deb-packaging/internal/locator"
	"github.com/vigiglobe/mesos-deb-packaging/internal/native"
	"github.com/vigiglobe/mesos-deb-packaging/internal/platform"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
	"github.com/vigiglobe/mesos-deb-packaging/internal/version"
)

var (
	ErrUnsupportedPlatform       = errors.New("unsupported platform")
	ErrMissingRequiredDependency = errors.New("missing required dependency")
)

// backendTable maps packaging families to a package format. Families not
// listed are unsupported.
var backendTable = map[string]Backend{
	platform.PackagingDebian: BackendDeb,
	platform.PackagingRHEL:   BackendRpm,
}

// initTable maps "family/major" to the init integration; "family/*"
// matches any version of the family.
var initTable = map[string]InitIntegration{
	"debian/*": InitSystemV,
	"ubuntu/*": InitUpstart,
	"redhat/6": InitUpstart,
	"centos/6": InitUpstart,
	"redhat/7": InitSystemd,
	"centos/7": InitSystemd,
	"fedora/*": InitSystemd,
}

// Overrides are the user's explicit choices.
type Overrides struct {
	StartWith           string
	ExtraConfigureFlags []string
}

func (o Overrides) runit() bool { return o.StartWith == StartWithRunit }

type Request struct {
	Version   string
	Source    locator.SourceRef
	Platform  platform.Platform
	Overrides Overrides
}

// BuildPlan drives every command the orchestrator runs. It is read-only
// once returned.
type BuildPlan struct {
	Version             string            `yaml:"version"`
	Source              locator.SourceRef `yaml:"source"`
	Platform            platform.Platform `yaml:"platform"`
	ConfigureFlags      []string          `yaml:"configureFlags"`
	RuntimeDependencies []string          `yaml:"runtimeDependencies"`
	HTTPBackend         string            `yaml:"httpBackend"`
	HTTPBackendVersion  string            `yaml:"httpBackendVersion,omitempty"`
	InitIntegration     InitIntegration   `yaml:"initIntegration"`
	PackagingBackend    Backend           `yaml:"packagingBackend"`
	ConfigEntries       []ConfigEntry     `yaml:"configEntries"`
}

// HasConfig reports whether the plan asks for the given default config.
func (p BuildPlan) HasConfig(e ConfigEntry) bool {
	return slices.Contains(p.ConfigEntries, e)
}

type Planner struct {
	Rules  Rules
	Runner utils.Runner
}

func New(rules Rules, r utils.Runner) *Planner {
	return &Planner{Rules: rules.Merge(DefaultRules()), Runner: r}
}

// Preflight runs the platform decisions only, so an unsupported host fails
// before any source is fetched.
func (pl *Planner) Preflight(p platform.Platform, o Overrides) (Backend, InitIntegration, error) {
	backend := BackendFor(p)
	if backend == BackendUnsupported {
		return backend, "", unsupported(p, "no packaging backend")
	}
	initSys, err := InitFor(p, o)
	if err != nil {
		return backend, "", err
	}
	return backend, initSys, nil
}

func (pl *Planner) Plan(ctx context.Context, req Request) (BuildPlan, error) {
	backend, initSys, err := pl.Preflight(req.Platform, req.Overrides)
	if err != nil {
		return BuildPlan{}, err
	}
	flags, err := pl.ConfigureFlags(req.Version, req.Overrides)
	if err != nil {
		return BuildPlan{}, err
	}
	deps, httpBackend, err := pl.RuntimeDependencies(ctx, req.Version, req.Platform, backend, req.Overrides)
	if err != nil {
		return BuildPlan{}, err
	}
	httpVersion, err := pl.installedVersion(ctx, req.Platform, httpBackend)
	if err != nil {
		return BuildPlan{}, err
	}
	entries := []ConfigEntry{ConfigDefaults}
	if !req.Overrides.runit() {
		entries = append(entries, ConfigLogRotate)
	}
	return BuildPlan{
		Version:             req.Version,
		Source:              req.Source,
		Platform:            req.Platform,
		ConfigureFlags:      flags,
		RuntimeDependencies: deps,
		HTTPBackend:         httpBackend,
		HTTPBackendVersion:  httpVersion,
		InitIntegration:     initSys,
		PackagingBackend:    backend,
		ConfigEntries:       entries,
	}, nil
}

// BackendFor is deb for the Debian family, rpm for the Red Hat family and
// unsupported for anything else.
func BackendFor(p platform.Platform) Backend {
	if b, ok := backendTable[p.PackagingFamily()]; ok {
		return b
	}
	return BackendUnsupported
}

// InitFor looks the platform up in the init table. Runit requested by the
// user applies to every platform.
func InitFor(p platform.Platform, o Overrides) (InitIntegration, error) {
	switch o.StartWith {
	case "", StartWithSystem:
	case StartWithRunit:
		return InitRunit, nil
	default:
		return "", fmt.Errorf("unknown --start-with %q (want %s or %s)", o.StartWith, StartWithSystem, StartWithRunit)
	}
	if initSys, ok := initTable[p.Family+"/"+p.Major()]; ok {
		return initSys, nil
	}
	if initSys, ok := initTable[p.Family+"/*"]; ok {
		return initSys, nil
	}
	return "", unsupported(p, "no init integration")
}

// unsupported names families outside the decision tables apart from known
// families whose version is not covered.
func unsupported(p platform.Platform, what string) error {
	if !p.Known() {
		return fmt.Errorf("%w: %s for unrecognized family %q (%s)", ErrUnsupportedPlatform, what, p.Family, p.ID())
	}
	return fmt.Errorf("%w: %s for %s", ErrUnsupportedPlatform, what, p.ID())
}

// ConfigureFlags returns the sorted, de-duplicated configure flags for v.
func (pl *Planner) ConfigureFlags(v string, o Overrides) ([]string, error) {
	var flags []string
	if v == pl.Rules.CompatTag {
		flags = append(flags, pl.Rules.CompatFlag)
	} else {
		optimize, err := version.GTE(version.Core(v), pl.Rules.OptimizeSince)
		if err != nil {
			return nil, fmt.Errorf("configure flags for %q: %w", v, err)
		}
		if optimize {
			flags = append(flags, pl.Rules.OptimizeFlag)
		}
	}
	flags = append(flags, o.ExtraConfigureFlags...)
	flags = utils.Dedupe(flags)
	sort.Strings(flags)
	return flags, nil
}

// RuntimeDependencies lists the package dependencies in declaration order
// and the curl development package found on the host.
func (pl *Planner) RuntimeDependencies(ctx context.Context, v string, p platform.Platform, b Backend, o Overrides) ([]string, string, error) {
	pkgs, ok := pl.Rules.Packages[b]
	if !ok {
		return nil, "", fmt.Errorf("%w: no package names for backend %s", ErrUnsupportedPlatform, b)
	}
	deps := []string{pkgs.JavaRuntime, pkgs.HTTPClient}

	withSVN, err := version.GT(version.Core(v), pl.Rules.SVNCutoff)
	if err != nil {
		return nil, "", fmt.Errorf("runtime dependencies for %q: %w", v, err)
	}
	if withSVN {
		deps = append(deps, pkgs.SVN)
	}

	httpBackend, err := pl.probeCurlBackend(ctx, p, pkgs.CurlBackends)
	if err != nil {
		return nil, "", err
	}
	deps = append(deps, httpBackend)

	if o.runit() {
		deps = append(deps, pkgs.Runit)
	}
	return utils.Dedupe(deps), httpBackend, nil
}

func (pl *Planner) probeCurlBackend(ctx context.Context, p platform.Platform, candidates []string) (string, error) {
	driver, err := native.GetDriverForPlatform(p, pl.Runner)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	pkg, found, err := native.FirstInstalled(ctx, driver, candidates)
	if err != nil {
		return "", fmt.Errorf("probing curl development packages with %s: %w", driver.Name(), err)
	}
	if !found {
		return "", fmt.Errorf("%w: none of %v is installed", ErrMissingRequiredDependency, candidates)
	}
	return pkg, nil
}

// installedVersion reports the version the package database has for pkg.
func (pl *Planner) installedVersion(ctx context.Context, p platform.Platform, pkg string) (string, error) {
	driver, err := native.GetDriverForPlatform(p, pl.Runner)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	v, err := driver.InstalledVersion(ctx, pkg)
	if err != nil {
		return "", fmt.Errorf("querying %s version with %s: %w", pkg, driver.Name(), err)
	}
	return v, nil
}
