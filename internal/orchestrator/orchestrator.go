// Package orchestrator drives one build from source locator to native
// package: resolve, clean, checkout, patch, build, stage, package.
package orchestrator

// resolve (plan) -> execute (do) -> record (checksums, manifest)

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/vigiglobe/mesos-deb-packaging/internal/checkout"
	"github.com/vigiglobe/mesos-deb-packaging/internal/locator"
	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/pkgtool"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/platform"
	"github.com/vigiglobe/mesos-deb-packaging/internal/stage"
	"github.com/vigiglobe/mesos-deb-packaging/internal/toolchain"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
	"github.com/vigiglobe/mesos-deb-packaging/internal/version"
)

// Options are the merged command line and profile settings of one build.
type Options struct {
	Name string
	// Locator is "url[?selector]"; Ref overrides its selector.
	Locator   string
	Ref       string
	Version   string
	StartWith string
	Patch     string
	CC        string
	CXX       string
	// Platform pins "family/version" instead of probing the host.
	Platform       string
	Iteration      string
	WorkDir        string
	SourceDir      string
	OutDir         string
	ConfigureFlags []string
	Jobs           int
	Metadata       pkgtool.Metadata
	Rules          planner.Rules
}

func (o Options) workDir() string { return utils.WithDefault(o.WorkDir, ".") }

func (o Options) sourceDir() string {
	return utils.WithDefault(o.SourceDir, filepath.Join(o.workDir(), o.Name+"-repo"))
}

func (o Options) stageDir() string { return filepath.Join(o.workDir(), "toor") }

func (o Options) scriptDir() string { return filepath.Join(o.workDir(), "toor-scripts") }

func (o Options) buildDir() string { return filepath.Join(o.sourceDir(), "build") }

func (o Options) outDir() string {
	return utils.WithDefault(o.OutDir, filepath.Join(o.workDir(), "pkg"))
}

func (o Options) overrides() planner.Overrides {
	return planner.Overrides{StartWith: o.StartWith, ExtraConfigureFlags: o.ConfigureFlags}
}

// Detector identifies the host platform.
type Detector interface {
	Detect(ctx context.Context) (platform.Platform, error)
}

type Orchestrator struct {
	Fs       afero.Fs
	Runner   utils.Runner
	Detector Detector
	Checkout checkout.Checkouter
	Builder  *toolchain.Builder
	Stager   *stage.Stager
	Packager *pkgtool.Packager
	// LookPath defaults to exec.LookPath.
	LookPath toolchain.LookPathFunc
}

// New wires the production collaborators around fs and r.
func New(fs afero.Fs, r utils.Runner) *Orchestrator {
	probe := platform.NewProbe(r)
	probe.Fs = fs
	return &Orchestrator{
		Fs:       fs,
		Runner:   r,
		Detector: probe,
		Checkout: checkout.New(),
		Builder:  toolchain.New(r, fs),
		Stager:   stage.New(fs),
		Packager: pkgtool.New(r, fs),
	}
}

// Resolved is everything known before any side effect.
type Resolved struct {
	Source   locator.SourceRef
	Platform platform.Platform
	Backend  planner.Backend
	Init     planner.InitIntegration
}

// Resolve parses the locator, identifies the platform and checks that it
// can be packaged for.
func (o *Orchestrator) Resolve(ctx context.Context, opts Options) (Resolved, error) {
	logger := logging.Step(ctx, "resolve")
	src, warnings, err := locator.Parse(opts.Locator, opts.Ref)
	if err != nil {
		return Resolved{}, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	plat, err := o.detectPlatform(ctx, opts)
	if err != nil {
		return Resolved{}, err
	}
	backend, initSys, err := o.newPlanner(opts).Preflight(plat, opts.overrides())
	if err != nil {
		return Resolved{}, err
	}
	logger.Info("Resolved", "source", src.String(), "platform", plat.ID(), "backend", backend, "init", initSys)
	return Resolved{Source: src, Platform: plat, Backend: backend, Init: initSys}, nil
}

func (o *Orchestrator) detectPlatform(ctx context.Context, opts Options) (platform.Platform, error) {
	if opts.Platform != "" {
		return platform.ParseID(opts.Platform)
	}
	if o.Detector == nil {
		return platform.Platform{}, fmt.Errorf("%w: no platform detector", platform.ErrUnknownPlatform)
	}
	return o.Detector.Detect(ctx)
}

func (o *Orchestrator) newPlanner(opts Options) *planner.Planner {
	return planner.New(opts.Rules, o.Runner)
}

// Plan resolves and plans without touching the working copy. The version
// comes from opts, the selector or an existing checkout, in that order.
func (o *Orchestrator) Plan(ctx context.Context, opts Options) (planner.BuildPlan, error) {
	res, err := o.Resolve(ctx, opts)
	if err != nil {
		return planner.BuildPlan{}, err
	}
	v, err := o.resolveVersion(opts, res.Source, false)
	if err != nil {
		return planner.BuildPlan{}, err
	}
	return o.newPlanner(opts).Plan(ctx, planner.Request{
		Version:   v,
		Source:    res.Source,
		Platform:  res.Platform,
		Overrides: opts.overrides(),
	})
}

// resolveVersion picks the explicit version, then configure.ac and a
// selector that reads as a version. configure.ac goes first only when
// checkedOut says this run just checked the selector out; otherwise the
// working copy may belong to an earlier run.
func (o *Orchestrator) resolveVersion(opts Options, src locator.SourceRef, checkedOut bool) (string, error) {
	if opts.Version != "" {
		return opts.Version, nil
	}
	fromSelector := func() (string, bool) {
		sel := src.RevisionSelector
		if sel == "" {
			return "", false
		}
		if _, err := version.Parse(version.Core(sel)); err != nil {
			return "", false
		}
		return strings.TrimPrefix(sel, "v"), true
	}
	fromCheckout := func() (string, bool) {
		v, err := toolchain.DetectVersion(o.Fs, opts.sourceDir())
		return v, err == nil
	}

	sources := []func() (string, bool){fromSelector, fromCheckout}
	if checkedOut {
		sources = []func() (string, bool){fromCheckout, fromSelector}
	}
	for _, from := range sources {
		if v, ok := from(); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("cannot tell the version to build: pass --version")
}
