package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/pkgtool"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/stage"
	"github.com/vigiglobe/mesos-deb-packaging/internal/toolchain"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Result is what a build produced.
type Result struct {
	Plan      planner.BuildPlan `yaml:"plan"`
	Commit    string            `yaml:"commit,omitempty"`
	Package   string            `yaml:"package,omitempty"`
	Archive   string            `yaml:"archive,omitempty"`
	Artifacts []string          `yaml:"artifacts,omitempty"`
	Checksums string            `yaml:"checksums,omitempty"`
	Manifest  string            `yaml:"-"`
}

// run is the state threaded through the steps of one build.
type run struct {
	opts     Options
	resolved Resolved
	staged   stage.Result
	result   Result
}

type step struct {
	name string
	icon string
	msg  string
	do   func(ctx context.Context, r *run) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{"tools", "🔎", "Checking build tools", o.checkTools},
		{"clean", "🧹", "Cleaning previous build", o.clean},
		{"checkout", "⬇️", "Checking out sources", o.checkoutSource},
		{"plan", "📋", "Planning build", o.planBuild},
		{"patch", "🩹", "Applying patch", o.applyPatch},
		{"build", "🔨", "Building", o.compile},
		{"stage", "📂", "Staging service files", o.stageTree},
		{"package", "📦", "Packaging", o.packageTree},
		{"archive", "🗜️", "Archiving staging tree", o.archiveStage},
		{"record", "✅", "Recording checksums", o.record},
	}
}

// Build runs the whole pipeline. The first failing step stops it; its
// error keeps the exit status of the tool that failed.
func (o *Orchestrator) Build(ctx context.Context, opts Options) (Result, error) {
	if opts.Name == "" {
		return Result{}, errors.New("package name is required")
	}
	if utils.GetExecOptions(ctx).DryRun {
		// writes land in memory, reads still see the disk
		o = o.withFs(afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(o.Fs), afero.NewMemMapFs()))
	}

	resolved, err := o.Resolve(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	r := &run{opts: opts, resolved: resolved}
	for _, s := range o.steps() {
		printStep(ctx, s)
		if err := s.do(ctx, r); err != nil {
			return r.result, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	logging.From(ctx).Info("🎉 Done", "package", r.result.Package, "archive", r.result.Archive)
	return r.result, nil
}

func printStep(ctx context.Context, s step) {
	logging.From(ctx).Info(s.icon + " " + s.msg)
}

// withFs returns a copy of o whose collaborators all use fs.
func (o *Orchestrator) withFs(fs afero.Fs) *Orchestrator {
	c := *o
	c.Fs = fs
	if o.Builder != nil {
		b := *o.Builder
		b.Fs = fs
		c.Builder = &b
	}
	if o.Stager != nil {
		c.Stager = stage.New(fs)
	}
	if o.Packager != nil {
		p := *o.Packager
		p.Fs = fs
		c.Packager = &p
	}
	return &c
}

func (r *run) toolchainOptions() toolchain.Options {
	return toolchain.Options{
		SourceDir: r.opts.sourceDir(),
		BuildDir:  r.opts.buildDir(),
		StageDir:  r.opts.stageDir(),
		CC:        r.opts.CC,
		CXX:       r.opts.CXX,
		Patch:     r.opts.Patch,
		Jobs:      r.opts.Jobs,
	}
}

func (o *Orchestrator) checkTools(ctx context.Context, r *run) error {
	err := toolchain.CheckRequiredTools(o.LookPath, toolchain.Requirements(r.toolchainOptions()))
	if err != nil && utils.GetExecOptions(ctx).DryRun {
		logging.Step(ctx, "tools").Warn(err.Error())
		return nil
	}
	return err
}

func (o *Orchestrator) clean(ctx context.Context, r *run) error {
	if utils.GetExecOptions(ctx).DryRun {
		logging.Step(ctx, "clean").Info("⚡ [dry-run] keeping previous build trees")
		return nil
	}
	for _, dir := range []string{r.opts.stageDir(), r.opts.scriptDir(), r.opts.buildDir()} {
		logging.Step(ctx, "clean").Debug("Removing", "dir", dir)
		if err := o.Fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}

func (o *Orchestrator) checkoutSource(ctx context.Context, r *run) error {
	res, err := o.Checkout.Checkout(ctx, r.resolved.Source, r.opts.sourceDir())
	if err != nil {
		return err
	}
	r.result.Commit = res.Commit
	return nil
}

func (o *Orchestrator) planBuild(ctx context.Context, r *run) error {
	// a dry run never checks out, so the working copy may be stale
	v, err := o.resolveVersion(r.opts, r.resolved.Source, !utils.GetExecOptions(ctx).DryRun)
	if err != nil {
		return err
	}
	plan, err := o.newPlanner(r.opts).Plan(ctx, planner.Request{
		Version:   v,
		Source:    r.resolved.Source,
		Platform:  r.resolved.Platform,
		Overrides: r.opts.overrides(),
	})
	if err != nil {
		return err
	}
	logging.Step(ctx, "plan").Info("Planned",
		"version", plan.Version,
		"flags", plan.ConfigureFlags,
		"deps", plan.RuntimeDependencies,
		"init", plan.InitIntegration,
		"backend", plan.PackagingBackend)
	r.result.Plan = plan
	return nil
}

func (o *Orchestrator) applyPatch(ctx context.Context, r *run) error {
	return o.Builder.ApplyPatch(ctx, r.opts.sourceDir(), r.opts.Patch)
}

func (o *Orchestrator) compile(ctx context.Context, r *run) error {
	return o.Builder.Build(ctx, r.result.Plan, r.toolchainOptions())
}

func (o *Orchestrator) stageTree(ctx context.Context, r *run) error {
	staged, err := o.Stager.Stage(ctx, r.result.Plan, stage.Options{
		Name:      r.opts.Name,
		SourceDir: r.opts.sourceDir(),
		BuildDir:  r.opts.buildDir(),
		StageDir:  r.opts.stageDir(),
		ScriptDir: r.opts.scriptDir(),
		OutDir:    r.opts.outDir(),
	})
	if err != nil {
		return err
	}
	r.staged = staged
	r.result.Artifacts = staged.Artifacts
	return nil
}

func (o *Orchestrator) packageTree(ctx context.Context, r *run) error {
	out, err := o.Packager.Package(ctx, pkgtool.Request{
		Name:      r.opts.Name,
		Version:   r.result.Plan.Version,
		Iteration: r.opts.Iteration,
		Plan:      r.result.Plan,
		StageDir:  r.opts.stageDir(),
		OutDir:    r.opts.outDir(),
		Staged:    r.staged,
		Metadata:  r.opts.Metadata,
	})
	if err != nil {
		return err
	}
	r.result.Package = out
	return nil
}

func (o *Orchestrator) archiveStage(ctx context.Context, r *run) error {
	name := fmt.Sprintf("%s-%s.tar.xz", r.opts.Name, pkgtool.PackageVersion(r.result.Plan.Version))
	dest := filepath.Join(r.opts.outDir(), name)
	if err := stage.ArchiveTarXz(o.Fs, r.opts.stageDir(), dest); err != nil {
		return err
	}
	entries, err := stage.ListTarXz(o.Fs, dest)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("archive %s is empty: nothing was staged", dest)
	}
	logging.Step(ctx, "archive").Info("Archived staging tree", "path", dest, "entries", len(entries))
	r.result.Archive = dest
	return nil
}
