// Package pkgtool turns a staging tree into a native package with fpm.
package pkgtool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/stage"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Metadata is the descriptive part of the package header.
type Metadata struct {
	Maintainer  string `yaml:"maintainer"`
	Vendor      string `yaml:"vendor"`
	URL         string `yaml:"url"`
	License     string `yaml:"license"`
	Description string `yaml:"description"`
}

type Request struct {
	Name      string
	Version   string
	Iteration string
	Plan      planner.BuildPlan
	StageDir  string
	OutDir    string
	Staged    stage.Result
	Metadata  Metadata
}

func (r Request) iteration() string {
	return utils.WithDefault(r.Iteration, "1")
}

type Packager struct {
	Runner utils.Runner
	Fs     afero.Fs
}

func New(r utils.Runner, fs afero.Fs) *Packager {
	return &Packager{Runner: r, Fs: fs}
}

// Package runs fpm and returns the path of the package it writes.
func (p *Packager) Package(ctx context.Context, req Request) (string, error) {
	cmd, out, err := Command(req)
	if err != nil {
		return "", err
	}
	if err := p.Fs.MkdirAll(req.OutDir, 0o755); err != nil {
		return "", err
	}
	// fpm refuses to overwrite an existing package
	if !utils.GetExecOptions(ctx).DryRun {
		if err := p.Fs.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("removing old package %s: %w", out, err)
		}
	}
	logging.Step(ctx, "package").Info("Packaging", "backend", req.Plan.PackagingBackend, "file", out)
	if err := p.Runner.Run(ctx, utils.Privileged(ctx, cmd)); err != nil {
		return "", err
	}
	return out, nil
}

// Command builds the fpm invocation for req and the package path it
// produces.
func Command(req Request) (utils.Cmd, string, error) {
	backend := req.Plan.PackagingBackend
	if backend != planner.BackendDeb && backend != planner.BackendRpm {
		return utils.Cmd{}, "", fmt.Errorf("%w: cannot package for backend %q", planner.ErrUnsupportedPlatform, backend)
	}
	if req.Name == "" || req.Version == "" {
		return utils.Cmd{}, "", fmt.Errorf("package name and version are required")
	}
	arch := Arch(backend, req.Plan.Platform.Arch)
	version := PackageVersion(req.Version)
	out := filepath.Join(req.OutDir, FileName(backend, req.Name, version, req.iteration(), arch))

	args := []string{
		"-s", "dir",
		"-t", string(backend),
		"-C", req.StageDir,
		"-n", req.Name,
		"-v", version,
		"--iteration", req.iteration(),
		"-a", arch,
		"-p", out,
	}
	m := req.Metadata
	for _, kv := range [][2]string{
		{"--maintainer", m.Maintainer},
		{"--vendor", m.Vendor},
		{"--url", m.URL},
		{"--license", m.License},
		{"--description", m.Description},
	} {
		if kv[1] != "" {
			args = append(args, kv[0], kv[1])
		}
	}
	for _, dep := range req.Plan.RuntimeDependencies {
		args = append(args, "-d", dep)
	}
	if req.Staged.AfterInstall != "" {
		args = append(args, "--after-install", req.Staged.AfterInstall)
	}
	if req.Staged.BeforeRemove != "" {
		args = append(args, "--before-remove", req.Staged.BeforeRemove)
	}
	for _, cf := range req.Staged.ConfigFiles {
		args = append(args, "--config-files", cf)
	}
	args = append(args, ".")
	return utils.Cmd{Name: "fpm", Args: args}, out, nil
}

// PackageVersion makes an upstream version usable in both formats:
// pre-release separators become "~", which sorts before the release.
func PackageVersion(v string) string {
	return strings.ReplaceAll(strings.TrimPrefix(v, "v"), "-", "~")
}

var debArch = map[string]string{"amd64": "amd64", "386": "i386", "arm64": "arm64", "arm": "armhf"}
var rpmArch = map[string]string{"amd64": "x86_64", "386": "i686", "arm64": "aarch64", "arm": "armv7hl"}

// Arch maps a Go architecture to the package format's name for it.
func Arch(b planner.Backend, goarch string) string {
	table := debArch
	if b == planner.BackendRpm {
		table = rpmArch
	}
	if a, ok := table[goarch]; ok {
		return a
	}
	if goarch == "" {
		return "native"
	}
	return goarch
}

// FileName follows each format's naming convention.
func FileName(b planner.Backend, name, version, iteration, arch string) string {
	if b == planner.BackendRpm {
		return fmt.Sprintf("%s-%s-%s.%s.rpm", name, version, iteration, arch)
	}
	return fmt.Sprintf("%s_%s-%s_%s.deb", name, version, iteration, arch)
}
