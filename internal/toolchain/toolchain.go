// Package toolchain runs the autotools build of a source tree into a
// staging directory.
package toolchain

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/spf13/afero"

	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Options locate the trees a build reads and writes.
type Options struct {
	SourceDir string
	// BuildDir defaults to SourceDir/build.
	BuildDir string
	StageDir string
	// Prefix defaults to /usr.
	Prefix string
	CC     string
	CXX    string
	Patch  string
	// Jobs overrides the make parallelism of twice the core count.
	Jobs int
}

// DefaultPrefix is where the package installs to.
const DefaultPrefix = "/usr"

func (o Options) buildDir() string {
	return utils.WithDefault(o.BuildDir, filepath.Join(o.SourceDir, "build"))
}

type Builder struct {
	Runner utils.Runner
	Fs     afero.Fs
	// Cores reports logical CPUs.
	Cores func(ctx context.Context) (int, error)
	// Getenv reads the caller's environment.
	Getenv func(string) string
	// HTTP fetches remote patches.
	HTTP *http.Client
}

func New(r utils.Runner, fs afero.Fs) *Builder {
	return &Builder{
		Runner: r,
		Fs:     fs,
		Cores:  func(ctx context.Context) (int, error) { return cpu.CountsWithContext(ctx, true) },
		Getenv: os.Getenv,
		HTTP:   defaultHTTPClient(),
	}
}

// Build bootstraps when needed, then configures with the plan's flags,
// compiles and installs into the staging tree.
func (b *Builder) Build(ctx context.Context, plan planner.BuildPlan, opts Options) error {
	logger := logging.Step(ctx, "build")
	env := b.Environment(opts)

	hasConfigure, err := afero.Exists(b.Fs, filepath.Join(opts.SourceDir, "configure"))
	if err != nil {
		return err
	}
	if !hasConfigure {
		logger.Info("Bootstrapping", "dir", opts.SourceDir)
		if err := b.Runner.Run(ctx, utils.Cmd{Name: "./bootstrap", Dir: opts.SourceDir, Env: env}); err != nil {
			return err
		}
	}

	buildDir := opts.buildDir()
	if err := b.Fs.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("creating build dir: %w", err)
	}
	configure, err := filepath.Rel(buildDir, filepath.Join(opts.SourceDir, "configure"))
	if err != nil {
		return err
	}
	args := append([]string{"--prefix=" + utils.WithDefault(opts.Prefix, DefaultPrefix)}, plan.ConfigureFlags...)
	logger.Info("Configuring", "flags", strings.Join(args, " "))
	if err := b.Runner.Run(ctx, utils.Cmd{Name: configure, Args: args, Dir: buildDir, Env: env}); err != nil {
		return err
	}

	jobs := b.Jobs(ctx, opts)
	logger.Info("Compiling", "jobs", jobs)
	if err := b.Runner.Run(ctx, utils.Cmd{Name: "make", Args: []string{"-j" + strconv.Itoa(jobs)}, Dir: buildDir, Env: env}); err != nil {
		return err
	}

	stageDir, err := filepath.Abs(opts.StageDir)
	if err != nil {
		return err
	}
	logger.Info("Installing", "destdir", stageDir)
	return b.Runner.Run(ctx, utils.Cmd{Name: "make", Args: []string{"install", "DESTDIR=" + stageDir}, Dir: buildDir, Env: env})
}

// ApplyPatch applies a -p1 patch to the source tree. An http(s) patch is
// downloaded next to the source tree first.
func (b *Builder) ApplyPatch(ctx context.Context, srcDir, patch string) error {
	if patch == "" {
		return nil
	}
	logger := logging.Step(ctx, "patch")
	if IsRemote(patch) {
		dest := filepath.Join(filepath.Dir(filepath.Clean(srcDir)), patchFileName(patch))
		logger.Info("Downloading patch", "url", patch, "dest", dest)
		client := b.HTTP
		if client == nil {
			client = defaultHTTPClient()
		}
		if err := download(ctx, client, b.Fs, patch, dest); err != nil {
			return err
		}
		patch = dest
	}
	abs, err := filepath.Abs(patch)
	if err != nil {
		return err
	}
	if ok, err := afero.Exists(b.Fs, abs); err != nil || !ok {
		return fmt.Errorf("patch file %s not found", abs)
	}
	logger.Info("Applying patch", "file", abs)
	return b.Runner.Run(ctx, utils.Cmd{Name: "patch", Args: []string{"-p1", "-i", abs}, Dir: srcDir})
}

// Jobs is the make parallelism: twice the logical cores.
func (b *Builder) Jobs(ctx context.Context, opts Options) int {
	if opts.Jobs > 0 {
		return opts.Jobs
	}
	cores := 1
	if b.Cores != nil {
		if n, err := b.Cores(ctx); err == nil && n > 0 {
			cores = n
		} else if err != nil {
			logging.From(ctx).Debug("Core count unavailable, assuming one", "err", err)
		}
	}
	return 2 * cores
}

// Environment returns the variables every build command gets: the chosen
// compilers and, when a JDK is found, JAVA_HOME with its bin dir on PATH.
func (b *Builder) Environment(opts Options) []string {
	var env []string
	if opts.CC != "" {
		env = append(env, "CC="+opts.CC)
	}
	if opts.CXX != "" {
		env = append(env, "CXX="+opts.CXX)
	}
	if home := FindJavaHome(b.Fs, b.getenv("JAVA_HOME")); home != "" {
		env = append(env,
			"JAVA_HOME="+home,
			"PATH="+filepath.Join(home, "bin")+string(os.PathListSeparator)+b.getenv("PATH"),
		)
	}
	return env
}

func (b *Builder) getenv(key string) string {
	if b.Getenv == nil {
		return ""
	}
	return b.Getenv(key)
}

// jvmRoots are searched in order after $JAVA_HOME.
var jvmRoots = []string{
	"/usr/lib/jvm/default-java",
	"/usr/lib/jvm/java",
	"/usr/lib/jvm/java-8-openjdk-amd64",
	"/usr/lib/jvm/java-7-openjdk-amd64",
	"/System/Library/Frameworks/JavaVM.framework/Home",
}

// FindJavaHome returns the first JDK home containing bin/javac.
func FindJavaHome(fs afero.Fs, javaHome string) string {
	candidates := []string{}
	if javaHome != "" {
		candidates = append(candidates, javaHome)
	}
	candidates = append(candidates, jvmRoots...)
	if matches, err := afero.Glob(fs, "/usr/lib/jvm/*"); err == nil {
		candidates = append(candidates, matches...)
	}
	for _, home := range candidates {
		if ok, _ := afero.Exists(fs, filepath.Join(home, "bin", "javac")); ok {
			return home
		}
	}
	return ""
}

var acInitRe = regexp.MustCompile(`AC_INIT\(\s*\[[^\]]*\]\s*,\s*\[([^\]]+)\]`)

// DetectVersion reads the package version from configure.ac.
func DetectVersion(fs afero.Fs, srcDir string) (string, error) {
	path := filepath.Join(srcDir, "configure.ac")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("reading version: %w", err)
	}
	m := acInitRe.FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("no AC_INIT version in %s", path)
	}
	return strings.TrimSpace(string(m[1])), nil
}
