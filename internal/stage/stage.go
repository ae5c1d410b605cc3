// Package stage completes the installed tree under DESTDIR with the files a
// service package needs: init integration, default configuration,
// documentation and maintainer scripts.
package stage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/syntax"

	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Kinds are the daemons every package ships a service for.
var Kinds = []string{"master", "slave"}

type Options struct {
	// Name is the package name, e.g. "mesos".
	Name      string
	SourceDir string
	BuildDir  string
	StageDir  string
	// ScriptDir receives the maintainer scripts; they are not part of the
	// installed tree. Defaults to StageDir + "-scripts".
	ScriptDir string
	// OutDir receives the language artifacts found in BuildDir.
	OutDir string
	Prefix string
}

func (o Options) scriptDir() string {
	return utils.WithDefault(o.ScriptDir, strings.TrimRight(o.StageDir, "/")+"-scripts")
}

func (o Options) prefix() string {
	return utils.WithDefault(o.Prefix, "/usr")
}

// Result lists what the packaging step needs from the staging step.
type Result struct {
	// ConfigFiles are package paths marked as configuration.
	ConfigFiles  []string
	AfterInstall string
	BeforeRemove string
	Artifacts    []string
}

type Stager struct {
	Fs afero.Fs
}

func New(fs afero.Fs) *Stager {
	return &Stager{Fs: fs}
}

// file is one path written into the staging tree.
type file struct {
	path   string
	mode   os.FileMode
	tmpl   *template.Template
	data   any
	config bool
	shell  bool
}

// Stage writes the service files for plan into opts.StageDir and the
// maintainer scripts into opts.ScriptDir.
func (s *Stager) Stage(ctx context.Context, plan planner.BuildPlan, opts Options) (Result, error) {
	logger := logging.Step(ctx, "stage")
	if opts.Name == "" {
		return Result{}, fmt.Errorf("staging needs a package name")
	}
	var res Result

	files, err := s.serviceFiles(plan, opts)
	if err != nil {
		return res, err
	}
	files = append(files, s.configFiles(plan, opts)...)

	for _, f := range files {
		content, err := render(f.tmpl, f.data)
		if err != nil {
			return res, fmt.Errorf("rendering %s: %w", f.path, err)
		}
		if f.shell {
			if err := ValidateShell(f.path, content); err != nil {
				return res, err
			}
		}
		if err := s.write(filepath.Join(opts.StageDir, f.path), content, f.mode); err != nil {
			return res, err
		}
		if f.config {
			res.ConfigFiles = append(res.ConfigFiles, f.path)
		}
		logger.Debug("Staged", "path", f.path)
	}

	if err := s.copyDocs(opts); err != nil {
		return res, err
	}

	res.AfterInstall, res.BeforeRemove, err = s.writeScripts(plan, opts)
	if err != nil {
		return res, err
	}

	res.Artifacts, err = s.CollectArtifacts(opts.BuildDir, opts.OutDir)
	if err != nil {
		return res, err
	}
	sort.Strings(res.ConfigFiles)
	logger.Info("Staged service files", "init", plan.InitIntegration, "config", len(res.ConfigFiles), "artifacts", len(res.Artifacts))
	return res, nil
}

// ServiceNames are the init names of the shipped daemons.
func ServiceNames(name string) []string {
	out := make([]string, 0, len(Kinds))
	for _, kind := range Kinds {
		out = append(out, name+"-"+kind)
	}
	return out
}

func wrapperPath(opts Options) string {
	return path.Join(opts.prefix(), "bin", opts.Name+"-init-wrapper")
}

func (s *Stager) serviceFiles(plan planner.BuildPlan, opts Options) ([]file, error) {
	wrapper := wrapperPath(opts)
	files := []file{{
		path:  wrapper,
		mode:  0o755,
		tmpl:  wrapperTmpl,
		data:  unitData{Name: opts.Name, Prefix: opts.prefix()},
		shell: true,
	}}

	for _, kind := range Kinds {
		d := unitData{
			Name:    opts.Name,
			Service: opts.Name + "-" + kind,
			Kind:    kind,
			Wrapper: wrapper,
			Prefix:  opts.prefix(),
		}
		switch plan.InitIntegration {
		case planner.InitSystemV:
			files = append(files, file{path: "/etc/init.d/" + d.Service, mode: 0o755, tmpl: sysvTmpl, data: d, shell: true})
		case planner.InitUpstart:
			files = append(files, file{path: "/etc/init/" + d.Service + ".conf", mode: 0o644, tmpl: upstartTmpl, data: d, config: true})
		case planner.InitSystemd:
			files = append(files, file{path: path.Join(systemdUnitDir(plan.PackagingBackend), d.Service+".service"), mode: 0o644, tmpl: systemdTmpl, data: d})
		case planner.InitRunit:
			files = append(files,
				file{path: "/etc/sv/" + d.Service + "/run", mode: 0o755, tmpl: runitTmpl, data: d, shell: true},
				file{path: "/etc/sv/" + d.Service + "/log/run", mode: 0o755, tmpl: runitLogTmpl, data: d, shell: true},
			)
		default:
			return nil, fmt.Errorf("%w: no service files for init %q", planner.ErrUnsupportedPlatform, plan.InitIntegration)
		}
	}
	return files, nil
}

func systemdUnitDir(b planner.Backend) string {
	if b == planner.BackendRpm {
		return "/usr/lib/systemd/system"
	}
	return "/lib/systemd/system"
}

func (s *Stager) configFiles(plan planner.BuildPlan, opts Options) []file {
	d := unitData{Name: opts.Name}
	var files []file
	if plan.HasConfig(planner.ConfigDefaults) {
		files = append(files,
			file{path: "/etc/default/" + opts.Name, mode: 0o644, tmpl: defaultsTmpl, data: d, config: true, shell: true},
			file{path: "/etc/default/" + opts.Name + "-master", mode: 0o644, tmpl: masterDefaultsTmpl, data: d, config: true, shell: true},
			file{path: "/etc/default/" + opts.Name + "-slave", mode: 0o644, tmpl: slaveDefaultsTmpl, data: d, config: true, shell: true},
			file{path: "/etc/" + opts.Name + "/zk", mode: 0o644, tmpl: zkTmpl, data: d, config: true},
		)
	}
	if plan.HasConfig(planner.ConfigLogRotate) {
		files = append(files, file{path: "/etc/logrotate.d/" + opts.Name, mode: 0o644, tmpl: logrotateTmpl, data: d, config: true})
	}
	return files
}

var zkTmpl = template.Must(template.New("zk").Parse("zk://localhost:2181/{{.Name}}\n"))

// docFiles are copied from the source root when present.
var docFiles = []string{"README.md", "README", "LICENSE", "NOTICE", "CHANGELOG"}

func (s *Stager) copyDocs(opts Options) error {
	docDir := filepath.Join(opts.StageDir, opts.prefix(), "share", "doc", opts.Name)
	for _, name := range docFiles {
		src := filepath.Join(opts.SourceDir, name)
		data, err := afero.ReadFile(s.Fs, src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading %s: %w", src, err)
		}
		if err := s.write(filepath.Join(docDir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stager) writeScripts(plan planner.BuildPlan, opts Options) (string, string, error) {
	d := scriptData{Name: opts.Name, Init: string(plan.InitIntegration), Services: ServiceNames(opts.Name)}
	dir := opts.scriptDir()
	paths := make([]string, 0, 2)
	for _, sc := range []struct {
		name string
		tmpl *template.Template
	}{
		{"after-install", afterInstallTmpl},
		{"before-remove", beforeRemoveTmpl},
	} {
		content, err := render(sc.tmpl, d)
		if err != nil {
			return "", "", fmt.Errorf("rendering %s: %w", sc.name, err)
		}
		if err := ValidateShell(sc.name, content); err != nil {
			return "", "", err
		}
		p := filepath.Join(dir, sc.name)
		if err := s.write(p, content, 0o755); err != nil {
			return "", "", err
		}
		paths = append(paths, p)
	}
	return paths[0], paths[1], nil
}

func (s *Stager) write(p string, content []byte, mode os.FileMode) error {
	if err := s.Fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(s.Fs, p, content, mode); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// ValidateShell parses content as a POSIX shell script.
func ValidateShell(name string, content []byte) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(string(content)), name); err != nil {
		return fmt.Errorf("invalid shell script %s: %w", name, err)
	}
	return nil
}
