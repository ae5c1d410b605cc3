// Package config reads and writes the mesos-pkg.yml build profile.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/vigiglobe/mesos-deb-packaging/internal/pkgtool"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
)

// DefaultPath is looked up in the working directory.
const DefaultPath = "mesos-pkg.yml"

const DefaultRepository = "https://github.com/apache/mesos"

// Profile holds the defaults of a build. Command-line flags win over it.
type Profile struct {
	fs   afero.Fs
	path string

	Name           string           `yaml:"name"`
	Repository     string           `yaml:"repo"`
	Iteration      string           `yaml:"iteration,omitempty"`
	Platform       string           `yaml:"platform,omitempty"`
	SourceDir      string           `yaml:"srcDir,omitempty"`
	OutDir         string           `yaml:"outDir,omitempty"`
	CC             string           `yaml:"cc,omitempty"`
	CXX            string           `yaml:"cxx,omitempty"`
	StartWith      string           `yaml:"startWith,omitempty"`
	ConfigureFlags []string         `yaml:"configureFlags,omitempty"`
	Metadata       pkgtool.Metadata `yaml:"metadata"`
	Rules          planner.Rules    `yaml:"rules"`
}

// Default is the profile used when no file exists.
func Default() *Profile {
	return &Profile{
		Name:       "mesos",
		Repository: DefaultRepository,
		Iteration:  "1",
		StartWith:  planner.StartWithSystem,
		Metadata: pkgtool.Metadata{
			Vendor:      "Apache Software Foundation",
			URL:         "https://mesos.apache.org",
			License:     "Apache-2.0",
			Description: "Cluster resource manager with efficient resource isolation",
		},
		Rules: planner.DefaultRules(),
	}
}

// Load reads path and fills unset fields from Default.
func Load(fsys afero.Fs, path string) (*Profile, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	p.fs, p.path = fsys, path
	p.fillDefaults()
	return p, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(fsys afero.Fs, path string) (*Profile, error) {
	p, err := Load(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		p = Default()
		p.fs, p.path = fsys, path
		return p, nil
	}
	return p, err
}

func (p *Profile) fillDefaults() {
	def := Default()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Repository == "" {
		p.Repository = def.Repository
	}
	if p.Iteration == "" {
		p.Iteration = def.Iteration
	}
	if p.StartWith == "" {
		p.StartWith = def.StartWith
	}
	if p.Metadata == (pkgtool.Metadata{}) {
		p.Metadata = def.Metadata
	}
	p.Rules = p.Rules.Merge(def.Rules)
}

// Path is where Save writes.
func (p *Profile) Path() string { return p.path }

func (p *Profile) Save() error {
	if p.fs == nil || p.path == "" {
		return fmt.Errorf("profile has no destination")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := afero.WriteFile(p.fs, p.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.path, err)
	}
	return nil
}

// Init writes the default profile to path. An existing file is kept unless
// force is set.
func Init(fsys afero.Fs, path string, force bool) (*Profile, error) {
	if exists, err := afero.Exists(fsys, path); err != nil {
		return nil, err
	} else if exists && !force {
		return nil, fmt.Errorf("%s already exists", path)
	}
	p := Default()
	p.fs, p.path = fsys, path
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}
