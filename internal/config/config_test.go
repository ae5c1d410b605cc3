package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
)

func TestLoadFillsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mesos-pkg.yml", []byte(`
name: mesos-custom
startWith: runit
configureFlags: [--with-network-isolator]
rules:
  optimizeSince: "0.22.0"
  packages:
    deb:
      httpClient: libcurl4
`), 0o644))

	p, err := Load(fs, "/etc/mesos-pkg.yml")
	require.NoError(t, err)
	assert.Equal(t, "mesos-custom", p.Name)
	assert.Equal(t, DefaultRepository, p.Repository)
	assert.Equal(t, "1", p.Iteration)
	assert.Equal(t, planner.StartWithRunit, p.StartWith)
	assert.Equal(t, []string{"--with-network-isolator"}, p.ConfigureFlags)
	assert.Equal(t, "0.22.0", p.Rules.OptimizeSince)
	assert.Equal(t, "0.20.1", p.Rules.SVNCutoff)
	assert.Equal(t, "libcurl4", p.Rules.Packages[planner.BackendDeb].HTTPClient)
	assert.Equal(t, "libsvn1", p.Rules.Packages[planner.BackendDeb].SVN)
	assert.Equal(t, "Apache-2.0", p.Metadata.License)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/missing.yml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.yml", []byte("name: [unterminated"), 0o644))
	_, err = Load(fs, "/bad.yml")
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault(afero.NewMemMapFs(), "mesos-pkg.yml")
	require.NoError(t, err)
	assert.Equal(t, "mesos", p.Name)
	assert.Equal(t, "mesos-pkg.yml", p.Path())
}

func TestInitAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Init(fs, "/work/mesos-pkg.yml", false)
	require.NoError(t, err)

	_, err = Init(fs, "/work/mesos-pkg.yml", false)
	assert.Error(t, err, "existing profiles are kept")

	p.Name = "mesos-edge"
	require.NoError(t, p.Save())

	loaded, err := Load(fs, "/work/mesos-pkg.yml")
	require.NoError(t, err)
	assert.Equal(t, "mesos-edge", loaded.Name)
	assert.Equal(t, planner.DefaultRules(), loaded.Rules)

	_, err = Init(fs, "/work/mesos-pkg.yml", true)
	assert.NoError(t, err)
}
