package native

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiglobe/mesos-deb-packaging/internal/native/apt"
	"github.com/vigiglobe/mesos-deb-packaging/internal/native/rpm"
	"github.com/vigiglobe/mesos-deb-packaging/internal/platform"
	"github.com/vigiglobe/mesos-deb-packaging/internal/testutil"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

func mustPlatform(t *testing.T, id string) platform.Platform {
	t.Helper()
	p, err := platform.ParseID(id)
	require.NoError(t, err)
	return p
}

func TestGetDriverForPlatform(t *testing.T) {
	r := testutil.NewFakeRunner()

	d, err := GetDriverForPlatform(mustPlatform(t, "ubuntu/14.04"), r)
	require.NoError(t, err)
	assert.IsType(t, &apt.DebianDriver{}, d)

	d, err = GetDriverForPlatform(mustPlatform(t, "centos/7"), r)
	require.NoError(t, err)
	assert.IsType(t, &rpm.RPMDriver{}, d)

	_, err = GetDriverForPlatform(mustPlatform(t, "macosx/10.9"), r)
	assert.Error(t, err)
}

func TestDebianDriver(t *testing.T) {
	r := testutil.NewFakeRunner()
	r.On("dpkg-query -W -f ${Status} libcurl4-nss-dev", testutil.Response{Output: "install ok installed"})
	r.On("dpkg-query -W -f ${Version} libcurl4-nss-dev", testutil.Response{Output: "7.35.0-1ubuntu2.5\n"})
	r.On("dpkg-query -W -f ${Status} libcurl4-openssl-dev", testutil.Response{Output: "deinstall ok config-files"})
	r.Fail("dpkg-query -W -f ${Status} libcurl4-gnutls-dev", 1)
	r.Fail("dpkg-query -W -f ${Status} broken", 2)

	d := apt.New(r)
	ctx := context.Background()

	ok, err := d.IsInstalled(ctx, "libcurl4-nss-dev")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := d.InstalledVersion(ctx, "libcurl4-nss-dev")
	require.NoError(t, err)
	assert.Equal(t, "7.35.0-1ubuntu2.5", v)

	v, err = d.InstalledVersion(ctx, "libcurl4-gnutls-dev")
	require.NoError(t, err)
	assert.Empty(t, v)

	ok, err = d.IsInstalled(ctx, "libcurl4-openssl-dev")
	require.NoError(t, err)
	assert.False(t, ok, "removed packages with leftover config are not installed")

	ok, err = d.IsInstalled(ctx, "libcurl4-gnutls-dev")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.IsInstalled(ctx, "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrExternalTool))
}

func TestRPMDriver(t *testing.T) {
	r := testutil.NewFakeRunner()
	r.On("rpm -q --queryformat %{VERSION}-%{RELEASE} libcurl-devel", testutil.Response{Output: "7.29.0-19.el7"})
	r.Fail("rpm -q --queryformat %{VERSION}-%{RELEASE} nss-devel", 1)
	r.On("rpm -q --queryformat %{VERSION}-%{RELEASE} gone", testutil.Response{Err: &utils.ToolError{Name: "rpm", ExitCode: 127}})

	d := rpm.New(r)
	ctx := context.Background()

	ok, err := d.IsInstalled(ctx, "libcurl-devel")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := d.InstalledVersion(ctx, "libcurl-devel")
	require.NoError(t, err)
	assert.Equal(t, "7.29.0-19.el7", v)

	ok, err = d.IsInstalled(ctx, "nss-devel")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.IsInstalled(ctx, "gone")
	assert.Error(t, err)
}

func TestFirstInstalled(t *testing.T) {
	r := testutil.NewFakeRunner()
	r.Fail("dpkg-query -W -f ${Status} a", 1)
	r.On("dpkg-query -W -f ${Status} b", testutil.Response{Output: "install ok installed"})
	r.On("dpkg-query -W -f ${Status} c", testutil.Response{Output: "install ok installed"})

	got, ok, err := FirstInstalled(context.Background(), apt.New(r), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", got)
	assert.NotContains(t, r.CommandLines(), "dpkg-query -W -f ${Status} c", "search stops at the first hit")
}
