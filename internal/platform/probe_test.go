package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiglobe/mesos-deb-packaging/internal/testutil"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

func newProbe(t *testing.T, files map[string]string) (*Probe, *testutil.FakeRunner) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	runner := testutil.NewFakeRunner()
	runner.On("sw_vers -productName", testutil.Response{Err: &utils.ToolError{Name: "sw_vers", ExitCode: 127}})
	return &Probe{Fs: fs, Runner: runner}, runner
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "ubuntu os-release",
			files: map[string]string{"/etc/os-release": "NAME=\"Ubuntu\"\nID=ubuntu\nVERSION_ID=\"14.04\"\n"},
			want:  "ubuntu/14.04",
		},
		{
			name:  "debian keeps major only",
			files: map[string]string{"/etc/os-release": "ID=debian\nVERSION_ID=\"7.8\"\n"},
			want:  "debian/7",
		},
		{
			name:  "centos os-release",
			files: map[string]string{"/etc/os-release": "ID=\"centos\"\nVERSION_ID=\"7\"\n"},
			want:  "centos/7",
		},
		{
			name:  "rhel id maps to redhat",
			files: map[string]string{"/etc/os-release": "ID=\"rhel\"\nVERSION_ID=\"7.2\"\n"},
			want:  "redhat/7",
		},
		{
			name:  "fedora keeps version verbatim",
			files: map[string]string{"/usr/lib/os-release": "ID=fedora\nVERSION_ID=22\n"},
			want:  "fedora/22",
		},
		{
			name:  "legacy centos",
			files: map[string]string{"/etc/centos-release": "CentOS release 6.5 (Final)\n"},
			want:  "centos/6",
		},
		{
			name:  "legacy red hat",
			files: map[string]string{"/etc/redhat-release": "Red Hat Enterprise Linux Server release 6.5 (Santiago)\n"},
			want:  "redhat/6",
		},
		{
			name:  "legacy other name verbatim",
			files: map[string]string{"/etc/system-release": "Scientific Linux release 6.4 (Carbon)"},
			want:  "scientific linux/6.4",
		},
		{
			name: "structured descriptor wins over legacy",
			files: map[string]string{
				"/etc/os-release":     "ID=centos\nVERSION_ID=\"7\"\n",
				"/etc/redhat-release": "CentOS release 6.5 (Final)\n",
			},
			want: "centos/7",
		},
		{
			name: "os-release without ID falls through",
			files: map[string]string{
				"/etc/os-release":     "NAME=whatever\n",
				"/etc/redhat-release": "CentOS release 6.5 (Final)\n",
			},
			want: "centos/6",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, runner := newProbe(t, tt.files)
			got, err := probe.Detect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID())
			assert.Empty(t, runner.Calls, "sw_vers must not run when a descriptor file matched")
		})
	}
}

func TestDetectMacOSX(t *testing.T) {
	probe, runner := newProbe(t, nil)
	runner.On("sw_vers -productName", testutil.Response{Output: "Mac OS X\n"})
	runner.On("sw_vers -productVersion", testutil.Response{Output: "10.9.5\n"})

	got, err := probe.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "macosx/10.9", got.ID())
}

func TestDetectRefusesOtherAppleProduct(t *testing.T) {
	probe, runner := newProbe(t, nil)
	runner.On("sw_vers -productName", testutil.Response{Output: "macOS\n"})

	_, err := probe.Detect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlatform))
	assert.Contains(t, err.Error(), "macOS")
}

func TestDetectUnknown(t *testing.T) {
	probe, _ := newProbe(t, map[string]string{"/etc/redhat-release": "garbage"})
	_, err := probe.Detect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlatform))
}

func TestParseID(t *testing.T) {
	p, err := ParseID("Ubuntu/14.04")
	require.NoError(t, err)
	assert.Equal(t, FamilyUbuntu, p.Family)
	assert.Equal(t, "14.04", p.Version)
	assert.Equal(t, "14", p.Major())
	assert.True(t, p.Known())
	assert.Equal(t, PackagingDebian, p.PackagingFamily())

	p, err = ParseID("centos/7.1.1503")
	require.NoError(t, err)
	assert.Equal(t, "centos/7", p.ID())
	assert.Equal(t, PackagingRHEL, p.PackagingFamily())

	p, err = ParseID("macosx/10.10.3")
	require.NoError(t, err)
	assert.Equal(t, "macosx/10.10", p.ID())
	assert.Equal(t, PackagingOther, p.PackagingFamily())

	p, err = ParseID("ol/7.9")
	require.NoError(t, err)
	assert.Equal(t, PackagingRHEL, p.PackagingFamily(), "Oracle Linux reports ID=ol")
	assert.False(t, p.Known())

	p, err = ParseID("oracle/7")
	require.NoError(t, err)
	assert.Equal(t, PackagingOther, p.PackagingFamily())

	_, err = ParseID("ubuntu")
	assert.True(t, errors.Is(err, ErrUnknownPlatform))
	_, err = ParseID("/7")
	assert.Error(t, err)
}
