package rpm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

type RPMDriver struct {
	Runner utils.Runner
}

func New(r utils.Runner) *RPMDriver {
	return &RPMDriver{Runner: r}
}

func (d *RPMDriver) Name() string { return "rpm" }

// IsInstalled asks the rpm database. rpm -q exits 1 for packages that are
// not installed; every other failure is returned.
func (d *RPMDriver) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	v, err := d.InstalledVersion(ctx, pkg)
	return v != "", err
}

func (d *RPMDriver) InstalledVersion(ctx context.Context, pkg string) (string, error) {
	out, err := d.Runner.Output(ctx, utils.Cmd{Name: "rpm", Args: []string{"-q", "--queryformat", "%{VERSION}-%{RELEASE}", pkg}})
	if err != nil {
		var te *utils.ToolError
		if errors.As(err, &te) && te.ExitCode == 1 {
			return "", nil
		}
		return "", fmt.Errorf("rpm -q %s: %w", pkg, err)
	}
	return strings.TrimSpace(out), nil
}
