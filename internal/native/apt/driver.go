package apt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

type DebianDriver struct {
	Runner utils.Runner
}

func New(r utils.Runner) *DebianDriver {
	return &DebianDriver{Runner: r}
}

func (d *DebianDriver) Name() string { return "dpkg" }

// IsInstalled reports whether pkg is fully installed. A package dpkg has
// never heard of is not installed; any other failure of dpkg-query is an
// error so a broken query never reads as "present".
func (d *DebianDriver) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	status, err := d.query(ctx, "${Status}", pkg)
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(status, "install ok installed"), nil
}

// InstalledVersion returns the full Debian version string or empty if not installed.
func (d *DebianDriver) InstalledVersion(ctx context.Context, pkg string) (string, error) {
	installed, err := d.IsInstalled(ctx, pkg)
	if err != nil || !installed {
		return "", err
	}
	return d.query(ctx, "${Version}", pkg)
}

func (d *DebianDriver) query(ctx context.Context, format, pkg string) (string, error) {
	out, err := d.Runner.Output(ctx, utils.Cmd{Name: "dpkg-query", Args: []string{"-W", "-f", format, pkg}})
	if err != nil {
		var te *utils.ToolError
		if errors.As(err, &te) && te.ExitCode == 1 {
			// package not known to dpkg
			return "", nil
		}
		return "", fmt.Errorf("dpkg-query %s: %w", pkg, err)
	}
	return strings.TrimSpace(out), nil
}
