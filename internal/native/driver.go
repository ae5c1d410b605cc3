// Package native queries the host package database.
package native

import (
	"context"
	"fmt"

	"github.com/vigiglobe/mesos-deb-packaging/internal/native/apt"
	"github.com/vigiglobe/mesos-deb-packaging/internal/native/rpm"
	"github.com/vigiglobe/mesos-deb-packaging/internal/platform"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

type Driver interface {
	Name() string
	IsInstalled(ctx context.Context, pkg string) (bool, error)
	InstalledVersion(ctx context.Context, pkg string) (string, error)
}

// GetDriverForPlatform picks the package database of the platform's
// packaging family.
func GetDriverForPlatform(p platform.Platform, r utils.Runner) (Driver, error) {
	switch p.PackagingFamily() {
	case platform.PackagingDebian:
		return apt.New(r), nil
	case platform.PackagingRHEL:
		return rpm.New(r), nil
	default:
		return nil, fmt.Errorf("no package database driver for %s", p.ID())
	}
}

// FirstInstalled returns the first of candidates that is installed. Query
// errors abort the search.
func FirstInstalled(ctx context.Context, d Driver, candidates []string) (string, bool, error) {
	for _, pkg := range candidates {
		ok, err := d.IsInstalled(ctx, pkg)
		if err != nil {
			return "", false, err
		}
		if ok {
			return pkg, true, nil
		}
	}
	return "", false, nil
}
