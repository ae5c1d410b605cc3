package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// MacProductName is the only product name sw_vers may report.
const MacProductName = "Mac OS X"

var osReleaseFiles = []string{"/etc/os-release", "/usr/lib/os-release"}

var legacyReleaseFiles = []string{
	"/etc/redhat-release",
	"/etc/centos-release",
	"/etc/fedora-release",
	"/etc/system-release",
}

// "CentOS release 6.5 (Final)", "Red Hat Enterprise Linux Server release 6.5 (Santiago)"
var legacyRelease = regexp.MustCompile(`^(.+?)\s+release\s+(\S+)(?:\s+\((.*)\))?\s*$`)

// Probe detects the host platform from OS descriptor files or, on Apple
// hosts, the sw_vers tool.
type Probe struct {
	Fs     afero.Fs
	Runner utils.Runner
}

func NewProbe(r utils.Runner) *Probe {
	return &Probe{Fs: afero.NewOsFs(), Runner: r}
}

type source func(ctx context.Context) (Platform, bool, error)

// Detect tries the structured os-release descriptor, then legacy release
// files, then sw_vers. The first source that identifies the host wins.
func (p *Probe) Detect(ctx context.Context) (Platform, error) {
	sources := []source{p.fromOSRelease, p.fromLegacyRelease, p.fromSwVers}
	for _, src := range sources {
		plat, ok, err := src(ctx)
		if err != nil {
			return Platform{}, err
		}
		if ok {
			return plat, nil
		}
	}
	return Platform{}, fmt.Errorf("%w: no os-release, legacy release file or sw_vers found", ErrUnknownPlatform)
}

func (p *Probe) fromOSRelease(_ context.Context) (Platform, bool, error) {
	for _, path := range osReleaseFiles {
		data, err := afero.ReadFile(p.Fs, path)
		if err != nil {
			continue
		}
		fields := parseKeyValues(data)
		id := fields["ID"]
		if id == "" {
			continue
		}
		if Normalize(id) == "rhel" {
			id = FamilyRedHat
		}
		return New(id, fields["VERSION_ID"]), true, nil
	}
	return Platform{}, false, nil
}

func (p *Probe) fromLegacyRelease(_ context.Context) (Platform, bool, error) {
	for _, path := range legacyReleaseFiles {
		data, err := afero.ReadFile(p.Fs, path)
		if err != nil {
			continue
		}
		line, _, _ := strings.Cut(string(data), "\n")
		m := legacyRelease.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		family := m[1]
		if strings.HasPrefix(family, "Red Hat") {
			family = FamilyRedHat
		}
		return New(family, m[2]), true, nil
	}
	return Platform{}, false, nil
}

func (p *Probe) fromSwVers(ctx context.Context) (Platform, bool, error) {
	if p.Runner == nil {
		return Platform{}, false, nil
	}
	name, err := p.Runner.Output(ctx, utils.Cmd{Name: "sw_vers", Args: []string{"-productName"}})
	if err != nil {
		var te *utils.ToolError
		if errors.As(err, &te) && te.ExitCode == 127 {
			return Platform{}, false, nil
		}
		return Platform{}, false, fmt.Errorf("sw_vers: %w", err)
	}
	name = strings.TrimSpace(name)
	if name != MacProductName {
		return Platform{}, false, fmt.Errorf("%w: sw_vers reports product %q, expected %q", ErrUnknownPlatform, name, MacProductName)
	}
	ver, err := p.Runner.Output(ctx, utils.Cmd{Name: "sw_vers", Args: []string{"-productVersion"}})
	if err != nil {
		return Platform{}, false, fmt.Errorf("sw_vers: %w", err)
	}
	return New(FamilyMacOSX, strings.TrimSpace(ver)), true, nil
}

func parseKeyValues(data []byte) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return out
}
