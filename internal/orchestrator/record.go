package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/pkgtool"
)

// record writes SHA256SUMS for every output that exists and a YAML build
// manifest next to them.
func (o *Orchestrator) record(ctx context.Context, r *run) error {
	outDir := r.opts.outDir()
	outputs := append([]string{r.result.Package, r.result.Archive}, r.result.Artifacts...)

	var sums strings.Builder
	for _, p := range outputs {
		if p == "" {
			continue
		}
		if ok, _ := afero.Exists(o.Fs, p); !ok {
			logging.Step(ctx, "record").Debug("Skipping missing output", "path", p)
			continue
		}
		sum, err := fileSHA256(o.Fs, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sums, "%s  %s\n", sum, filepath.Base(p))
	}
	sumsPath := filepath.Join(outDir, "SHA256SUMS")
	if err := afero.WriteFile(o.Fs, sumsPath, []byte(sums.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", sumsPath, err)
	}
	r.result.Checksums = sumsPath

	manifest := filepath.Join(outDir, fmt.Sprintf("%s-%s.build.yml", r.opts.Name, pkgtool.PackageVersion(r.result.Plan.Version)))
	data, err := yaml.Marshal(r.result)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := afero.WriteFile(o.Fs, manifest, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", manifest, err)
	}
	r.result.Manifest = manifest
	return nil
}

func fileSHA256(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("fileSHA256: open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fileSHA256: read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
