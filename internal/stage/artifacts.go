package stage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// artifactExts are the language bindings published next to the package.
var artifactExts = []string{".egg", ".whl", ".jar"}

// skipArtifact drops test, source and javadoc jars.
func skipArtifact(name string) bool {
	for _, suffix := range []string{"-tests.jar", "-sources.jar", "-javadoc.jar"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// CollectArtifacts copies Python eggs and wheels and Java jars from buildDir
// into outDir and returns the copied paths. Either dir empty disables it.
func (s *Stager) CollectArtifacts(buildDir, outDir string) ([]string, error) {
	if buildDir == "" || outDir == "" {
		return nil, nil
	}
	if ok, err := afero.DirExists(s.Fs, buildDir); err != nil || !ok {
		return nil, err
	}
	var found []string
	err := afero.Walk(s.Fs, buildDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p == outDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasArtifactExt(info.Name()) || skipArtifact(info.Name()) {
			return nil
		}
		found = append(found, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for artifacts: %w", buildDir, err)
	}

	copied := make([]string, 0, len(found))
	for _, src := range found {
		dst := filepath.Join(outDir, filepath.Base(src))
		data, err := afero.ReadFile(s.Fs, src)
		if err != nil {
			return nil, err
		}
		if err := s.write(dst, data, 0o644); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func hasArtifactExt(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range artifactExts {
		if ext == want {
			return true
		}
	}
	return false
}
