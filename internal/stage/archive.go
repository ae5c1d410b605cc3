package stage

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// ArchiveTarXz packs the tree under srcDir into an xz-compressed tarball at
// dest. Entry names are relative to srcDir and sorted.
func ArchiveTarXz(fsys afero.Fs, srcDir, dest string) (err error) {
	if err := fsys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := fsys.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	xzw, err := xz.NewWriter(f)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(xzw)

	walkErr := afero.Walk(fsys, srcDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil || rel == "." {
			return err
		}
		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = readlink(fsys, p); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "root", "root"
		hdr.Uid, hdr.Gid = 0, 0
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		in, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("archiving %s: %w", srcDir, walkErr)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return xzw.Close()
}

// ListTarXz returns the entry names of an archive written by ArchiveTarXz.
func ListTarXz(fsys afero.Fs, src string) ([]string, error) {
	f, err := fsys.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}
	tr := tar.NewReader(xzr)
	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src, err)
		}
		names = append(names, hdr.Name)
	}
}

func readlink(fsys afero.Fs, p string) (string, error) {
	lr, ok := fsys.(afero.LinkReader)
	if !ok {
		return "", &os.LinkError{Op: "readlink", Old: p, Err: afero.ErrNoReadlink}
	}
	return lr.ReadlinkIfPossible(p)
}
