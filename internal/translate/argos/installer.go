package argos

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multirag/internal/translate"
)

const metadataFile = "metadata.json"

// Installer downloads .argosmodel archives into an argos-translate package
// data dir. Each archive's package directory lands directly under dir, where
// argos and LibreTranslate look for it.
type Installer struct {
	dir    string
	client *http.Client
}

func NewInstaller(dir string, timeout time.Duration) *Installer {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Installer{dir: dir, client: &http.Client{Timeout: timeout}}
}

type metadata struct {
	FromCode       string `json:"from_code"`
	ToCode         string `json:"to_code"`
	PackageVersion string `json:"package_version"`
}

func readMetadata(pkgDir string) (metadata, error) {
	var m metadata
	data, err := os.ReadFile(filepath.Join(pkgDir, metadataFile))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// find returns the package directory under dir serving pkg's pair.
// Hidden entries are work in progress and never match.
func (in *Installer) find(pkg translate.Package) (string, bool) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(in.dir, e.Name())
		m, err := readMetadata(path)
		if err == nil && m.FromCode == pkg.From && m.ToCode == pkg.To {
			return path, true
		}
	}
	return "", false
}

// Installed reports whether a package for pkg's pair is present, whether this
// installer or argos itself put it there.
func (in *Installer) Installed(pkg translate.Package) bool {
	_, ok := in.find(pkg)
	return ok
}

// Install downloads and unpacks pkg. It is a no-op when pkg is already installed.
// The package directory is renamed into place only once fully extracted.
func (in *Installer) Install(ctx context.Context, pkg translate.Package) error {
	if in.Installed(pkg) {
		return nil
	}
	if len(pkg.Links) == 0 {
		return fmt.Errorf("package %s_%s has no download links", pkg.From, pkg.To)
	}
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return err
	}
	archive, err := os.CreateTemp(in.dir, ".download-*.argosmodel")
	if err != nil {
		return err
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	var lastErr error
	for _, link := range pkg.Links {
		if lastErr = in.download(ctx, link, archive); lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if lastErr != nil {
		return lastErr
	}

	staging, err := os.MkdirTemp(in.dir, ".staging-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := unzip(archive.Name(), staging); err != nil {
		return fmt.Errorf("unpack %s_%s: %w", pkg.From, pkg.To, err)
	}
	src, name, err := packageRoot(staging, pkg)
	if err != nil {
		return fmt.Errorf("unpack %s_%s: %w", pkg.From, pkg.To, err)
	}
	target := filepath.Join(in.dir, name)
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return os.Rename(src, target)
}

// packageRoot locates the extracted package directory. Archives normally hold
// one top-level directory such as translate-en_fr-1_9; a flat archive is
// given that name.
func packageRoot(staging string, pkg translate.Package) (string, string, error) {
	src, name := staging, packageName(pkg)
	if _, err := os.Stat(filepath.Join(staging, metadataFile)); err != nil {
		entries, err := os.ReadDir(staging)
		if err != nil {
			return "", "", err
		}
		var dirs []os.DirEntry
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") && e.Name() != "__MACOSX" {
				dirs = append(dirs, e)
			}
		}
		if len(dirs) != 1 {
			return "", "", errors.New("archive has no package directory")
		}
		src, name = filepath.Join(staging, dirs[0].Name()), dirs[0].Name()
	}
	m, err := readMetadata(src)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", metadataFile, err)
	}
	if m.FromCode != pkg.From || m.ToCode != pkg.To {
		return "", "", fmt.Errorf("archive holds %s_%s", m.FromCode, m.ToCode)
	}
	return src, name, nil
}

func packageName(pkg translate.Package) string {
	name := "translate-" + pkg.From + "_" + pkg.To
	if pkg.Version != "" {
		name += "-" + strings.ReplaceAll(pkg.Version, ".", "_")
	}
	return name
}

func (in *Installer) download(ctx context.Context, link string, dst *os.File) error {
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := dst.Truncate(0); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: %s", link, resp.Status)
	}
	_, err = io.Copy(dst, resp.Body)
	return err
}

func unzip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()
	root := filepath.Clean(dst) + string(os.PathSeparator)
	for _, f := range r.File {
		path := filepath.Join(dst, f.Name)
		if !strings.HasPrefix(path, root) {
			return errors.New("illegal path in archive: " + f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := extract(f, path); err != nil {
			return err
		}
	}
	return nil
}

func extract(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
