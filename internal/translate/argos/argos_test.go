package argos

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/domain"
	"multirag/internal/translate"
)

func modelArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIndex_LookupCachesUntilRefresh(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(`[
			{"from_code":"en","to_code":"fr","package_version":"1.9","links":["http://x/en_fr.argosmodel"]},
			{"from_code":"fr","to_code":"en","package_version":"1.9","links":["http://x/fr_en.argosmodel"]}
		]`))
	}))
	defer srv.Close()

	ctx := context.Background()
	idx := NewIndex(srv.URL, 0)
	pkg, err := idx.Lookup(ctx, domain.LanguagePair{From: "en", To: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "1.9", pkg.Version)
	assert.Equal(t, []string{"http://x/en_fr.argosmodel"}, pkg.Links)

	_, err = idx.Lookup(ctx, domain.LanguagePair{From: "fr", To: "en"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load())

	_, err = idx.Lookup(ctx, domain.LanguagePair{From: "en", To: "tr"})
	assert.ErrorIs(t, err, translate.ErrPackageNotFound)

	idx.Refresh()
	_, err = idx.Lookup(ctx, domain.LanguagePair{From: "en", To: "fr"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestIndex_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewIndex(srv.URL, 0).Lookup(context.Background(), domain.LanguagePair{From: "en", To: "fr"})
	assert.Error(t, err)
}

func serveArchive(t *testing.T, archive []byte, downloads *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if downloads != nil {
			downloads.Add(1)
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const enFrMetadata = `{"from_code":"en","to_code":"fr","package_version":"1.9"}`

func TestInstaller_UnpacksPackageDirectoryIntoDataDir(t *testing.T) {
	archive := modelArchive(t, map[string]string{
		"translate-en_fr-1_9/metadata.json":   enFrMetadata,
		"translate-en_fr-1_9/model/model.bin": "weights",
	})
	var downloads atomic.Int32
	srv := serveArchive(t, archive, &downloads)

	dir := t.TempDir()
	in := NewInstaller(dir, 0)
	pkg := translate.Package{From: "en", To: "fr", Version: "1.9", Links: []string{srv.URL + "/en_fr.argosmodel"}}
	assert.False(t, in.Installed(pkg))

	require.NoError(t, in.Install(context.Background(), pkg))
	assert.True(t, in.Installed(pkg))
	data, err := os.ReadFile(filepath.Join(dir, "translate-en_fr-1_9", "model", "model.bin"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	_, err = os.Stat(filepath.Join(dir, "translate-en_fr-1_9", "metadata.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging and download files are cleaned up")

	require.NoError(t, in.Install(context.Background(), pkg))
	assert.Equal(t, int32(1), downloads.Load())
}

func TestInstaller_FlatArchiveGetsPackageName(t *testing.T) {
	archive := modelArchive(t, map[string]string{
		"metadata.json": `{"from_code":"hi","to_code":"en"}`,
		"model/a.bin":   "a",
	})
	srv := serveArchive(t, archive, nil)

	dir := t.TempDir()
	in := NewInstaller(dir, 0)
	pkg := translate.Package{From: "hi", To: "en", Version: "1.1", Links: []string{srv.URL + "/broken", srv.URL + "/ok"}}
	require.NoError(t, in.Install(context.Background(), pkg))
	assert.True(t, in.Installed(pkg))
	_, err := os.Stat(filepath.Join(dir, "translate-hi_en-1_1", "metadata.json"))
	assert.NoError(t, err)
}

func TestInstaller_RecognisesPackagesInstalledByArgos(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "translate-en_fr-1_8")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "metadata.json"), []byte(enFrMetadata), 0o644))

	in := NewInstaller(dir, 0)
	assert.True(t, in.Installed(translate.Package{From: "en", To: "fr"}))
	assert.False(t, in.Installed(translate.Package{From: "fr", To: "en"}))
}

func TestInstaller_RejectsBadArchives(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"zip slip", map[string]string{"../evil.txt": "x"}},
		{"no metadata", map[string]string{"m/a.txt": "a"}},
		{"wrong pair", map[string]string{"translate-tr_en-1_0/metadata.json": `{"from_code":"en","to_code":"tr"}`}},
		{"two packages", map[string]string{
			"a/metadata.json": `{"from_code":"tr","to_code":"en"}`,
			"b/metadata.json": `{"from_code":"tr","to_code":"en"}`,
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveArchive(t, modelArchive(t, tc.files), nil)
			dir := t.TempDir()
			in := NewInstaller(dir, 0)
			pkg := translate.Package{From: "tr", To: "en", Links: []string{srv.URL}}
			assert.Error(t, in.Install(context.Background(), pkg))
			assert.False(t, in.Installed(pkg))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestInstaller_NoLinks(t *testing.T) {
	err := NewInstaller(t.TempDir(), 0).Install(context.Background(), translate.Package{From: "en", To: "hi"})
	assert.Error(t, err)
}
