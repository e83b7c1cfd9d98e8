package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// server serves the files returned by build, which receives the server
// URL. Paths not in files return 404.
func server(t *testing.T, build func(base string) map[string][]byte) *httptest.Server {
	t.Helper()
	var (
		mu    sync.Mutex
		files map[string][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		data, ok := files[r.URL.Path]
		mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	mu.Lock()
	files = build(srv.URL)
	mu.Unlock()
	t.Cleanup(srv.Close)
	return srv
}

func catalogFiles(t *testing.T, base string) map[string][]byte {
	return map[string][]byte{
		"/components.yml": []byte(`
- name: ETGMod
  versions:
    - key: "1"
      name: ETGMod 1
      url: ` + base + `/etgmod-1.zip
    - key: "2"
      name: ETGMod 2
      url: ` + base + `/etgmod-2.zip
- name: Remote
  versions_url: ` + base + `/remote.yml
`),
		"/remote.yml": []byte(`
- key: r1
  name: Remote 1
  url: ` + base + `/missing.zip
`),
		"/gungeon.yml": []byte("latest_version: 2.1.9\nviable_patch_targets: [Assembly-CSharp]\n"),
		"/etgmod-1.zip": zipBytes(t, map[string]string{
			"ETGMod.dll":           "dll",
			"Resources/sprite.png": "png",
			"../escape.txt":        "nope",
		}),
	}
}

func newTestCatalog(t *testing.T, opts Options) (*Catalog, *httptest.Server) {
	t.Helper()
	srv := server(t, func(base string) map[string][]byte { return catalogFiles(t, base) })

	opts.BaseURL = srv.URL
	c, err := NewCatalog(context.Background(), opts)
	require.NoError(t, err)
	return c, srv
}

func TestCatalogLoadsComponents(t *testing.T) {
	t.Parallel()

	c, _ := newTestCatalog(t, Options{})
	comps := c.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, "ETGMod", comps[0].Name)
	assert.Equal(t, "Remote", comps[1].Name)

	remote := c.Component("Remote")
	require.NotNil(t, remote)
	assert.Nil(t, remote.Versions)

	versions, err := c.Versions(context.Background(), remote)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "r1", versions[0].Key)

	game, err := c.GameMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.1.9", game.LatestVersion)
}

func TestCatalogMergesCustomFiles(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "custom-components.yml")
	require.NoError(t, os.WriteFile(custom, []byte(`
- name: ETGMod
  versions:
    - key: "2"
      name: ETGMod 2 local
      path: /tmp/etgmod-2.zip
    - key: "3"
      name: ETGMod 3 local
      path: /tmp/etgmod-3.zip
- name: MyMod
  versions:
    - key: dev
      name: MyMod dev
      path: /tmp/mymod.zip
`), 0o644))

	c, _ := newTestCatalog(t, Options{DefaultCustomFile: filepath.Join(t.TempDir(), "missing.yml"), CustomFiles: []string{custom}})

	etgmod := c.Component("ETGMod")
	require.NotNil(t, etgmod)
	require.Len(t, etgmod.Versions, 3)
	assert.Equal(t, "ETGMod 2 local", etgmod.FindVersion("2").Name)
	assert.True(t, etgmod.FindVersion("3").Local())
	assert.NotNil(t, c.Component("MyMod"))
}

func TestCatalogMissingCustomFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "typo.yml")
	_, err := NewCatalog(context.Background(), Options{Offline: true, CustomFiles: []string{missing}})
	require.Error(t, err)

	var missingErr *MissingComponentFileError
	require.True(t, errors.As(err, &missingErr), "want *MissingComponentFileError, got %T", err)
	assert.Equal(t, missing, missingErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)
}

func TestCatalogOffline(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(context.Background(), Options{BaseURL: "http://127.0.0.1:1", Offline: true})
	require.NoError(t, err)
	assert.Empty(t, c.Components())
}

func TestCatalogMissingComponentList(t *testing.T) {
	t.Parallel()

	srv := server(t, func(string) map[string][]byte { return nil })
	_, err := NewCatalog(context.Background(), Options{BaseURL: srv.URL})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://modthegungeon.eu/reloaded", BaseURL(false))
	assert.Equal(t, "http://modthegungeon.eu/reloaded", BaseURL(true))
}

func TestDownloadAndExtract(t *testing.T) {
	t.Parallel()

	c, _ := newTestCatalog(t, Options{})
	version := c.Component("ETGMod").FindVersion("1")

	dest := filepath.Join(t.TempDir(), "dl")
	build, err := c.Download(context.Background(), version, dest)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "DOWNLOAD.zip"))
	assert.FileExists(t, filepath.Join(build.ExtractedPath, "ETGMod.dll"))
	assert.FileExists(t, filepath.Join(build.ExtractedPath, "Resources", "sprite.png"))
	assert.NoFileExists(t, filepath.Join(dest, "escape.txt"))

	require.NoError(t, build.Close())
	assert.NoDirExists(t, dest)
}

func TestDownloadNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestCatalog(t, Options{})
	dest := filepath.Join(t.TempDir(), "dl")
	_, err := c.Download(context.Background(), c.Component("ETGMod").FindVersion("2"), dest)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoDirExists(t, dest)
}

func TestDownloadLocal(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "local.zip")
	require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{"Local.mm.dll": "patch"}), 0o644))

	c, err := NewCatalog(context.Background(), Options{Offline: true})
	require.NoError(t, err)

	build, err := c.Download(context.Background(), &metadata.Version{Key: "dev", Name: "Local", Path: archive}, filepath.Join(t.TempDir(), "dl"))
	require.NoError(t, err)
	defer build.Close()
	assert.FileExists(t, filepath.Join(build.ExtractedPath, "Local.mm.dll"))
}

func TestDownloadRejectsInvalidVersion(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(context.Background(), Options{Offline: true})
	require.NoError(t, err)
	_, err = c.Download(context.Background(), &metadata.Version{Key: "x"}, t.TempDir())
	require.Error(t, err)
}
