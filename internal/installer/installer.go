// Package installer runs whole operations against a game installation:
// download, install, uninstall and patch info.
package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/mtg-installer/internal/autodetect"
	"github.com/caedis/mtg-installer/internal/backup"
	"github.com/caedis/mtg-installer/internal/component"
	"github.com/caedis/mtg-installer/internal/downloader"
	"github.com/caedis/mtg-installer/internal/exepatch"
	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/game"
	"github.com/caedis/mtg-installer/internal/gameversion"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
	"github.com/caedis/mtg-installer/internal/patchengine"
	"github.com/caedis/mtg-installer/internal/patcher"
	"github.com/caedis/mtg-installer/internal/plugins"
)

// InstalledListFile records, inside the managed directory, what the last
// install put there. Restoring the managed directory removes it.
const InstalledListFile = "mtg-installed.txt"

// LegacyPatchInfo is reported for games modified by the old ETGMod installer.
const LegacyPatchInfo = "ETGMod Legacy"

// Options configure a Frontend.
type Options struct {
	SkipVersionChecks bool
	ForceBackup       bool
	ForceHTTP         bool
	LeavePatchDLLs    bool
	Offline           bool
	// DefaultComponentFile is merged into the catalog when it exists.
	DefaultComponentFile string
	// CustomComponentFiles are merged after it. Each one must exist.
	CustomComponentFiles []string
	// ExecutablePath is used when an operation is not given one. Empty
	// means autodetect.
	ExecutablePath string
	// PatchEngine patches managed assemblies. Nil means a Process without
	// a command, which fails as soon as a patch is needed.
	PatchEngine patchengine.Engine

	Platform plugins.Platform
	Finder   *autodetect.Finder
	// BaseURL and Client override the catalog location and HTTP client.
	BaseURL  string
	Client   *http.Client
	Progress bool
}

// FailedError is a fatal, user facing installation failure.
type FailedError struct {
	Msg string
	Err error
}

func (e *FailedError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *FailedError) Unwrap() error { return e.Err }

func failf(format string, args ...any) error {
	return &FailedError{Msg: fmt.Sprintf(format, args...)}
}

func fail(err error, format string, args ...any) error {
	var failed *FailedError
	if errors.As(err, &failed) {
		return err
	}
	return &FailedError{Msg: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// Request names a component and optionally a version key. An empty
// version means the newest one.
type Request struct {
	Name    string
	Version string
}

func (r Request) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// ParseRequests parses a list like "ETGMod@0.3.0;Other". Entries are
// separated by ';' or ','.
func ParseRequests(s string) ([]Request, error) {
	var reqs []Request
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, version, _ := strings.Cut(part, "@")
		name, version = strings.TrimSpace(name), strings.TrimSpace(version)
		if name == "" {
			return nil, fmt.Errorf("invalid component %q: missing name", part)
		}
		reqs = append(reqs, Request{Name: name, Version: version})
	}
	if len(reqs) == 0 {
		return nil, errors.New("no components given")
	}
	return reqs, nil
}

// Frontend performs operations with a fixed set of options.
type Frontend struct {
	opts    Options
	catalog *downloader.Catalog
}

// New returns a Frontend. The component catalog is loaded on first use.
func New(opts Options) *Frontend {
	if opts.Platform == plugins.Unknown {
		opts.Platform = autodetect.Platform()
	}
	if opts.Finder == nil {
		opts.Finder = autodetect.NewFinder()
		opts.Finder.Platform = opts.Platform
	}
	if opts.PatchEngine == nil {
		opts.PatchEngine = &patchengine.Process{}
	}
	return &Frontend{opts: opts}
}

// Catalog returns the component catalog, loading it if needed.
func (f *Frontend) Catalog(ctx context.Context) (*downloader.Catalog, error) {
	if f.catalog != nil {
		return f.catalog, nil
	}
	c, err := downloader.NewCatalog(ctx, downloader.Options{
		BaseURL:     f.opts.BaseURL,
		ForceHTTP:   f.opts.ForceHTTP,
		Offline:     f.opts.Offline,
		CustomFiles: f.opts.CustomComponentFiles,
		Client:      f.opts.Client,
		Progress:    f.opts.Progress,

		DefaultCustomFile: f.opts.DefaultComponentFile,
	})
	if err != nil {
		var missing *downloader.MissingComponentFileError
		if errors.As(err, &missing) {
			return nil, &FailedError{Msg: missing.Error(), Err: err}
		}
		if downloader.IsNotFound(err) {
			return nil, fail(err, "Error 404 while fetching the component list")
		}
		return nil, fail(err, "Couldn't load the component list")
	}
	f.catalog = c
	return c, nil
}

// ExePath picks the executable: suggestion, then the configured path, then
// autodetection.
func (f *Frontend) ExePath(ctx context.Context, suggestion string) (string, error) {
	if suggestion != "" {
		return suggestion, nil
	}
	if f.opts.ExecutablePath != "" {
		return f.opts.ExecutablePath, nil
	}
	if path := f.opts.Finder.ExePath(ctx); path != "" {
		return path, nil
	}
	return "", failf("Can't find the executable - please provide a path to %s manually", autodetect.ExeName(f.opts.Platform, f.opts.Finder.Arch))
}

func (f *Frontend) openGame(ctx context.Context, exePath string) (*game.Installation, error) {
	exePath, err := f.ExePath(ctx, exePath)
	if err != nil {
		return nil, err
	}
	inst, err := game.Open(exePath, f.opts.Platform)
	if err != nil {
		return nil, fail(err, "Invalid game installation")
	}
	return inst, nil
}

type resolved struct {
	component *metadata.Component
	version   *metadata.Version
}

func (f *Frontend) resolve(ctx context.Context, req Request) (resolved, error) {
	catalog, err := f.Catalog(ctx)
	if err != nil {
		return resolved{}, err
	}
	comp := catalog.Component(strings.TrimSpace(req.Name))
	if comp == nil {
		return resolved{}, failf("Component %s doesn't exist in the list of components.", req.Name)
	}
	versions, err := catalog.Versions(ctx, comp)
	if err != nil {
		return resolved{}, fail(err, "Couldn't load the versions of %s", comp.Name)
	}
	if len(versions) == 0 {
		return resolved{}, failf("Component %s has no versions.", comp.Name)
	}
	if req.Version == "" {
		return resolved{comp, &versions[0]}, nil
	}
	v := comp.FindVersion(strings.TrimSpace(req.Version))
	if v == nil {
		return resolved{}, failf("Version %s of component %s doesn't exist.", req.Version, comp.Name)
	}
	return resolved{comp, v}, nil
}

func (f *Frontend) download(ctx context.Context, r resolved, dest string) (*downloader.Build, error) {
	catalog, err := f.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	build, err := catalog.Download(ctx, r.version, dest)
	if err != nil {
		if downloader.IsNotFound(err) {
			return nil, &FailedError{Msg: fmt.Sprintf("Error 404 while downloading version %s of component %s.", r.version.Name, r.component.Name), Err: err}
		}
		return nil, fail(err, "Unhandled error occurred while downloading version %s of component %s", r.version.Name, r.component.Name)
	}
	return build, nil
}

// Download fetches and extracts one version into a directory named after
// the version's display name, under dir. An existing directory is an error
// unless force is set, in which case it is replaced.
func (f *Frontend) Download(ctx context.Context, req Request, dir string, force bool) (*downloader.Build, error) {
	r, err := f.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	name, err := r.version.DirName()
	if err != nil {
		return nil, fail(err, "Can't download version of component %s", r.component.Name)
	}
	dest := filepath.Join(dir, name)
	if fsutil.DirExists(dest) {
		if !force {
			return nil, failf("Version is already downloaded in the '%s' folder (use --force to redownload)", dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return nil, fail(err, "Couldn't remove %s", dest)
		}
	}

	logging.Infof("OPERATION: Download. Target: %s\n", dest)
	build, err := f.download(ctx, r, dest)
	if err != nil {
		return nil, err
	}
	logging.Infoln("OPERATION COMPLETED SUCCESSFULLY")
	return build, nil
}

// Install installs reqs, in order, into the game at exePath.
func (f *Frontend) Install(ctx context.Context, reqs []Request, exePath string) error {
	inst, err := f.openGame(ctx, exePath)
	if err != nil {
		return err
	}
	logging.Infof("OPERATION: Install. Target: %s\n", inst.ExePath)

	gameVersion, err := inst.Version()
	if err != nil {
		return fail(err, "Couldn't detect the game version")
	}

	var selected []resolved
	seen := make(map[string]bool)
	for _, req := range reqs {
		r, err := f.resolve(ctx, req)
		if err != nil {
			return err
		}
		if seen[r.component.Name] {
			return failf("Duplicate %s component.", r.component.Name)
		}
		seen[r.component.Name] = true
		selected = append(selected, r)
	}

	catalog, err := f.Catalog(ctx)
	if err != nil {
		return err
	}
	meta, err := catalog.GameMetadata(ctx)
	if err != nil {
		return fail(err, "Couldn't load the game metadata")
	}

	builds := make([]*downloader.Build, 0, len(selected))
	defer func() {
		for _, b := range builds {
			if err := b.Close(); err != nil {
				logging.Debugf("Verbose: removing %s failed: %v\n", b.Path, err)
			}
		}
	}()
	for _, r := range selected {
		dest, err := downloader.TempDestination()
		if err != nil {
			return fail(err, "Couldn't prepare the download")
		}
		build, err := f.download(ctx, r, dest)
		if err != nil {
			os.RemoveAll(dest)
			return err
		}
		builds = append(builds, build)
	}

	// Everything that can reject the install runs before the game is touched.
	comps := make([]*component.Installable, 0, len(selected))
	for i, r := range selected {
		c, err := component.Classify(r.component.Name, r.version.Key, r.version.Name, builds[i].ExtractedPath, r.version.SupportedGungeon)
		if err != nil {
			return fail(err, "Reading component %s failed", r.component.Name)
		}
		if !f.opts.SkipVersionChecks {
			if err := checkVersion(c, gameVersion); err != nil {
				return err
			}
		}
		comps = append(comps, c)
	}

	backups := backup.New(inst, meta)
	if !f.opts.ForceBackup {
		if err := backups.Restore(false); err != nil {
			return fail(err, "Restoring the backup failed")
		}
	}
	if err := backups.Backup(f.opts.ForceBackup); err != nil {
		return fail(err, "Backing up the game failed")
	}

	if needsExePatch(selected) {
		if err := patchExe(inst, meta); err != nil {
			return fail(err, "Patching the executable failed")
		}
	}

	orchestrator := &patcher.Orchestrator{Engine: f.opts.PatchEngine, LeavePatchAssemblies: f.opts.LeavePatchDLLs}
	var installed []string
	for _, c := range comps {
		if err := installComponent(ctx, inst, meta, orchestrator, c); err != nil {
			return err
		}
		installed = append(installed, fmt.Sprintf("%s %s", c.Name(), c.VersionName))
	}

	if err := writeInstalledList(inst, installed); err != nil {
		return fail(err, "Recording installed components failed")
	}
	logging.Infoln("OPERATION COMPLETED SUCCESSFULLY")
	return nil
}

func installComponent(ctx context.Context, inst *game.Installation, meta *metadata.GameMetadata, o *patcher.Orchestrator, c *component.Installable) error {
	logging.Infof("Installing %s %s\n", c.Name(), c.VersionName)

	if err := c.InstallFiles(inst.ManagedDir); err != nil {
		return fail(err, "Installing files of %s failed", c.Name())
	}
	if err := o.Apply(ctx, inst.ManagedDir, c, meta.ViablePatchTargets); err != nil {
		return fail(err, "Patching %s failed", c.Name())
	}

	if c.Plugins != "" {
		logging.Infof("  Installing native plugins of %s\n", c.Name())
		pi, err := plugins.New(inst.Platform)
		if err != nil {
			return fail(err, "Installing plugins of %s failed", c.Name())
		}
		if err := pi.Copy(c.Plugins, inst.PluginsDir); err != nil {
			return fail(err, "Installing plugins of %s failed", c.Name())
		}
	}
	return nil
}

func checkVersion(c *component.Installable, gameVersion string) error {
	res, err := c.ValidateGameVersion(gameVersion)
	if err != nil {
		return fail(err, "Version check failed")
	}
	switch res {
	case gameversion.Older:
		return failf("Version mismatch: your installation of the game appears to be older than the version %s %s supports (%s vs %s). You can update or skip version checks at your own responsibility.", c.Name(), c.VersionName, gameVersion, c.SupportedVersion)
	case gameversion.Newer:
		return failf("Version mismatch: your installation of the game appears to be newer than the version %s %s supports (%s vs %s). You can skip version checks at your own responsibility.", c.Name(), c.VersionName, gameVersion, c.SupportedVersion)
	}
	return nil
}

func needsExePatch(selected []resolved) bool {
	for _, r := range selected {
		if r.version.RequiresExePatch {
			return true
		}
	}
	return false
}

// patchExe rewrites the executable through a temporary file next to it.
func patchExe(inst *game.Installation, meta *metadata.GameMetadata) error {
	if len(meta.ExeSubstitutions) == 0 {
		return nil
	}
	logging.Infoln("Patching executable to substitute symbols")

	tmp := inst.PatchedExePath()
	if err := exepatch.PatchFile(inst.ExePath, tmp, meta.ByteSubstitutions()); err != nil {
		return err
	}
	logging.Debugf("Verbose: replacing executable\n")
	if err := os.Remove(inst.ExePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmp, inst.ExePath)
}

func writeInstalledList(inst *game.Installation, installed []string) error {
	path := filepath.Join(inst.ManagedDir, InstalledListFile)
	return os.WriteFile(path, []byte(strings.Join(installed, "\n")+"\n"), 0o644)
}

// Uninstall restores the backup, returning the game to its vanilla state.
func (f *Frontend) Uninstall(ctx context.Context, exePath string) error {
	inst, err := f.openGame(ctx, exePath)
	if err != nil {
		return err
	}
	logging.Infof("OPERATION: Uninstall. Target: %s\n", inst.ExePath)

	if err := backup.New(inst, nil).Restore(true); err != nil {
		return fail(err, "Restoring the backup failed")
	}
	logging.Infoln("OPERATION COMPLETED SUCCESSFULLY")
	return nil
}

// PatchInfo lists what is installed in the game at exePath.
func (f *Frontend) PatchInfo(ctx context.Context, exePath string) ([]string, error) {
	inst, err := f.openGame(ctx, exePath)
	if err != nil {
		return nil, err
	}
	if inst.HasLegacyMod() {
		return []string{LegacyPatchInfo}, nil
	}

	data, err := os.ReadFile(filepath.Join(inst.ManagedDir, InstalledListFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fail(err, "Reading the installed component list failed")
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
