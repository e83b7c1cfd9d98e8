// Package component sorts the files of an extracted component and copies
// them to where the game expects them.
package component

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/gameversion"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
)

const (
	// PatchAssemblySuffix marks an assembly that patches a managed target.
	// It must be tested before the plain .dll suffix.
	PatchAssemblySuffix = ".mm.dll"
	MetadataFile        = "metadata.yml"
	PluginsDir          = "Plugins"
)

// Installable is an extracted component version sorted by file kind.
type Installable struct {
	catalogName      string
	VersionKey       string
	VersionName      string
	ExtractedPath    string
	SupportedVersion string

	Assemblies      []string
	PatchAssemblies []string
	OtherFiles      []string
	Dirs            []string
	// Plugins is the absolute path of the native plugin tree, or "".
	Plugins  string
	Metadata *metadata.ComponentMetadata
}

// Classify reads the top-level entries of extractedPath once and sorts them.
func Classify(name, versionKey, versionName, extractedPath, supportedVersion string) (*Installable, error) {
	entries, err := os.ReadDir(extractedPath)
	if err != nil {
		return nil, fmt.Errorf("reading extracted component: %w", err)
	}

	c := &Installable{
		catalogName:      name,
		VersionKey:       versionKey,
		VersionName:      versionName,
		ExtractedPath:    extractedPath,
		SupportedVersion: supportedVersion,
	}

	for _, e := range entries {
		n := e.Name()
		switch {
		case strings.HasSuffix(n, PatchAssemblySuffix):
			c.PatchAssemblies = append(c.PatchAssemblies, n)
		case strings.HasSuffix(n, ".dll"), strings.HasSuffix(n, ".exe"):
			c.Assemblies = append(c.Assemblies, n)
		case n == MetadataFile && !e.IsDir():
			meta, err := metadata.LoadComponentMetadata(filepath.Join(extractedPath, n))
			if err != nil {
				return nil, fmt.Errorf("component %s: %w", name, err)
			}
			c.Metadata = meta
		case n == PluginsDir && e.IsDir():
			c.Plugins = filepath.Join(extractedPath, n)
		case e.IsDir():
			c.Dirs = append(c.Dirs, n)
		default:
			c.OtherFiles = append(c.OtherFiles, n)
		}
	}

	return c, nil
}

// Name is the metadata name if one is declared, otherwise the catalog name.
func (c *Installable) Name() string {
	if c.Metadata != nil && c.Metadata.Name != "" {
		return c.Metadata.Name
	}
	return c.catalogName
}

// ValidateGameVersion compares detected against the supported game version.
// Callers decide whether a mismatch is fatal.
func (c *Installable) ValidateGameVersion(detected string) (gameversion.Result, error) {
	res, err := gameversion.Check(detected, c.SupportedVersion)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", c.Name(), c.VersionName, err)
	}
	if res == gameversion.Unspecified {
		logging.Warnf("%s %s does not have a specified supported game version.", c.Name(), c.VersionName)
	}
	return res, nil
}

// Subdir is the per-component directory inside the managed directory.
func (c *Installable) Subdir(managedDir string) string {
	return filepath.Join(managedDir, c.Name())
}

// targetDir resolves where entry goes. install_in_managed has the last say.
func (c *Installable) targetDir(entry, managedDir string, defaultSubdir bool) string {
	subdir := defaultSubdir
	if c.Metadata.InSubdir(entry) {
		subdir = true
	}
	if c.Metadata.InManaged(entry) {
		subdir = false
	}
	if subdir {
		return c.Subdir(managedDir)
	}
	return managedDir
}

// InstallFiles copies assemblies, patch assemblies, other files and
// directories into managedDir, in that order. Existing files are
// overwritten.
func (c *Installable) InstallFiles(managedDir string) error {
	passes := []struct {
		kind    string
		entries []string
		subdir  bool
	}{
		{"assembly", c.Assemblies, false},
		{"patch assembly", c.PatchAssemblies, false},
		{"file", c.OtherFiles, true},
		{"directory", c.Dirs, true},
	}

	for _, pass := range passes {
		for _, entry := range pass.entries {
			logging.Infof("  Installing %s: %s\n", pass.kind, entry)
			dir := c.targetDir(entry, managedDir, pass.subdir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			if err := fsutil.Copy(filepath.Join(c.ExtractedPath, entry), filepath.Join(dir, entry)); err != nil {
				return fmt.Errorf("installing %s %s: %w", pass.kind, entry, err)
			}
		}
	}
	return nil
}

// InstalledPatchAssemblies lists the patch assemblies that ended up
// directly in managedDir. Ones routed to the subdirectory are not patches.
func (c *Installable) InstalledPatchAssemblies(managedDir string) []string {
	var out []string
	for _, name := range c.PatchAssemblies {
		if fsutil.FileExists(filepath.Join(managedDir, name)) {
			out = append(out, name)
		}
	}
	return out
}
