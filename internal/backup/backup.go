// Package backup snapshots the vanilla game files so every install can start
// from, and uninstall can return to, a pristine state.
//
// A backup lives inside the game root:
//
//	.ETGModBackup/
//	  Root/         executables
//	  Managed/      managed assemblies
//	  Plugins/      native plugin tree
//	  version.txt   game version the snapshot was taken from
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/game"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
)

const (
	DirName     = ".ETGModBackup"
	rootName    = "Root"
	managedName = "Managed"
	pluginsName = "Plugins"
	markerName  = "version.txt"
)

// Manager backs up and restores one installation.
type Manager struct {
	game *game.Installation
	meta *metadata.GameMetadata
}

// New returns a manager for inst. meta lists the files that belong in the
// backup and is only needed by Backup.
func New(inst *game.Installation, meta *metadata.GameMetadata) *Manager {
	return &Manager{game: inst, meta: meta}
}

// Dir is the backup root inside the game directory.
func (m *Manager) Dir() string { return filepath.Join(m.game.Root, DirName) }

func (m *Manager) rootDir() string    { return filepath.Join(m.Dir(), rootName) }
func (m *Manager) managedDir() string { return filepath.Join(m.Dir(), managedName) }
func (m *Manager) pluginsDir() string { return filepath.Join(m.Dir(), pluginsName) }
func (m *Manager) markerPath() string { return filepath.Join(m.Dir(), markerName) }

// Exists reports whether a backup directory is present.
func (m *Manager) Exists() bool {
	return fsutil.DirExists(m.Dir())
}

// RecordedVersion returns the game version stored with the backup.
func (m *Manager) RecordedVersion() (string, error) {
	data, err := os.ReadFile(m.markerPath())
	if err != nil {
		return "", fmt.Errorf("reading backup version: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Restore copies the backed up files over the installation. Without a
// backup there is nothing to do. A backup recorded for a different game
// version is stale: it is deleted and nothing is restored.
func (m *Manager) Restore(force bool) error {
	if !m.Exists() {
		if force {
			logging.Infoln("No backup exists; the game is either unmodified or was modified without a backup.")
		} else {
			logging.Infoln("Backup doesn't exist - not restoring")
		}
		return nil
	}

	current, err := m.game.Version()
	if err != nil {
		return err
	}

	recorded, err := m.RecordedVersion()
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Warnf("Backup version marker is missing - did an error occur while creating the backup? The game files might be corrupted.")
	case err != nil:
		return err
	case recorded != current:
		logging.Infof("Backup was made for game version %s but %s is installed - discarding stale backup\n", recorded, current)
		if err := os.RemoveAll(m.Dir()); err != nil {
			return fmt.Errorf("removing stale backup: %w", err)
		}
		return nil
	}

	logging.Infoln("Restoring from backup")

	patched := m.game.PatchedExePath()
	if fsutil.FileExists(patched) {
		logging.Infoln("Removing old temporary patched executable")
		if err := os.Remove(patched); err != nil {
			return fmt.Errorf("removing %s: %w", patched, err)
		}
	}

	if err := m.restoreRoot(); err != nil {
		return err
	}
	if err := m.restoreManaged(); err != nil {
		return err
	}
	return m.restorePlugins()
}

func (m *Manager) restoreRoot() error {
	if !fsutil.DirExists(m.rootDir()) {
		logging.Warnf("Root directory backup is missing - did an error occur while creating the backup? The game files might be corrupted.")
		return nil
	}
	entries, err := os.ReadDir(m.rootDir())
	if err != nil {
		return fmt.Errorf("reading root backup: %w", err)
	}
	for _, e := range entries {
		logging.Debugf("Verbose: restoring root file %s\n", e.Name())
		if err := fsutil.Copy(filepath.Join(m.rootDir(), e.Name()), filepath.Join(m.game.Root, e.Name())); err != nil {
			return fmt.Errorf("restoring root file %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (m *Manager) restoreManaged() error {
	if !fsutil.DirExists(m.managedDir()) {
		logging.Warnf("Managed directory backup is missing - did an error occur while creating the backup? The game files might be corrupted.")
		return nil
	}
	logging.Debugf("Verbose: wiping managed directory %s\n", m.game.ManagedDir)
	if err := fsutil.ReplaceDir(m.managedDir(), m.game.ManagedDir); err != nil {
		return fmt.Errorf("restoring managed directory: %w", err)
	}
	return nil
}

func (m *Manager) restorePlugins() error {
	if !fsutil.DirExists(m.pluginsDir()) {
		logging.Warnf("Plugins directory backup is missing - did an error occur while creating the backup? The game files might be corrupted.")
		return nil
	}
	logging.Debugf("Verbose: wiping plugins directory %s\n", m.game.PluginsDir)
	if err := fsutil.ReplaceDir(m.pluginsDir(), m.game.PluginsDir); err != nil {
		return fmt.Errorf("restoring plugins directory: %w", err)
	}
	return nil
}

// Backup snapshots the vanilla files listed in the game metadata. An
// existing backup is kept unless force is set.
func (m *Manager) Backup(force bool) error {
	if m.Exists() {
		if !force {
			m.warnIncomplete()
			logging.Infoln("Backup folder exists - not backing up")
			return nil
		}
		if err := os.RemoveAll(m.Dir()); err != nil {
			return fmt.Errorf("removing old backup: %w", err)
		}
	}
	if m.meta == nil {
		return errors.New("backup: game metadata not loaded")
	}

	version, err := m.game.Version()
	if err != nil {
		return err
	}

	logging.Infoln("Performing backup")

	for _, dir := range []string{m.rootDir(), m.managedDir(), m.pluginsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating backup directory: %w", err)
		}
	}

	if err := backupListed(m.game.Root, m.rootDir(), m.meta.Executables, "root"); err != nil {
		return err
	}
	if err := backupListed(m.game.ManagedDir, m.managedDir(), m.meta.ManagedFiles, "managed"); err != nil {
		return err
	}
	if fsutil.DirExists(m.game.PluginsDir) {
		logging.Debugf("Verbose: backing up plugins directory %s\n", m.game.PluginsDir)
		if err := fsutil.Copy(m.game.PluginsDir, m.pluginsDir()); err != nil {
			return fmt.Errorf("backing up plugins: %w", err)
		}
	}

	// Written last: a backup without a marker was interrupted.
	if err := os.WriteFile(m.markerPath(), []byte(version), 0o644); err != nil {
		return fmt.Errorf("writing backup version: %w", err)
	}
	return nil
}

func backupListed(srcDir, dstDir string, names []string, kind string) error {
	listed := make(map[string]struct{}, len(names))
	for _, n := range names {
		listed[n] = struct{}{}
	}
	copied, err := fsutil.CopySelected(srcDir, dstDir, func(name string) bool {
		_, ok := listed[name]
		return ok
	})
	for _, name := range copied {
		logging.Debugf("Verbose: backed up %s file %s\n", kind, name)
	}
	if err != nil {
		return fmt.Errorf("backing up %s files: %w", kind, err)
	}
	return nil
}

func (m *Manager) warnIncomplete() {
	for _, sub := range []struct{ path, name string }{
		{m.rootDir(), "root"},
		{m.managedDir(), "managed"},
		{m.pluginsDir(), "plugins"},
	} {
		if !fsutil.DirExists(sub.path) {
			logging.Warnf("Backup directory exists, but the %s backup subdirectory is missing - did an error occur while creating the backup? The game files might be corrupted.", sub.name)
		}
	}
	if !fsutil.FileExists(m.markerPath()) {
		logging.Warnf("Backup directory exists, but its version marker is missing. The game files might be corrupted.")
	}
}
