// Package game describes the on-disk layout of one game installation.
package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/plugins"
)

const (
	// PatchedExeName is the temporary output of the executable patcher.
	PatchedExeName = "EtG.patched"
	// LegacyBackupDir marks an install made by the old ETGMod installer.
	LegacyBackupDir = "ModBackup"

	versionFile = "version.txt"
	// CorruptedVersion is reported when version.txt has no lines at all.
	CorruptedVersion = "CORRUPTED VERSION.TXT"
)

// Installation is the layout of a game install rooted at the directory
// that contains the executable.
type Installation struct {
	Platform           plugins.Platform
	ExePath            string
	Root               string
	DataDir            string
	ManagedDir         string
	PluginsDir         string
	StreamingAssetsDir string
}

// New derives the layout from the executable path. On Windows and Linux the
// data lives next to the executable in EtG_Data; on macOS the executable
// sits in Contents/MacOS and the data in Contents/Resources/Data.
func New(exePath string, platform plugins.Platform) (*Installation, error) {
	exePath = filepath.Clean(exePath)
	root := filepath.Dir(exePath)

	var data string
	switch platform {
	case plugins.Linux, plugins.Windows:
		data = filepath.Join(root, "EtG_Data")
	case plugins.Mac:
		data = filepath.Join(filepath.Dir(root), "Resources", "Data")
	default:
		return nil, &plugins.UnknownPlatformError{Platform: platform}
	}

	return &Installation{
		Platform:           platform,
		ExePath:            exePath,
		Root:               root,
		DataDir:            data,
		ManagedDir:         filepath.Join(data, "Managed"),
		PluginsDir:         filepath.Join(data, "Plugins"),
		StreamingAssetsDir: filepath.Join(data, "StreamingAssets"),
	}, nil
}

// Open is New plus a check that the executable and managed directory exist.
func Open(exePath string, platform plugins.Platform) (*Installation, error) {
	inst, err := New(exePath, platform)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(inst.ExePath)
	if err != nil {
		return nil, fmt.Errorf("game executable: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("game executable %s is a directory", inst.ExePath)
	}
	if info, err := os.Stat(inst.ManagedDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("managed directory %s not found; is this a game installation?", inst.ManagedDir)
	}
	return inst, nil
}

// PatchedExePath is where the executable patcher writes before replacing
// the executable.
func (i *Installation) PatchedExePath() string {
	return filepath.Join(i.Root, PatchedExeName)
}

// HasLegacyMod reports whether the old ETGMod installer modified this game.
func (i *Installation) HasLegacyMod() bool {
	info, err := os.Stat(filepath.Join(i.ManagedDir, LegacyBackupDir))
	return err == nil && info.IsDir()
}

// Version returns the game version recorded in StreamingAssets/version.txt.
// The file holds either the version alone or a display name followed by the
// version on the second line.
func (i *Installation) Version() (string, error) {
	lines, err := i.readVersionFile()
	if err != nil {
		return "", err
	}
	if len(lines) == 1 {
		return lines[0], nil
	}
	return lines[1], nil
}

// VersionName returns the first line of version.txt.
func (i *Installation) VersionName() (string, error) {
	lines, err := i.readVersionFile()
	if err != nil {
		return "", err
	}
	return lines[0], nil
}

func (i *Installation) readVersionFile() ([]string, error) {
	path := filepath.Join(i.StreamingAssetsDir, versionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading game version: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for idx := range lines {
		lines[idx] = strings.TrimSpace(lines[idx])
	}

	if len(lines) < 1 || len(lines) > 2 {
		logging.Warnf("The game's version.txt file is corrupted or in an unrecognized format.")
		if len(lines) < 1 {
			return []string{CorruptedVersion}, nil
		}
	}
	return lines, nil
}
