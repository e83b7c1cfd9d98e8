// Package autodetect finds the host platform and a game installation.
package autodetect

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/plugins"
)

const gameDirName = "Enter the Gungeon"

// Platform returns the host platform.
func Platform() plugins.Platform {
	switch runtime.GOOS {
	case "linux":
		return plugins.Linux
	case "windows":
		return plugins.Windows
	case "darwin":
		return plugins.Mac
	default:
		return plugins.Unknown
	}
}

// Arch returns the bitness of the host.
func Arch() plugins.Arch {
	switch runtime.GOARCH {
	case "386", "arm":
		return plugins.Arch32
	default:
		return plugins.Arch64
	}
}

// ExeName is the game executable's file name, or "" for unknown platforms.
func ExeName(platform plugins.Platform, arch plugins.Arch) string {
	switch platform {
	case plugins.Linux:
		if arch == plugins.Arch32 {
			return "EtG.x86"
		}
		return "EtG.x86_64"
	case plugins.Windows:
		return "EtG.exe"
	case plugins.Mac:
		return "EtG_OSX"
	default:
		return ""
	}
}

// Finder searches the usual install locations.
type Finder struct {
	Platform plugins.Platform
	Arch     plugins.Arch
	Home     string
	// SteamExe returns the executable of a running Steam client, or "".
	SteamExe func(ctx context.Context) string
}

// NewFinder returns a Finder for the host.
func NewFinder() *Finder {
	home, _ := os.UserHomeDir()
	return &Finder{
		Platform: Platform(),
		Arch:     Arch(),
		Home:     home,
		SteamExe: runningSteam,
	}
}

// runningSteam scans the process list for a Steam client.
func runningSteam(ctx context.Context) string {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		logging.Debugf("Verbose: listing processes failed: %v\n", err)
		return ""
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(name), "steam") {
			continue
		}
		// Access errors are common for system processes; skip them.
		exe, err := p.ExeWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(filepath.Base(exe)), "steam") {
			continue
		}
		logging.Debugf("Verbose: found running Steam at %s\n", exe)
		return exe
	}
	return ""
}

// steamRootFromExe maps a Steam client executable to the Steam root.
func (f *Finder) steamRootFromExe(exe string) string {
	dir := filepath.Dir(exe)
	// Browser helpers run from a cef subdirectory of the client's bin dir.
	for strings.Contains(strings.ToLower(dir), "cef") {
		dir = filepath.Dir(dir)
	}
	switch f.Platform {
	case plugins.Windows:
		// Steam/steam.exe or Steam/bin/steam.exe
		if strings.EqualFold(filepath.Base(dir), "bin") {
			dir = filepath.Dir(dir)
		}
		return dir
	case plugins.Linux:
		// Steam/ubuntu12_32/steam
		return filepath.Dir(dir)
	default:
		return ""
	}
}

func (f *Finder) defaultSteamRoots() []string {
	switch f.Platform {
	case plugins.Linux:
		return []string{
			filepath.Join(f.Home, ".local", "share", "Steam"),
			filepath.Join(f.Home, ".steam", "steam"),
		}
	case plugins.Mac:
		return []string{filepath.Join(f.Home, "Library", "Application Support", "Steam")}
	case plugins.Windows:
		return []string{
			`C:\Program Files (x86)\Steam`,
			`C:\Program Files\Steam`,
			`D:\Steam`,
		}
	default:
		return nil
	}
}

// SteamDir returns the game directory inside the Steam library, or "".
func (f *Finder) SteamDir(ctx context.Context) string {
	var roots []string
	// On macOS the client lives apart from the library.
	if f.Platform != plugins.Mac && f.SteamExe != nil {
		if exe := f.SteamExe(ctx); exe != "" {
			if root := f.steamRootFromExe(exe); root != "" {
				roots = append(roots, root)
			}
		}
	}
	roots = append(roots, f.defaultSteamRoots()...)

	for _, root := range roots {
		if !fsutil.DirExists(root) {
			continue
		}
		apps := filepath.Join(root, "SteamApps")
		if !fsutil.DirExists(apps) {
			apps = filepath.Join(root, "steamapps")
		}
		dir := filepath.Join(apps, "common", gameDirName)
		if f.Platform == plugins.Mac {
			dir = filepath.Join(dir, "EtG_OSX.app", "Contents", "MacOS")
		}
		return dir
	}
	return ""
}

// GOGDir returns the GOG install directory, or "".
func (f *Finder) GOGDir() string {
	var base string
	switch f.Platform {
	case plugins.Linux:
		base = filepath.Join(f.Home, "GOG Games")
	case plugins.Windows:
		base = `C:\GOG Games`
	default:
		return ""
	}
	dir := filepath.Join(base, gameDirName)
	if !fsutil.DirExists(dir) {
		return ""
	}
	return dir
}

// ExePath returns the path of the game executable in the first location
// that has one: Steam, then GOG. It returns "" when nothing is found.
func (f *Finder) ExePath(ctx context.Context) string {
	name := ExeName(f.Platform, f.Arch)
	if name == "" {
		return ""
	}
	for _, dir := range []string{f.SteamDir(ctx), f.GOGDir()} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if fsutil.FileExists(path) {
			return path
		}
		logging.Debugf("Verbose: no executable at %s\n", path)
	}
	return ""
}
