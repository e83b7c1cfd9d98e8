// Package plugins validates and installs the native plugins a component ships.
//
// A component's Plugins directory must carry every platform and
// architecture, even though only the host platform's subset is installed:
//
//	Plugins/
//	  Linux/32/*.so
//	  Linux/64/*.so
//	  Windows/32/*.dll
//	  Windows/64/*.dll
//	  MacOS/*.bundle
package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/mtg-installer/internal/fsutil"
	"github.com/caedis/mtg-installer/internal/logging"
)

// Platform identifies a target operating system.
type Platform int

const (
	Unknown Platform = iota
	Linux
	Windows
	Mac
)

// ID returns the plugin directory name used for the platform.
func (p Platform) ID() string {
	switch p {
	case Linux:
		return "Linux"
	case Windows:
		return "Windows"
	case Mac:
		return "MacOS"
	default:
		return "UNKNOWN"
	}
}

func (p Platform) String() string {
	return p.ID()
}

// ParsePlatform accepts the directory IDs and common GOOS-style names.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return Linux, nil
	case "windows", "win":
		return Windows, nil
	case "macos", "mac", "osx", "darwin":
		return Mac, nil
	default:
		return Unknown, fmt.Errorf("unknown platform %q (expected linux, windows or macos)", s)
	}
}

// UnknownPlatformError is returned when no installer exists for a platform.
type UnknownPlatformError struct {
	Platform Platform
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform value: %d", int(e.Platform))
}

// InvalidHierarchyError names the first required directory missing from a
// component's plugin tree.
type InvalidHierarchyError struct {
	Missing string
}

func (e *InvalidHierarchyError) Error() string {
	return fmt.Sprintf("component is missing the following directory in its plugins folder: %s", e.Missing)
}

// Installer copies the plugins for one platform.
type Installer interface {
	Platform() Platform
	// ValidateHierarchy checks that sourceRoot has a directory for every
	// known platform and architecture.
	ValidateHierarchy(sourceRoot string) error
	// Copy validates sourceRoot and copies the platform's plugins into
	// targetDir. Nothing is copied when validation fails.
	Copy(sourceRoot, targetDir string) error
}

// New returns the installer for platform.
func New(platform Platform) (Installer, error) {
	switch platform {
	case Linux:
		return linuxInstaller{}, nil
	case Windows:
		return windowsInstaller{}, nil
	case Mac:
		return macInstaller{}, nil
	default:
		return nil, &UnknownPlatformError{Platform: platform}
	}
}

var requiredDirs = []string{
	filepath.Join("Linux", "32"),
	filepath.Join("Linux", "64"),
	filepath.Join("Windows", "32"),
	filepath.Join("Windows", "64"),
	"MacOS",
}

func validateHierarchy(sourceRoot string) error {
	for _, rel := range requiredDirs {
		full := filepath.Join(sourceRoot, rel)
		logging.Debugf("Verbose: checking for plugin dir %s\n", full)
		if !fsutil.DirExists(full) {
			return &InvalidHierarchyError{Missing: rel}
		}
	}
	return nil
}

// copyPlugins copies the files in dir ending in ext into targetDir.
func copyPlugins(dir, targetDir, ext string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating plugin dir %s: %w", targetDir, err)
	}
	copied, err := fsutil.CopySelected(dir, targetDir, func(name string) bool {
		return strings.HasSuffix(name, ext)
	})
	for _, name := range copied {
		logging.Debugf("Verbose: copied plugin %s -> %s\n", filepath.Join(dir, name), filepath.Join(targetDir, name))
	}
	if err != nil {
		return fmt.Errorf("copying plugins from %s: %w", dir, err)
	}
	return nil
}

type linuxInstaller struct{}

func (linuxInstaller) Platform() Platform { return Linux }

func (linuxInstaller) ValidateHierarchy(sourceRoot string) error {
	return validateHierarchy(sourceRoot)
}

// Copy installs both architectures: Unity on Linux loads from x86 or
// x86_64 inside the same Plugins directory.
func (l linuxInstaller) Copy(sourceRoot, targetDir string) error {
	if err := l.ValidateHierarchy(sourceRoot); err != nil {
		return err
	}
	logging.Infoln("  Copying 32 bit plugins")
	if err := copyPlugins(filepath.Join(sourceRoot, "Linux", "32"), filepath.Join(targetDir, "x86"), ".so"); err != nil {
		return err
	}
	logging.Infoln("  Copying 64 bit plugins")
	return copyPlugins(filepath.Join(sourceRoot, "Linux", "64"), filepath.Join(targetDir, "x86_64"), ".so")
}

type macInstaller struct{}

func (macInstaller) Platform() Platform { return Mac }

func (macInstaller) ValidateHierarchy(sourceRoot string) error {
	return validateHierarchy(sourceRoot)
}

// Copy installs .bundle entries. Bundles are usually directories, so they
// are copied recursively.
func (m macInstaller) Copy(sourceRoot, targetDir string) error {
	if err := m.ValidateHierarchy(sourceRoot); err != nil {
		return err
	}
	logging.Infoln("  Copying plugins")

	src := filepath.Join(sourceRoot, "MacOS")
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating plugin dir %s: %w", targetDir, err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".bundle") {
			continue
		}
		logging.Debugf("Verbose: copied plugin %s -> %s\n", filepath.Join(src, e.Name()), filepath.Join(targetDir, e.Name()))
		if err := fsutil.Copy(filepath.Join(src, e.Name()), filepath.Join(targetDir, e.Name())); err != nil {
			return fmt.Errorf("copying plugin %s: %w", e.Name(), err)
		}
	}
	return nil
}
