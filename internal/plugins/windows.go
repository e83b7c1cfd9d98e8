package plugins

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caedis/mtg-installer/internal/logging"
)

// ReferencePlugin is the plugin shipped with every Windows install whose PE
// header tells which architecture the game runs as.
const ReferencePlugin = "CSteamworks.dll"

// Arch is a Windows process bitness.
type Arch int

const (
	Arch32 Arch = 32
	Arch64 Arch = 64
)

func (a Arch) String() string {
	return fmt.Sprintf("%d", int(a))
}

// PE machine types.
const (
	machineI386  = 0x014c
	machineAMD64 = 0x8664
	machineIA64  = 0x0200
)

// Offset of e_lfanew in the DOS header.
const dosHeaderLfanew = 0x3c

// UnknownArchitectureError is returned for a PE machine type that is neither
// 32 nor 64 bit x86.
type UnknownArchitectureError struct {
	Machine uint16
}

func (e *UnknownArchitectureError) Error() string {
	return fmt.Sprintf("unknown PE machine flag 0x%04x (can't determine architecture)", e.Machine)
}

// DetectArchitecture reads the PE header of the DLL at path.
func DetectArchitecture(path string) (Arch, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening DLL used to guess the architecture: %w", err)
	}
	defer f.Close()

	arch, err := readArchitecture(f)
	if err != nil {
		var unknown *UnknownArchitectureError
		if errors.As(err, &unknown) {
			return 0, err
		}
		return 0, fmt.Errorf("DLL used to guess the architecture is corrupted: %s: %w", path, err)
	}
	return arch, nil
}

func readArchitecture(r io.ReadSeeker) (Arch, error) {
	magic := make([]byte, 2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, fmt.Errorf("reading DOS magic: %w", err)
	}
	if magic[0] != 'M' || magic[1] != 'Z' {
		return 0, errors.New("DOS magic number is not MZ")
	}

	if _, err := r.Seek(dosHeaderLfanew, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to PE offset: %w", err)
	}
	var peOffset uint32
	if err := binary.Read(r, binary.LittleEndian, &peOffset); err != nil {
		return 0, fmt.Errorf("reading PE offset: %w", err)
	}

	if _, err := r.Seek(int64(peOffset), io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to PE header: %w", err)
	}
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, fmt.Errorf("reading PE magic: %w", err)
	}
	if magic[0] != 'P' || magic[1] != 'E' {
		return 0, errors.New("PE magic number is not PE")
	}

	// The two NUL bytes completing the "PE\0\0" signature.
	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return 0, fmt.Errorf("skipping PE signature: %w", err)
	}
	var machine uint16
	if err := binary.Read(r, binary.LittleEndian, &machine); err != nil {
		return 0, fmt.Errorf("reading machine type: %w", err)
	}

	switch machine {
	case machineI386:
		return Arch32, nil
	case machineAMD64, machineIA64:
		return Arch64, nil
	default:
		return 0, &UnknownArchitectureError{Machine: machine}
	}
}

type windowsInstaller struct{}

func (windowsInstaller) Platform() Platform { return Windows }

func (windowsInstaller) ValidateHierarchy(sourceRoot string) error {
	return validateHierarchy(sourceRoot)
}

// Copy installs the plugins matching the architecture of the game's own
// reference plugin in targetDir; the host process bitness is irrelevant.
func (w windowsInstaller) Copy(sourceRoot, targetDir string) error {
	if err := w.ValidateHierarchy(sourceRoot); err != nil {
		return err
	}

	logging.Infoln("  Determining architecture")
	arch, err := DetectArchitecture(filepath.Join(targetDir, ReferencePlugin))
	if err != nil {
		return err
	}
	logging.Infof("  Architecture is: %s bit\n", arch)

	logging.Infoln("  Copying plugins")
	return copyPlugins(filepath.Join(sourceRoot, "Windows", arch.String()), targetDir, ".dll")
}
