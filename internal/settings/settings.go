// Package settings persists the installer's defaults between runs.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

const (
	// EnvConfigDir overrides the settings directory.
	EnvConfigDir = "MTG_INSTALLER_CONFIG_DIR"
	dirName      = "mtg-installer"
	fileName     = "settings.toml"
	// CustomComponentsFile is merged into the component catalog when it exists.
	CustomComponentsFile = "custom-components.yml"
)

// Settings are the saved defaults. Command line flags override them per run.
type Settings struct {
	ExecutablePath       string   `toml:"executable-path,omitempty"`
	ForceHTTP            bool     `toml:"force-http"`
	ForceBackup          bool     `toml:"force-backup"`
	SkipVersionChecks    bool     `toml:"skip-version-checks"`
	LeavePatchDLLs       bool     `toml:"leave-patch-dlls"`
	Offline              bool     `toml:"offline"`
	CustomComponentFiles []string `toml:"custom-component-files,omitempty"`
	// PatchEngine is the command line of the assembly patch engine. The
	// job file path is appended when it runs.
	PatchEngine []string `toml:"patch-engine,omitempty"`
}

// Dir returns the settings directory: $MTG_INSTALLER_CONFIG_DIR, or
// mtg-installer under the XDG config home.
func Dir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, dirName)
}

// Path is the settings file location.
func Path() string { return filepath.Join(Dir(), fileName) }

// CustomComponentsPath is the location of the user's component list.
func CustomComponentsPath() string { return filepath.Join(Dir(), CustomComponentsFile) }

// Load reads the settings file, creating it with defaults when missing.
// The custom components file is created from a template as well.
func Load() (*Settings, error) {
	s, err := LoadFile(Path())
	if errors.Is(err, os.ErrNotExist) {
		s = &Settings{}
		if err := s.SaveFile(Path()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := writeTemplate(CustomComponentsPath()); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads settings from path.
func LoadFile(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return &s, nil
}

// Save writes the settings to the default location.
func (s *Settings) Save() error {
	return s.SaveFile(Path())
}

// SaveFile writes the settings to path, creating its directory if needed.
func (s *Settings) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}

type field struct {
	key  string
	desc string
	get  func(*Settings) string
	set  func(*Settings, string) error
}

func boolField(key, desc string, ptr func(*Settings) *bool) field {
	return field{
		key:  key,
		desc: desc,
		get:  func(s *Settings) string { return strconv.FormatBool(*ptr(s)) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s expects true or false, got %q", key, v)
			}
			*ptr(s) = b
			return nil
		},
	}
}

func listField(key, desc string, ptr func(*Settings) *[]string) field {
	return field{
		key:  key,
		desc: desc,
		get:  func(s *Settings) string { return strings.Join(*ptr(s), " ") },
		set: func(s *Settings, v string) error {
			*ptr(s) = strings.Fields(v)
			return nil
		},
	}
}

var fields = []field{
	{
		key:  "executable-path",
		desc: "Path to the game executable (empty: autodetect)",
		get:  func(s *Settings) string { return s.ExecutablePath },
		set: func(s *Settings, v string) error {
			s.ExecutablePath = strings.TrimSpace(v)
			return nil
		},
	},
	boolField("force-http", "Download over HTTP instead of HTTPS", func(s *Settings) *bool { return &s.ForceHTTP }),
	boolField("force-backup", "Take a fresh backup instead of restoring the old one", func(s *Settings) *bool { return &s.ForceBackup }),
	boolField("skip-version-checks", "Install components even if they target another game version", func(s *Settings) *bool { return &s.SkipVersionChecks }),
	boolField("leave-patch-dlls", "Keep patch assemblies in the managed directory after patching", func(s *Settings) *bool { return &s.LeavePatchDLLs }),
	boolField("offline", "Skip the official component list", func(s *Settings) *bool { return &s.Offline }),
	listField("custom-component-files", "Extra component lists, space separated", func(s *Settings) *[]string { return &s.CustomComponentFiles }),
	listField("patch-engine", "Patch engine command line, space separated", func(s *Settings) *[]string { return &s.PatchEngine }),
}

func lookup(key string) (field, error) {
	for _, f := range fields {
		if f.key == key {
			return f, nil
		}
	}
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	sort.Strings(keys)
	return field{}, fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(keys, ", "))
}

// Get returns the value of the named setting as text.
func (s *Settings) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(s), nil
}

// Set parses value into the named setting.
func (s *Settings) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	return f.set(s, value)
}

// Describe renders every setting with its description.
func (s *Settings) Describe() string {
	var b strings.Builder
	for _, f := range fields {
		v := f.get(s)
		if v == "" {
			v = "(not set)"
		}
		fmt.Fprintf(&b, "%s = %s\n    %s\n", f.key, v, f.desc)
	}
	return b.String()
}
