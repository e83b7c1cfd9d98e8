// Package metadata decodes the YAML documents the installer consumes: the
// component list, the game metadata and the per-component metadata.yml.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caedis/mtg-installer/internal/exepatch"
)

// Version is one installable release of a component.
type Version struct {
	Key              string `yaml:"key"`
	Name             string `yaml:"name"`
	Path             string `yaml:"path,omitempty"`
	URL              string `yaml:"url,omitempty"`
	ReleaseDate      string `yaml:"release_date,omitempty"`
	Beta             bool   `yaml:"beta,omitempty"`
	SupportedGungeon string `yaml:"supported_gungeon,omitempty"`
	RequiresExePatch bool   `yaml:"requires_exe_patch,omitempty"`
}

// Local reports whether the version is sourced from a file on disk.
func (v *Version) Local() bool {
	return v.Path != ""
}

// Source returns the path or URL the version is fetched from.
func (v *Version) Source() string {
	if v.Path != "" {
		return v.Path
	}
	return v.URL
}

// Validate checks that exactly one of path and url is set.
func (v *Version) Validate() error {
	switch {
	case v.Path == "" && v.URL == "":
		return fmt.Errorf("version %q has neither a url nor a path", v.Key)
	case v.Path != "" && v.URL != "":
		return fmt.Errorf("version %q has both a url and a path", v.Key)
	}
	return nil
}

// DirName returns the display name for use as a single directory name.
// Empty names and names that are not one local path element are rejected.
func (v *Version) DirName() (string, error) {
	if v.Name == "" {
		return "", fmt.Errorf("version %q has no name", v.Key)
	}
	if v.Name == "." || !filepath.IsLocal(v.Name) || filepath.Base(v.Name) != v.Name {
		return "", fmt.Errorf("version %q has a name that is not a plain directory name: %q", v.Key, v.Name)
	}
	return v.Name, nil
}

func (v *Version) String() string {
	date := v.ReleaseDate
	if date == "" {
		date = "N/A"
	}
	if v.Beta {
		return fmt.Sprintf("[%s β] %s (%s)", v.Key, v.Name, date)
	}
	return fmt.Sprintf("[%s R] %s (%s)", v.Key, v.Name, date)
}

// Component is an entry of components.yml. Either Versions or VersionsURL
// is set; remote version lists are resolved by the downloader.
type Component struct {
	Name        string    `yaml:"name"`
	Author      string    `yaml:"author,omitempty"`
	Description string    `yaml:"description,omitempty"`
	VersionsURL string    `yaml:"versions_url,omitempty"`
	Versions    []Version `yaml:"versions,omitempty"`
}

// FindVersion returns the version with the given key, or nil.
func (c *Component) FindVersion(key string) *Version {
	for i := range c.Versions {
		if c.Versions[i].Key == key {
			return &c.Versions[i]
		}
	}
	return nil
}

// MergeVersions appends versions to the list. A version with the key of an
// existing one replaces it: the old entry is removed and the new one is
// appended at the end.
func (c *Component) MergeVersions(versions []Version) {
	for _, v := range versions {
		kept := c.Versions[:0]
		for _, existing := range c.Versions {
			if existing.Key != v.Key {
				kept = append(kept, existing)
			}
		}
		c.Versions = append(kept, v)
	}
}

// Substitution is one entry of exe_orig_subsitutions.
type Substitution struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// GameMetadata describes the files of a vanilla game installation.
type GameMetadata struct {
	LatestVersion      string         `yaml:"latest_version"`
	Executables        []string       `yaml:"executables"`
	ManagedFiles       []string       `yaml:"managed_files"`
	ViablePatchTargets []string       `yaml:"viable_patch_targets"`
	ExeSubstitutions   []Substitution `yaml:"exe_orig_subsitutions"`
}

// ByteSubstitutions converts the configured text substitutions to byte form.
func (g *GameMetadata) ByteSubstitutions() []exepatch.Substitution {
	subs := make([]exepatch.Substitution, 0, len(g.ExeSubstitutions))
	for _, s := range g.ExeSubstitutions {
		subs = append(subs, exepatch.StringSubstitution(s.From, s.To))
	}
	return subs
}

// ComponentMetadata is the optional metadata.yml shipped inside a component.
type ComponentMetadata struct {
	Name             string   `yaml:"name,omitempty"`
	InstallInSubdir  []string `yaml:"install_in_subdir,omitempty"`
	InstallInManaged []string `yaml:"install_in_managed,omitempty"`
	OrderedTargets   []string `yaml:"ordered_targets,omitempty"`
	// RelinkMap maps a patch target to {symbolic module name -> filename}.
	RelinkMap map[string]map[string]string `yaml:"relink_map,omitempty"`
}

// InSubdir reports whether name is listed in install_in_subdir.
func (m *ComponentMetadata) InSubdir(name string) bool {
	return m != nil && contains(m.InstallInSubdir, name)
}

// InManaged reports whether name is listed in install_in_managed.
func (m *ComponentMetadata) InManaged(name string) bool {
	return m != nil && contains(m.InstallInManaged, name)
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// ParseComponents decodes a components.yml document. Components without a
// name are rejected; an empty document yields no components.
func ParseComponents(data []byte) ([]Component, error) {
	var comps []Component
	if err := yaml.Unmarshal(data, &comps); err != nil {
		return nil, fmt.Errorf("parsing components: %w", err)
	}
	for i := range comps {
		comps[i].Name = strings.TrimSpace(comps[i].Name)
		if comps[i].Name == "" {
			return nil, fmt.Errorf("parsing components: entry %d has no name", i)
		}
		if comps[i].Author == "" {
			comps[i].Author = "(Unknown)"
		}
		if comps[i].Description == "" {
			comps[i].Description = "(Missing)"
		}
	}
	return comps, nil
}

// ParseVersions decodes a document fetched from a versions_url.
func ParseVersions(data []byte) ([]Version, error) {
	var versions []Version
	if err := yaml.Unmarshal(data, &versions); err != nil {
		return nil, fmt.Errorf("parsing versions: %w", err)
	}
	return versions, nil
}

// ParseGame decodes gungeon.yml.
func ParseGame(data []byte) (*GameMetadata, error) {
	var meta GameMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing game metadata: %w", err)
	}
	return &meta, nil
}

// ParseComponentMetadata decodes a component's metadata.yml.
func ParseComponentMetadata(data []byte) (*ComponentMetadata, error) {
	var meta ComponentMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing component metadata: %w", err)
	}
	return &meta, nil
}

// LoadComponentMetadata reads and decodes the metadata.yml at path.
func LoadComponentMetadata(path string) (*ComponentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading component metadata: %w", err)
	}
	return ParseComponentMetadata(data)
}
