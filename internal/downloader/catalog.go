// Package downloader knows where components come from: it loads the
// component catalog and fetches and extracts component archives.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/metadata"
)

// BaseDomain hosts components.yml and gungeon.yml.
const BaseDomain = "modthegungeon.eu/reloaded"

// BaseURL returns the catalog root for the chosen scheme.
func BaseURL(forceHTTP bool) string {
	if forceHTTP {
		return "http://" + BaseDomain
	}
	return "https://" + BaseDomain
}

// Options configures a Catalog.
type Options struct {
	// BaseURL overrides the catalog root; empty means BaseURL(ForceHTTP).
	BaseURL   string
	ForceHTTP bool
	// Offline skips the official component list. Custom files still load.
	Offline bool
	// DefaultCustomFile is merged first and may be missing. Every file in
	// CustomFiles must exist.
	DefaultCustomFile string
	CustomFiles       []string
	Client      *http.Client
	// Progress shows a progress bar for archive downloads. It is only
	// honoured when stdout is a terminal.
	Progress bool
}

// MissingComponentFileError reports an explicitly listed custom component
// file that does not exist.
type MissingComponentFileError struct {
	Path string
}

func (e *MissingComponentFileError) Error() string {
	return fmt.Sprintf("Local component file '%s' doesn't exist - verify your settings?", e.Path)
}

func (e *MissingComponentFileError) Unwrap() error { return os.ErrNotExist }

// Catalog holds the known components by name.
type Catalog struct {
	client     *http.Client
	baseURL    string
	progress   bool
	components map[string]*metadata.Component
	game       *metadata.GameMetadata
}

// NewCatalog loads components.yml (unless offline) and merges any custom
// component files on top of it.
func NewCatalog(ctx context.Context, opts Options) (*Catalog, error) {
	c := &Catalog{
		client:     opts.Client,
		baseURL:    opts.BaseURL,
		progress:   opts.Progress && stdoutIsTerminal(),
		components: make(map[string]*metadata.Component),
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = BaseURL(opts.ForceHTTP)
	}

	if !opts.Offline {
		logging.Debugf("Verbose: components.yml URL: %s\n", c.ComponentsURL())
		data, err := c.fetch(ctx, c.ComponentsURL())
		if err != nil {
			return nil, fmt.Errorf("fetching component list: %w", err)
		}
		comps, err := metadata.ParseComponents(data)
		if err != nil {
			return nil, err
		}
		for i := range comps {
			c.components[comps[i].Name] = &comps[i]
		}
	}

	files := opts.CustomFiles
	if opts.DefaultCustomFile != "" {
		files = append([]string{opts.DefaultCustomFile}, files...)
	}
	for i, path := range files {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && opts.DefaultCustomFile != "" {
				logging.Debugf("Verbose: custom component file %s does not exist\n", path)
				continue
			}
			return nil, &MissingComponentFileError{Path: path}
		}
		if err != nil {
			return nil, fmt.Errorf("reading custom components: %w", err)
		}
		if err := c.AddComponents(ctx, data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return c, nil
}

func (c *Catalog) ComponentsURL() string   { return c.baseURL + "/components.yml" }
func (c *Catalog) GameMetadataURL() string { return c.baseURL + "/gungeon.yml" }

// AddComponents merges a components document into the catalog. Versions of
// a component that is already known replace ones with the same key and are
// appended otherwise.
func (c *Catalog) AddComponents(ctx context.Context, data []byte) error {
	comps, err := metadata.ParseComponents(data)
	if err != nil {
		return err
	}
	for i := range comps {
		comp := &comps[i]
		existing, ok := c.components[comp.Name]
		if !ok {
			c.components[comp.Name] = comp
			continue
		}

		versions, err := c.Versions(ctx, comp)
		if err != nil {
			return err
		}
		if _, err := c.Versions(ctx, existing); err != nil {
			return err
		}
		existing.MergeVersions(versions)
	}
	return nil
}

// Component returns the component called name, or nil.
func (c *Catalog) Component(name string) *metadata.Component {
	return c.components[name]
}

// Components returns every component sorted by name.
func (c *Catalog) Components() []*metadata.Component {
	out := make([]*metadata.Component, 0, len(c.components))
	for _, comp := range c.components {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Versions returns the versions of comp, fetching versions_url on first use.
func (c *Catalog) Versions(ctx context.Context, comp *metadata.Component) ([]metadata.Version, error) {
	if comp.Versions != nil {
		return comp.Versions, nil
	}
	if comp.VersionsURL == "" {
		return nil, fmt.Errorf("component %s: both versions_url and versions aren't set", comp.Name)
	}

	data, err := c.fetch(ctx, comp.VersionsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching versions of %s: %w", comp.Name, err)
	}
	versions, err := metadata.ParseVersions(data)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", comp.Name, err)
	}
	if versions == nil {
		versions = []metadata.Version{}
	}
	comp.Versions = versions
	return versions, nil
}

// GameMetadata returns gungeon.yml, fetched once.
func (c *Catalog) GameMetadata(ctx context.Context) (*metadata.GameMetadata, error) {
	if c.game != nil {
		return c.game, nil
	}
	data, err := c.fetch(ctx, c.GameMetadataURL())
	if err != nil {
		return nil, fmt.Errorf("fetching game metadata: %w", err)
	}
	game, err := metadata.ParseGame(data)
	if err != nil {
		return nil, err
	}
	c.game = game
	return game, nil
}
