// Package patcher applies a component's patch assemblies to the game's
// managed assemblies, one target at a time.
package patcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caedis/mtg-installer/internal/component"
	"github.com/caedis/mtg-installer/internal/logging"
	"github.com/caedis/mtg-installer/internal/patchengine"
)

const tmpSuffix = ".patched"

// EngineError reports a patch engine failure for one target.
type EngineError struct {
	Target string
	Stage  string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("patching %s failed during %s: %v", e.Target, e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ModuleCache holds modules loaded for relinking during one run, keyed by
// file name, so each file is loaded at most once.
type ModuleCache struct {
	engine  patchengine.Engine
	dir     string
	modules map[string]patchengine.Module
}

// NewModuleCache returns an empty cache loading modules from dir.
func NewModuleCache(engine patchengine.Engine, dir string) *ModuleCache {
	return &ModuleCache{engine: engine, dir: dir, modules: make(map[string]patchengine.Module)}
}

// Get returns the module for file, loading it on first use.
func (c *ModuleCache) Get(ctx context.Context, file string) (patchengine.Module, error) {
	if m, ok := c.modules[file]; ok {
		return m, nil
	}
	logging.Debugf("Verbose: loading relink module %s\n", file)
	m, err := c.engine.LoadModule(ctx, filepath.Join(c.dir, file))
	if err != nil {
		return nil, err
	}
	c.modules[file] = m
	return m, nil
}

// Len is the number of loaded modules.
func (c *ModuleCache) Len() int { return len(c.modules) }

// Orchestrator runs the patch protocol for installed components.
type Orchestrator struct {
	Engine patchengine.Engine
	// LeavePatchAssemblies keeps the .mm.dll files in the managed directory
	// after patching.
	LeavePatchAssemblies bool
}

// Targets returns the patch targets in order: the component's own order if
// it declares one, otherwise the game's.
func Targets(comp *component.Installable, viable []string) []string {
	if comp.Metadata != nil && len(comp.Metadata.OrderedTargets) > 0 {
		return comp.Metadata.OrderedTargets
	}
	return viable
}

// Apply patches every target that comp has patch assemblies for. The first
// engine failure stops the run; targets already replaced stay replaced.
func (o *Orchestrator) Apply(ctx context.Context, managedDir string, comp *component.Installable, viable []string) error {
	installed := comp.InstalledPatchAssemblies(managedDir)
	cache := NewModuleCache(o.Engine, managedDir)

	for _, target := range Targets(comp, viable) {
		if err := o.patchTarget(ctx, managedDir, comp, target, installed, cache); err != nil {
			return err
		}
	}

	if !o.LeavePatchAssemblies {
		for _, name := range installed {
			logging.Debugf("Verbose: cleaning up patch assembly %s\n", name)
			if err := os.Remove(filepath.Join(managedDir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing patch assembly %s: %w", name, err)
			}
		}
	}

	return cleanDebugSymbols(managedDir)
}

func (o *Orchestrator) patchTarget(ctx context.Context, managedDir string, comp *component.Installable, target string, installed []string, cache *ModuleCache) error {
	var relinks map[string]patchengine.Module
	if comp.Metadata != nil {
		if rm := comp.Metadata.RelinkMap[target]; len(rm) > 0 {
			relinks = make(map[string]patchengine.Module, len(rm))
			for _, symbol := range sortedKeys(rm) {
				mod, err := cache.Get(ctx, rm[symbol])
				if err != nil {
					return &EngineError{Target: target, Stage: "relink", Err: err}
				}
				logging.Debugf("Verbose: relinking %s -> %s\n", symbol, rm[symbol])
				relinks[symbol] = mod
			}
		}
	}

	input := filepath.Join(managedDir, target+".dll")
	output := filepath.Join(managedDir, target+tmpSuffix)

	session, err := o.Engine.Open(ctx, input, output, relinks)
	if err != nil {
		return &EngineError{Target: target, Stage: "open", Err: err}
	}

	var mods []string
	for _, name := range installed {
		if strings.HasPrefix(name, target+".") {
			mods = append(mods, name)
		}
	}
	if len(mods) == 0 {
		logging.Infof("  Not patching %s because this component has no patches for it\n", target)
		return session.Close()
	}

	logging.Infof("  Patching target: %s\n", target)
	if err := runSession(ctx, session, managedDir, target, mods); err != nil {
		session.Close()
		return err
	}
	if err := session.Close(); err != nil {
		return &EngineError{Target: target, Stage: "close", Err: err}
	}

	logging.Debugf("Verbose: replacing original (%s => %s)\n", output, input)
	if err := os.Remove(input); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", input, err)
	}
	if err := os.Rename(output, input); err != nil {
		return fmt.Errorf("replacing %s: %w", input, err)
	}
	return nil
}

func runSession(ctx context.Context, s patchengine.Session, managedDir, target string, mods []string) error {
	for _, name := range mods {
		logging.Debugf("Verbose: using patch assembly %s\n", name)
		if err := s.ReadMod(filepath.Join(managedDir, name)); err != nil {
			return &EngineError{Target: target, Stage: "read mod " + name, Err: err}
		}
	}
	if err := s.MapDependencies(ctx); err != nil {
		return &EngineError{Target: target, Stage: "dependency mapping", Err: err}
	}
	if err := s.AutoPatch(ctx); err != nil {
		return &EngineError{Target: target, Stage: "patching", Err: err}
	}
	if err := s.Write(ctx); err != nil {
		return &EngineError{Target: target, Stage: "write", Err: err}
	}
	return nil
}

func cleanDebugSymbols(managedDir string) error {
	logging.Debugf("Verbose: cleaning up patched debug symbols\n")
	entries, err := os.ReadDir(managedDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", managedDir, err)
	}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !(strings.HasSuffix(n, tmpSuffix+".mdb") || strings.HasSuffix(n, tmpSuffix+".pdb")) {
			continue
		}
		if err := os.Remove(filepath.Join(managedDir, n)); err != nil {
			return fmt.Errorf("removing %s: %w", n, err)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
