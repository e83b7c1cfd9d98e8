// Package patchengine defines what the installer needs from an assembly
// patching engine, and an adapter that drives an external engine process.
package patchengine

import "context"

// Module is an assembly loaded by the engine, usable as a relink target.
type Module interface {
	Name() string
	Path() string
}

// Session patches one input assembly into one output file.
type Session interface {
	// ReadMod adds a patch assembly to the session.
	ReadMod(path string) error
	MapDependencies(ctx context.Context) error
	AutoPatch(ctx context.Context) error
	// Write produces the output file.
	Write(ctx context.Context) error
	Close() error
}

// Engine opens patch sessions.
type Engine interface {
	// LoadModule loads the assembly at path.
	LoadModule(ctx context.Context, path string) (Module, error)
	// Open starts a session reading input and writing output. relinks maps
	// symbolic module names referenced by patches to loaded modules.
	Open(ctx context.Context, input, output string, relinks map[string]Module) (Session, error)
}
