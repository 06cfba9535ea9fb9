package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lyzr/flowr/internal/executor"
)

// implResolver turns a manifest's implementation_location into a runnable
// executor.Implementation (executor.Lookup's contract). context:// Urls
// resolve against the small built-in registry in builtins.go; lib:// Urls
// search libDirs for a matching Go-plugin .so file (a matching .wasm file
// is reported as unsupported); any other location is a file path that is
// loaded directly as a Go plugin, or rejected if it ends in .wasm — the actual library/WASM content resolution is an
// external Provider concern per this spec's non-goals, so this resolver
// only does the minimal "find the file, load what this binary can load"
// part, not a full content-addressed library cache.
type implResolver struct {
	libDirs []string
	native  bool

	mu    sync.Mutex
	cache map[string]executor.Implementation
}

func newImplResolver(libDirs []string, native bool) *implResolver {
	return &implResolver{libDirs: libDirs, native: native, cache: map[string]executor.Implementation{}}
}

func (r *implResolver) Lookup(location string) (executor.Implementation, error) {
	r.mu.Lock()
	if impl, ok := r.cache[location]; ok {
		r.mu.Unlock()
		return impl, nil
	}
	r.mu.Unlock()

	impl, err := r.resolve(location)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[location] = impl
	r.mu.Unlock()
	return impl, nil
}

func (r *implResolver) resolve(location string) (executor.Implementation, error) {
	if strings.HasPrefix(location, "context://") {
		ctor, ok := contextFuncs[location]
		if !ok {
			return nil, fmt.Errorf("resolver: no built-in context function %q", location)
		}
		return ctor(), nil
	}

	if strings.HasPrefix(location, "lib://") {
		name := strings.TrimPrefix(location, "lib://")
		return r.loadFromLibDirs(name)
	}

	// A relative or absolute path: manifest.ResolveLocation already made
	// it absolute relative to the manifest's own directory, so this is
	// either a .wasm module (not executable without the WASM runtime
	// this spec excludes) or a plugin built for -n/--native.
	if strings.HasSuffix(location, ".wasm") {
		return nil, fmt.Errorf("resolver: %q requires a WebAssembly host, which is out of this runtime's scope", location)
	}
	return r.loadNative(location)
}

func (r *implResolver) loadFromLibDirs(name string) (executor.Implementation, error) {
	for _, dir := range r.libDirs {
		candidate := filepath.Join(dir, filepath.FromSlash(name))
		if _, err := os.Stat(candidate + ".so"); err == nil {
			return r.loadNative(candidate + ".so")
		}
		if _, err := os.Stat(candidate + ".wasm"); err == nil {
			return nil, fmt.Errorf("resolver: lib://%s resolved to a WebAssembly module, which is out of this runtime's scope", name)
		}
	}
	return nil, fmt.Errorf("resolver: lib://%s not found in any -L libdir", name)
}

// loadNative opens a Go plugin built with `go build -buildmode=plugin`
// and looks up its exported "Implementation" symbol, matching -n's
// "prefer statically linked library implementations" — plugin loading
// doesn't apply to a statically-linked build, but this is the dynamic
// fallback when a function isn't one of the built-ins.
func (r *implResolver) loadNative(path string) (executor.Implementation, error) {
	return loadPlugin(path)
}
