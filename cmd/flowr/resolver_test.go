package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImplResolverLooksUpBuiltinContextFunction(t *testing.T) {
	r := newImplResolver(nil, false)
	impl, err := r.Lookup("context://stdio/stdout")
	require.NoError(t, err)
	require.IsType(t, stdoutFn{}, impl)
}

func TestImplResolverCachesLookups(t *testing.T) {
	r := newImplResolver(nil, false)
	first, err := r.Lookup("context://stdio/stdin")
	require.NoError(t, err)
	second, err := r.Lookup("context://stdio/stdin")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestImplResolverRejectsUnknownContextFunction(t *testing.T) {
	r := newImplResolver(nil, false)
	_, err := r.Lookup("context://nope/nope")
	require.Error(t, err)
}

func TestImplResolverRejectsWasmFromLibDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/sum.wasm", []byte("not actually wasm"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	r := newImplResolver([]string{dir}, false)
	_, err := r.Lookup("lib://sum")
	require.Error(t, err)
	require.Contains(t, err.Error(), "WebAssembly")
}

func TestImplResolverRejectsWasmPath(t *testing.T) {
	r := newImplResolver(nil, false)
	_, err := r.Lookup("/some/path/sum.wasm")
	require.Error(t, err)
	require.Contains(t, err.Error(), "WebAssembly")
}

func TestImplResolverReportsMissingLibrary(t *testing.T) {
	r := newImplResolver([]string{t.TempDir()}, false)
	_, err := r.Lookup("lib://nonexistent")
	require.Error(t, err)
}

