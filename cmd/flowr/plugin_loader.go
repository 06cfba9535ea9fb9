package main

import (
	"fmt"
	"plugin"

	"github.com/lyzr/flowr/internal/executor"
)

// loadPlugin opens a Go plugin (-buildmode=plugin .so) and resolves its
// exported "Implementation" symbol, which must itself satisfy
// executor.Implementation. This is the concrete, minimal stand-in for
// the "statically linked library implementations" -n/--native refers to;
// the full library-content-resolution Provider is out of this runtime's
// scope per spec.
func loadPlugin(path string) (executor.Implementation, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resolver: open plugin %q: %w", path, err)
	}
	sym, err := p.Lookup("Implementation")
	if err != nil {
		return nil, fmt.Errorf("resolver: plugin %q missing Implementation symbol: %w", path, err)
	}
	impl, ok := sym.(executor.Implementation)
	if !ok {
		return nil, fmt.Errorf("resolver: plugin %q's Implementation symbol doesn't satisfy executor.Implementation", path)
	}
	return impl, nil
}
