// Package wasmrt is the blocking WASM execution primitive spec §2 treats as
// given: execute(module, args) -> (stdout, err). It compiles and runs a WASI
// module under wazero, capturing standard output the way the teacher's
// worker captures a process pipe.
package wasmrt

import (
	"bytes"
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Runtime owns a wazero runtime instance with the WASI preview1 host
// functions instantiated, shared read-only across concurrent executions.
type Runtime struct {
	rt wazero.Runtime
}

// New creates a Runtime. Callers should Close it on shutdown.
func New(ctx context.Context) (*Runtime, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return &Runtime{rt: rt}, nil
}

// Close releases the underlying wazero runtime and all compiled modules.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Compile precompiles moduleBytes, returning a reusable handle suitable for
// caching by content hash (spec §4.6).
func (r *Runtime) Compile(ctx context.Context, moduleBytes []byte) (wazero.CompiledModule, error) {
	return r.rt.CompileModule(ctx, moduleBytes)
}

// Execute instantiates compiled with the given argv and runs it to
// completion, returning everything it wrote to stdout. Instantiation is
// always run with a fresh, independent module instance so the same
// CompiledModule can be reused concurrently across calls.
func (r *Runtime) Execute(ctx context.Context, compiled wazero.CompiledModule, args []string) (string, error) {
	var stdout bytes.Buffer

	cfg := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithArgs(append([]string{"module"}, args...)...)

	mod, err := r.rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return stdout.String(), err
	}
	defer mod.Close(ctx)

	return stdout.String(), nil
}
