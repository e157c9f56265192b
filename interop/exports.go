package interop

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wasm-interop/arith/internal/engine"
)

// ExportDefinition describes a function a module must export, as seen by WebAssembly.
type ExportDefinition struct {
	// Name is the export name.
	Name string
	// ParamTypes and ResultTypes are the WebAssembly types. Booleans cross the boundary as api.ValueTypeI32.
	ParamTypes, ResultTypes []api.ValueType
	// Aliases are alternative export names accepted for this function.
	Aliases []string
}

// String returns the definition in the form "add(i32, i32) -> i32".
func (d ExportDefinition) String() string {
	return d.Name + engine.Signature{Params: d.ParamTypes, Results: d.ResultTypes}.String()
}

// Exports returns the functions every loaded module exports, in the order they are resolved.
func Exports() []ExportDefinition {
	cfg := engine.NewArithConfig("", nil)
	defs := make([]ExportDefinition, 0, len(cfg.FuncNames))
	for _, name := range cfg.FuncNames {
		sig := cfg.Signatures[name]
		defs = append(defs, ExportDefinition{
			Name:        name,
			ParamTypes:  sig.Params,
			ResultTypes: sig.Results,
			Aliases:     cfg.Aliases[name],
		})
	}
	return defs
}

