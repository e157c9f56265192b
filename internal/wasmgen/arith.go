package wasmgen

import (
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wasm-interop/arith"
	"github.com/wasm-interop/arith/internal/leb128"
)

// ArithModuleName is the module name recorded in ArithModule.
const ArithModuleName = "arith"

// ArithModule returns a module exporting "add" and "isAnswerFortyTwo", equivalent to building cmd/arith-wasm
// but without WASI imports. It is the text format below:
//
//	(module $arith
//	  (func $add (export "add") (param i32 i32) (result i32)
//	    local.get 0
//	    local.get 1
//	    i32.add)
//	  (func $isAnswerFortyTwo (export "isAnswerFortyTwo") (param i32) (result i32)
//	    local.get 0
//	    i32.const 42
//	    i32.eq))
func ArithModule() []byte {
	return EncodeModule(&Module{Name: ArithModuleName, Funcs: arithFuncs()})
}

// ArithReactorModule returns ArithModule in the shape of a WASI reactor, as cmd/arith-wasm is when built with
// GOOS=wasip1 and -buildmode=c-shared: it imports functions from "wasi_snapshot_preview1" and exports an
// "_initialize" function, here empty, that hosts call before any other export.
func ArithReactorModule() []byte {
	i32 := api.ValueTypeI32
	return EncodeModule(&Module{
		Name: ArithModuleName,
		Imports: []Import{
			{
				Module:  wasi_snapshot_preview1.ModuleName,
				Name:    "fd_write",
				Params:  []api.ValueType{i32, i32, i32, i32},
				Results: []api.ValueType{i32},
			},
			{
				Module:  wasi_snapshot_preview1.ModuleName,
				Name:    "random_get",
				Params:  []api.ValueType{i32, i32},
				Results: []api.ValueType{i32},
			},
		},
		Funcs: append([]Func{{Name: "_initialize"}}, arithFuncs()...),
	})
}

func arithFuncs() []Func {
	i32 := api.ValueTypeI32
	isAnswer := []byte{OpcodeLocalGet, 0, OpcodeI32Const}
	isAnswer = append(isAnswer, leb128.EncodeInt32(arith.Answer)...)
	isAnswer = append(isAnswer, OpcodeI32Eq)

	return []Func{
		{
			Name:    arith.ExportAdd,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Body:    []byte{OpcodeLocalGet, 0, OpcodeLocalGet, 1, OpcodeI32Add},
		},
		{
			Name:    arith.ExportIsAnswerFortyTwo,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Body:    isAnswer,
		},
	}
}
