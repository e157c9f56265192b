// Package wasmgen encodes small WebAssembly 1.0 (20191205) modules whose functions only use their parameters.
//
// It covers what the arithmetic module needs: type, import, function, export, code and "name" sections. Only
// functions are imported. There are no memories or locals beyond parameters.
package wasmgen

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wasm-interop/arith/internal/leb128"
)

// Magic is the 4 byte preamble (literally "\0asm") of the binary format
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-magic
var Magic = []byte{0x00, 0x61, 0x73, 0x6D}

// version is format version and doesn't change between known specification versions
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-version
var version = []byte{0x01, 0x00, 0x00, 0x00}

// Section IDs used by this encoder.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
const (
	SectionIDCustom   byte = 0
	SectionIDType     byte = 1
	SectionIDImport   byte = 2
	SectionIDFunction byte = 3
	SectionIDExport   byte = 7
	SectionIDCode     byte = 10
)

const (
	// externTypeFunc is the only import and export kind this encoder writes.
	externTypeFunc byte = 0x00
	// funcTypeForm prefixes each function type.
	funcTypeForm byte = 0x60

	subsectionIDModuleName    byte = 0
	subsectionIDFunctionNames byte = 1
)

// Opcodes used in function bodies.
const (
	OpcodeUnreachable byte = 0x00
	OpcodeEnd         byte = 0x0b
	OpcodeLocalGet    byte = 0x20
	OpcodeI32Const    byte = 0x41
	OpcodeI32Eq       byte = 0x46
	OpcodeI32Add      byte = 0x6a
)

// Func is an exported function.
type Func struct {
	// Name is both the export name and the name recorded in the "name" section.
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	// Body is the instruction sequence without the trailing OpcodeEnd.
	Body []byte
}

// Import is an imported function. Imports precede Funcs in the function index space.
type Import struct {
	Module, Name string
	Params       []api.ValueType
	Results      []api.ValueType
}

// Module is the input to EncodeModule.
type Module struct {
	// Name is written to the "name" section when not empty.
	Name    string
	Imports []Import
	Funcs   []Func
}

// EncodeModule returns m encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// Functions that share a signature share a type index. Functions are exported in the order given.
func EncodeModule(m *Module) []byte {
	var types [][]byte
	typeIndex := map[string]uint32{}
	typeIndexOf := func(params, results []api.ValueType) uint32 {
		encoded := encodeFunctionType(params, results)
		idx, ok := typeIndex[string(encoded)]
		if !ok {
			idx = uint32(len(types))
			typeIndex[string(encoded)] = idx
			types = append(types, encoded)
		}
		return idx
	}

	imports := make([][]byte, len(m.Imports))
	for i := range m.Imports {
		imp := &m.Imports[i]
		imports[i] = encodeImport(imp, typeIndexOf(imp.Params, imp.Results))
	}
	funcTypeIndices := make([]uint32, len(m.Funcs))
	for i := range m.Funcs {
		funcTypeIndices[i] = typeIndexOf(m.Funcs[i].Params, m.Funcs[i].Results)
	}

	bytes := append(append([]byte{}, Magic...), version...)
	if len(types) > 0 {
		bytes = append(bytes, encodeSection(SectionIDType, encodeVector(types))...)
	}
	if len(imports) > 0 {
		bytes = append(bytes, encodeSection(SectionIDImport, encodeVector(imports))...)
	}

	if len(m.Funcs) > 0 {
		indices := leb128.EncodeUint32(uint32(len(funcTypeIndices)))
		for _, idx := range funcTypeIndices {
			indices = append(indices, leb128.EncodeUint32(idx)...)
		}
		bytes = append(bytes, encodeSection(SectionIDFunction, indices)...)

		exports := make([][]byte, len(m.Funcs))
		codes := make([][]byte, len(m.Funcs))
		for i := range m.Funcs {
			exports[i] = encodeExport(m.Funcs[i].Name, uint32(len(m.Imports)+i))
			codes[i] = encodeCode(m.Funcs[i].Body)
		}
		bytes = append(bytes, encodeSection(SectionIDExport, encodeVector(exports))...)
		bytes = append(bytes, encodeSection(SectionIDCode, encodeVector(codes))...)
	}

	if names := encodeNameSectionData(m); len(names) > 0 {
		custom := append(encodeSizePrefixed([]byte("name")), names...)
		bytes = append(bytes, encodeSection(SectionIDCustom, custom)...)
	}
	return bytes
}

// encodeFunctionType returns a signature encoded by the byte 0x60 followed by the respective vectors of
// parameter and result types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A4
func encodeFunctionType(params, results []api.ValueType) []byte {
	data := []byte{funcTypeForm}
	data = append(data, encodeValTypes(params)...)
	return append(data, encodeValTypes(results)...)
}

func encodeValTypes(vt []api.ValueType) []byte {
	data := leb128.EncodeUint32(uint32(len(vt)))
	return append(data, vt...)
}

// encodeImport encodes a function import of the given type index.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
func encodeImport(i *Import, typeIndex uint32) []byte {
	data := encodeSizePrefixed([]byte(i.Module))
	data = append(data, encodeSizePrefixed([]byte(i.Name))...)
	data = append(data, externTypeFunc)
	return append(data, leb128.EncodeUint32(typeIndex)...)
}

// encodeExport encodes a function export.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#export-section%E2%91%A0
func encodeExport(name string, funcIndex uint32) []byte {
	data := encodeSizePrefixed([]byte(name))
	data = append(data, externTypeFunc)
	return append(data, leb128.EncodeUint32(funcIndex)...)
}

// encodeCode encodes a function body with no locals beyond its parameters.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
func encodeCode(body []byte) []byte {
	code := leb128.EncodeUint32(0) // local blocks
	code = append(code, body...)
	code = append(code, OpcodeEnd)
	return encodeSizePrefixed(code)
}

// encodeNameSectionData serializes the module and function name subsections. This returns nil when there are no
// names to encode.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namesec
func encodeNameSectionData(m *Module) (data []byte) {
	if m.Name != "" {
		data = append(data, encodeSubsection(subsectionIDModuleName, encodeSizePrefixed([]byte(m.Name)))...)
	}
	if len(m.Funcs) > 0 {
		assocs := make([][]byte, len(m.Funcs))
		for i := range m.Funcs {
			funcIndex := uint32(len(m.Imports) + i)
			assocs[i] = append(leb128.EncodeUint32(funcIndex), encodeSizePrefixed([]byte(m.Funcs[i].Name))...)
		}
		data = append(data, encodeSubsection(subsectionIDFunctionNames, encodeVector(assocs))...)
	}
	return
}

func encodeSubsection(id byte, content []byte) []byte {
	return append([]byte{id}, encodeSizePrefixed(content)...)
}

// encodeSection encodes the sectionID, the size of its contents in bytes, followed by the contents.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func encodeSection(sectionID byte, contents []byte) []byte {
	return append([]byte{sectionID}, encodeSizePrefixed(contents)...)
}

func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}

// encodeVector prefixes the concatenation of items with their count.
func encodeVector(items [][]byte) []byte {
	data := leb128.EncodeUint32(uint32(len(items)))
	for _, item := range items {
		data = append(data, item...)
	}
	return data
}
