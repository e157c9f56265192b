//go:build wasmtime && amd64 && cgo

package interop

import _ "github.com/wasm-interop/arith/internal/engine/wasmtime" // registers "wasmtime"
