//go:build wasmer && amd64 && cgo && !windows

package interop

import _ "github.com/wasm-interop/arith/internal/engine/wasmer" // registers "wasmer"
