// Package version reports the version of this module, as recorded by the Go toolchain in the build info.
package version

import "runtime/debug"

// Default is returned when the build has no module version, for example when built from a local checkout.
const Default = "dev"

const modulePath = "github.com/wasm-interop/arith"

// version may be overridden with -ldflags "-X github.com/wasm-interop/arith/internal/version.version=vX.Y.Z"
var version = ""

// GetArithVersion returns the version of this module, whether it is the main module or a dependency.
func GetArithVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionOf(info)
}

func versionOf(info *debug.BuildInfo) (ret string) {
	if info.Main.Path == modulePath {
		ret = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			ret = dep.Version
			if dep.Replace != nil && dep.Replace.Version != "" {
				ret = dep.Replace.Version
			}
		}
	}
	if versionMissing(ret) {
		return Default
	}
	return
}

// versionMissing returns true when the toolchain didn't record a version.
func versionMissing(v string) bool {
	return v == "" || v == "(devel)"
}
