package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	tests := []struct {
		name     string
		info     *debug.BuildInfo
		expected string
	}{
		{
			name:     "main module",
			info:     &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "v1.2.3"}},
			expected: "v1.2.3",
		},
		{
			name:     "main module devel",
			info:     &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "(devel)"}},
			expected: Default,
		},
		{
			name: "dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/app", Version: "(devel)"},
				Deps: []*debug.Module{{Path: modulePath, Version: "v0.1.0"}},
			},
			expected: "v0.1.0",
		},
		{
			name: "replaced dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/app"},
				Deps: []*debug.Module{{
					Path:    modulePath,
					Version: "v0.1.0",
					Replace: &debug.Module{Path: "../arith", Version: "v0.2.0"},
				}},
			},
			expected: "v0.2.0",
		},
		{
			name:     "unrelated",
			info:     &debug.BuildInfo{Main: debug.Module{Path: "example.com/app", Version: "v9.9.9"}},
			expected: Default,
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, versionOf(tt.info))
		})
	}
}

func TestGetArithVersion(t *testing.T) {
	require.NotEmpty(t, GetArithVersion())
}
