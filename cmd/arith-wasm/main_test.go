//go:build wasip1

package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExports(t *testing.T) {
	require.Equal(t, int32(16), add(7, 9))
	require.Equal(t, int32(math.MinInt32), add(math.MaxInt32, 1))
	require.Equal(t, int32(1), isAnswerFortyTwo(42))
	require.Equal(t, int32(0), isAnswerFortyTwo(43))
}
