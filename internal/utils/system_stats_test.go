package utils

import (
	"testing"

	"hoopsight/internal/core/processor"

	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 Bytes"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestGetSystemStatsIncludesPool(t *testing.T) {
	pool := processor.NewWorkerPool(3)
	defer pool.Shutdown()

	stats := GetSystemStats(pool, nil)
	require.Equal(t, 3, stats.WorkerCount)
	require.Equal(t, 6, stats.QueueCapacity)
	require.Positive(t, stats.NumCPU)
	require.Positive(t, stats.GoRoutines)
	require.Zero(t, stats.ActiveStreams)
}
