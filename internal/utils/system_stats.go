package utils

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"hoopsight/internal/core/processor"
	"hoopsight/internal/server/ws"

	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
)

var (
	lastCPUTime        time.Time
	lastCPUUsage       float64
	cpuUsageMutex      sync.Mutex
	cpuUsageSampleRate = 500 * time.Millisecond
)

// SystemStats enthält aktuelle System- und Anwendungsstatistiken
type SystemStats struct {
	// CPU-Statistiken
	NumCPU      int     `json:"num_cpu"`
	GoRoutines  int     `json:"go_routines"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryAlloc uint64  `json:"memory_alloc"`
	MemorySys   uint64  `json:"memory_sys"`
	MemoryHuman string  `json:"memory_human"`

	// Worker-Pool-Statistiken
	WorkerCount     int    `json:"worker_count"`
	ActiveJobs      int    `json:"active_jobs"`
	QueueCapacity   int    `json:"queue_capacity"`
	FramesProcessed uint64 `json:"frames_processed"`
	FramesFailed    uint64 `json:"frames_failed"`

	// Stream-Statistiken
	ActiveStreams int64  `json:"active_streams"`
	FramesDropped uint64 `json:"frames_dropped"`

	// Zeitstempel
	Timestamp time.Time `json:"timestamp"`
}

// FormatBytes formatiert Bytes in lesbare Einheiten (KB, MB, GB)
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d Bytes", bytes)
	}
}

// GetCPUUsage berechnet die CPU-Auslastung mit gopsutil
func GetCPUUsage() float64 {
	cpuUsageMutex.Lock()
	defer cpuUsageMutex.Unlock()

	// Innerhalb des Sampling-Intervalls den gecachten Wert zurückgeben
	if !lastCPUTime.IsZero() && time.Since(lastCPUTime) < cpuUsageSampleRate {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		log.Warnf("Failed to measure CPU usage: %v", err)
		return 0.0
	}

	var usage float64
	if len(percentages) > 0 {
		usage = percentages[0] // Gesamtauslastung aller Kerne
	}

	lastCPUTime = time.Now()
	lastCPUUsage = usage

	return usage
}

// GetSystemStats erfasst aktuelle System- und Anwendungsstatistiken.
// pool und streams dürfen nil sein.
func GetSystemStats(pool *processor.WorkerPool, streams *ws.Handler) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &SystemStats{
		NumCPU:      runtime.NumCPU(),
		GoRoutines:  runtime.NumGoroutine(),
		CPUUsage:    GetCPUUsage(),
		MemoryAlloc: memStats.Alloc,
		MemorySys:   memStats.Sys,
		MemoryHuman: FormatBytes(memStats.Alloc),
		Timestamp:   time.Now(),
	}

	if pool != nil {
		stats.WorkerCount = pool.GetWorkerCount()
		stats.ActiveJobs = pool.ActiveJobCount()
		stats.QueueCapacity = pool.GetQueueCapacity()
		stats.FramesProcessed = pool.ProcessedCount()
		stats.FramesFailed = pool.FailedCount()
	}

	if streams != nil {
		s := streams.Stats()
		stats.ActiveStreams = s.ActiveStreams
		stats.FramesDropped = s.Dropped
	}

	return stats
}
