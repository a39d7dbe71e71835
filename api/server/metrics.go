package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	ChainHeight    int     `json:"chain_height"`
	MempoolPending int     `json:"mempool_pending"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	Goroutines     int     `json:"goroutines"`
}

var startTime = time.Now()

// handleMetrics reports process and chain metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuLoad := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuLoad = percents[0]
	}

	height, _ := s.ledger.ChainHeight()
	writeJSON(w, http.StatusOK, NodeMetrics{
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		ChainHeight:    height,
		MempoolPending: s.engine.Stats().PendingCount,
		CPULoadPercent: cpuLoad,
		MemoryMB:       float64(m.Alloc) / (1024 * 1024),
		Goroutines:     runtime.NumGoroutine(),
	})
}
