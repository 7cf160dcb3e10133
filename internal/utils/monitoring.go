package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitoringServer exposes health, resource stats and prometheus metrics
// for a running node.
type MonitoringServer struct {
	ctx       context.Context
	cancel    context.CancelFunc
	server    *http.Server
	listener  net.Listener
	port      string
	startTime time.Time
	logger    *LogsManager
	config    *ConfigManager

	requestCount    int64
	errorCount      int64
	memStats        sync.RWMutex
	lastMemStats    runtime.MemStats
	lastStatsUpdate time.Time
}

type ResourceStats struct {
	Timestamp       string `json:"timestamp"`
	Goroutines      int    `json:"goroutines"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapInuseBytes  uint64 `json:"heap_inuse_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
	HeapObjects     uint64 `json:"heap_objects"`
	StackInuseBytes uint64 `json:"stack_inuse_bytes"`
	NumGC           uint32 `json:"num_gc"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	RequestCount    int64  `json:"request_count"`
	ErrorCount      int64  `json:"error_count"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Port      string `json:"port"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
}

func NewMonitoringServer(config *ConfigManager, logger *LogsManager) *MonitoringServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &MonitoringServer{
		ctx:             ctx,
		cancel:          cancel,
		startTime:       time.Now(),
		logger:          logger,
		config:          config,
		lastStatsUpdate: time.Now(),
	}
}

func parsePortList(portList string) []string {
	if portList == "" {
		return []string{}
	}
	ports := strings.Split(portList, ",")
	result := make([]string, 0, len(ports))
	for _, port := range ports {
		port = strings.TrimSpace(port)
		if port != "" {
			result = append(result, port)
		}
	}
	return result
}

func (ms *MonitoringServer) Start() error {
	monitorPort := ms.config.GetConfigWithDefault("monitor_port", "6060")
	ms.port = monitorPort

	ms.logger.Info(fmt.Sprintf("Starting monitoring server on port %s", monitorPort), "monitoring")

	fallbackPortsStr := ms.config.GetConfigWithDefault("monitor_fallback_ports", "6061,6062")
	fallbackPorts := parsePortList(fallbackPortsStr)

	ports := append([]string{monitorPort}, fallbackPorts...)
	var err error

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats/resources", ms.handleResourceStats)
	mux.HandleFunc("/health", ms.handleHealth)

	for i, port := range ports {
		ms.listener, err = net.Listen("tcp", ":"+port)
		if err != nil {
			if i < len(ports)-1 {
				ms.logger.Warn(fmt.Sprintf("monitoring port %s unavailable, trying next port: %v", port, err), "monitoring")
				continue
			}
			ms.logger.Error(fmt.Sprintf("All monitoring ports failed, last error: %v", err), "monitoring")
			return fmt.Errorf("failed to bind to any monitoring port: %v", err)
		}

		ms.port = port
		ms.logger.Info(fmt.Sprintf("Monitoring server bound to port %s (/metrics, /stats/resources, /health)", port), "monitoring")
		break
	}

	ms.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		if err := ms.server.Serve(ms.listener); err != nil && err != http.ErrServerClosed {
			ms.logger.Error(fmt.Sprintf("Monitoring server error: %v", err), "monitoring")
			atomic.AddInt64(&ms.errorCount, 1)
		}
	}()

	go ms.collectMetrics()

	return nil
}

func (ms *MonitoringServer) Stop() error {
	ms.logger.Info("Stopping monitoring server...", "monitoring")

	ms.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if ms.server != nil {
		if err := ms.server.Shutdown(ctx); err != nil {
			ms.logger.Warn(fmt.Sprintf("Error shutting down monitoring server: %v", err), "monitoring")
			return err
		}
	}

	ms.logger.Info("Monitoring server stopped successfully", "monitoring")
	return nil
}

func (ms *MonitoringServer) GetPort() string {
	return ms.port
}

func (ms *MonitoringServer) collectMetrics() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			return
		case <-ticker.C:
			ms.updateMemStats()
		}
	}
}

func (ms *MonitoringServer) updateMemStats() {
	ms.memStats.Lock()
	defer ms.memStats.Unlock()

	runtime.ReadMemStats(&ms.lastMemStats)
	ms.lastStatsUpdate = time.Now()
}

func (ms *MonitoringServer) handleResourceStats(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&ms.requestCount, 1)
	w.Header().Set("Content-Type", "application/json")

	ms.memStats.RLock()
	memStats := ms.lastMemStats
	ms.memStats.RUnlock()

	stats := ResourceStats{
		Timestamp:       time.Now().Format(time.RFC3339),
		Goroutines:      runtime.NumGoroutine(),
		HeapAllocBytes:  memStats.HeapAlloc,
		HeapInuseBytes:  memStats.HeapInuse,
		HeapSysBytes:    memStats.HeapSys,
		HeapObjects:     memStats.HeapObjects,
		StackInuseBytes: memStats.StackInuse,
		NumGC:           memStats.NumGC,
		UptimeSeconds:   int64(time.Since(ms.startTime).Seconds()),
		RequestCount:    atomic.LoadInt64(&ms.requestCount),
		ErrorCount:      atomic.LoadInt64(&ms.errorCount),
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		atomic.AddInt64(&ms.errorCount, 1)
		ms.logger.Error(fmt.Sprintf("Failed to encode resource stats: %v", err), "monitoring")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (ms *MonitoringServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&ms.requestCount, 1)
	w.Header().Set("Content-Type", "application/json")

	health := HealthStatus{
		Status:    "ok",
		Uptime:    time.Since(ms.startTime).String(),
		Port:      ms.port,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "proofmesh-v1.0",
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		atomic.AddInt64(&ms.errorCount, 1)
		ms.logger.Error(fmt.Sprintf("Failed to encode health status: %v", err), "monitoring")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
