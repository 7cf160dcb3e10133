package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// SpeedTestResult holds latency probe results. Pointers are nil when no
// server produced an accepted sample.
type SpeedTestResult struct {
	AvgLatency *float64
	MinLatency *float64
	PerServer  map[string]float64
	Timestamp  int64
}

// SpeedTester measures ICMP latency against a fixed host set
type SpeedTester struct {
	config *utils.ConfigManager
	logger *utils.LogsManager

	// pingHost is swappable for tests
	pingHost func(ctx context.Context, host string, timeout time.Duration) (float64, error)
}

// NewSpeedTester creates a latency tester using pro-bing
func NewSpeedTester(config *utils.ConfigManager, logger *utils.LogsManager) *SpeedTester {
	return &SpeedTester{
		config:   config,
		logger:   logger,
		pingHost: pingHost,
	}
}

// Run probes each configured host sequentially. A sample is accepted iff
// 0 < ms < 10000; nil is returned when nothing was accepted.
func (st *SpeedTester) Run(ctx context.Context) *SpeedTestResult {
	hosts := []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"}
	timeout := 3 * time.Second
	if st.config != nil {
		hosts = st.config.GetConfigSlice("ping_hosts", hosts)
		timeout = st.config.GetConfigDuration("ping_timeout", timeout)
	}

	perServer := make(map[string]float64)
	for _, host := range hosts {
		ms, err := st.pingHost(ctx, host, timeout)
		if err != nil {
			st.logger.Debug(fmt.Sprintf("Ping to %s failed: %v", host, err), "speedtest")
			continue
		}
		if ms <= 0 || ms >= 10000 {
			st.logger.Debug(fmt.Sprintf("Rejecting implausible latency %fms from %s", ms, host), "speedtest")
			continue
		}
		perServer[host] = ms
	}

	if len(perServer) == 0 {
		return nil
	}

	var sum, min float64
	first := true
	for _, ms := range perServer {
		sum += ms
		if first || ms < min {
			min = ms
			first = false
		}
	}
	avg := sum / float64(len(perServer))

	return &SpeedTestResult{
		AvgLatency: &avg,
		MinLatency: &min,
		PerServer:  perServer,
		Timestamp:  time.Now().Unix(),
	}
}

// pingHost sends three unprivileged ICMP probes and returns the average
// round trip in milliseconds.
func pingHost(ctx context.Context, host string, timeout time.Duration) (float64, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.SetPrivileged(false)
	pinger.Count = 3
	pinger.Timeout = timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no replies from %s", host)
	}
	return float64(stats.AvgRtt) / float64(time.Millisecond), nil
}

// latencySpeedTable maps an average latency upper bound (ms) to an
// estimated download speed. Upload is assumed to be 80% of download.
var latencySpeedTable = []struct {
	maxLatencyMs float64
	download     string
}{
	{20, "50MB/s"},
	{100, "25MB/s"},
	{300, "10MB/s"},
	{750, "5MB/s"},
}

// EstimateSpeedFromLatency converts an average latency into coarse
// download/upload estimates per the fixed table.
func EstimateSpeedFromLatency(avgLatencyMs float64) (download, upload string) {
	download = "1MB/s"
	for _, row := range latencySpeedTable {
		if avgLatencyMs <= row.maxLatencyMs {
			download = row.download
			break
		}
	}

	bytes, err := ParseSpeedToBytes(download)
	if err != nil {
		return download, download
	}
	upload = FormatSpeed(bytes * 0.8)
	return download, upload
}

// ParseSpeedToBytes parses "1.5 MB/s" style strings into bytes per
// second. Units are binary (KB=1024) and case-insensitive.
func ParseSpeedToBytes(speed string) (float64, error) {
	s := strings.ToUpper(strings.TrimSpace(speed))
	s = strings.TrimSuffix(s, "/S")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable speed %q: %v", speed, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative speed %q", speed)
	}
	return value * multiplier, nil
}

// FormatSpeed renders bytes per second in the "X.X MB/s" style used by
// snapshot records.
func FormatSpeed(bytesPerSecond float64) string {
	switch {
	case bytesPerSecond >= 1024*1024*1024:
		return fmt.Sprintf("%.1fGB/s", bytesPerSecond/(1024*1024*1024))
	case bytesPerSecond >= 1024*1024:
		return fmt.Sprintf("%.1fMB/s", bytesPerSecond/(1024*1024))
	case bytesPerSecond >= 1024:
		return fmt.Sprintf("%.1fKB/s", bytesPerSecond/1024)
	default:
		return fmt.Sprintf("%.1fB/s", bytesPerSecond)
	}
}
