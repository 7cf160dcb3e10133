package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Collector assembles device/network snapshots. Collect is best-effort:
// every stage degrades to a named fallback instead of failing the record.
type Collector struct {
	config   *utils.ConfigManager
	logger   *utils.LogsManager
	prober   *NetProber
	speed    *SpeedTester
	location LocationProvider

	// swappable for tests
	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	ioCounters func(ctx context.Context) ([]psnet.IOCountersStat, error)
}

// NewCollector wires the default device/network collector
func NewCollector(config *utils.ConfigManager, logger *utils.LogsManager) *Collector {
	return &Collector{
		config:   config,
		logger:   logger,
		prober:   NewNetProber(logger),
		speed:    NewSpeedTester(config, logger),
		location: NewHTTPLocationProvider(config, logger),
		hostInfo: host.InfoWithContext,
		ioCounters: func(ctx context.Context) ([]psnet.IOCountersStat, error) {
			return psnet.IOCountersWithContext(ctx, false)
		},
	}
}

// Collect builds one snapshot. It never returns an error; missing data is
// represented by fallback values or nulls.
func (c *Collector) Collect(ctx context.Context) *database.DeviceDataRecord {
	record := &database.DeviceDataRecord{
		Timestamp: time.Now().Unix(),
	}

	c.collectIdentity(ctx, record)
	c.collectNetwork(record)
	c.collectSpeed(ctx, record)
	c.collectLocation(ctx, record)

	return record
}

// collectIdentity fills host identity fields, each guarded individually
func (c *Collector) collectIdentity(ctx context.Context, record *database.DeviceDataRecord) {
	record.DeviceID = "unknown-device"
	record.UniqueID = "unknown-device"
	record.DeviceName = "unknown-host"
	record.OS = "unknown"
	record.OSVersion = "unknown"

	info, err := c.hostInfo(ctx)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("Failed to read host info: %v", err), "collector")
		return
	}

	if info.HostID != "" {
		record.DeviceID = info.HostID
		record.UniqueID = info.HostID
	}
	if info.Hostname != "" {
		record.DeviceName = info.Hostname
	}
	if info.OS != "" {
		record.OS = info.OS
	}
	if info.PlatformVersion != "" {
		record.OSVersion = info.PlatformVersion
	} else if info.KernelVersion != "" {
		record.OSVersion = info.KernelVersion
	}
}

func (c *Collector) collectNetwork(record *database.DeviceDataRecord) {
	info := c.prober.Snapshot()
	record.NetworkType = info.NetworkType
	record.AirplaneMode = info.AirplaneMode
	record.InternetReachable = info.InternetReachable
	record.IPAddress = info.IPAddress
}

// collectSpeed fills latency and throughput. Raw interface counters are
// sampled over a short window; when both directions read zero the speeds
// are estimated from latency instead.
func (c *Collector) collectSpeed(ctx context.Context, record *database.DeviceDataRecord) {
	if record.AirplaneMode {
		return
	}

	result := c.speed.Run(ctx)
	if result != nil {
		record.AvgLatency = result.AvgLatency
		record.BestLatency = result.MinLatency
		record.ServerTested = bestServer(result.PerServer)
	}

	download, upload := c.sampleThroughput(ctx)
	if download == 0 && upload == 0 {
		if record.AvgLatency != nil {
			record.DownloadSpeed, record.UploadSpeed = EstimateSpeedFromLatency(*record.AvgLatency)
		}
		return
	}

	record.DownloadSpeed = FormatSpeed(download)
	record.UploadSpeed = FormatSpeed(upload)
}

// sampleThroughput reads interface byte counters twice over the sample
// window and returns recv/sent rates in bytes per second.
func (c *Collector) sampleThroughput(ctx context.Context) (download, upload float64) {
	window := time.Second
	if c.config != nil {
		window = c.config.GetConfigDuration("throughput_sample_window", window)
	}

	before, err := c.ioCounters(ctx)
	if err != nil || len(before) == 0 {
		return 0, 0
	}

	select {
	case <-ctx.Done():
		return 0, 0
	case <-time.After(window):
	}

	after, err := c.ioCounters(ctx)
	if err != nil || len(after) == 0 {
		return 0, 0
	}

	recvDelta := float64(after[0].BytesRecv) - float64(before[0].BytesRecv)
	sentDelta := float64(after[0].BytesSent) - float64(before[0].BytesSent)
	if recvDelta < 0 || sentDelta < 0 {
		return 0, 0
	}

	seconds := window.Seconds()
	return recvDelta / seconds, sentDelta / seconds
}

// bestServer returns the host with the lowest observed latency
func bestServer(perServer map[string]float64) string {
	best := ""
	bestMs := 0.0
	for host, ms := range perServer {
		if best == "" || ms < bestMs {
			best = host
			bestMs = ms
		}
	}
	return best
}

func (c *Collector) collectLocation(ctx context.Context, record *database.DeviceDataRecord) {
	timeout := 10 * time.Second
	if c.config != nil {
		timeout = c.config.GetConfigDuration("location_timeout", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	location, err := c.location.GetLocation(ctx)
	if err != nil {
		c.logger.Debug(fmt.Sprintf("Location fetch failed, leaving fields null: %v", err), "collector")
		return
	}

	record.Latitude = location.Latitude
	record.Longitude = location.Longitude
	record.Altitude = location.Altitude
	record.Accuracy = location.Accuracy
}
