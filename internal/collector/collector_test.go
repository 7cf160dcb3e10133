package collector

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

type fakeLocationProvider struct {
	location *Location
	err      error
}

func (f *fakeLocationProvider) GetLocation(ctx context.Context) (*Location, error) {
	return f.location, f.err
}

func newTestCollector(t *testing.T) *Collector {
	cm := utils.NewConfigManager("")
	cm.SetConfig("throughput_sample_window", "1ms")
	logger := utils.NewLogsManager(cm)

	c := NewCollector(cm, logger)

	c.hostInfo = func(ctx context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			HostID:          "host-id-1",
			Hostname:        "test-host",
			OS:              "linux",
			PlatformVersion: "22.04",
		}, nil
	}
	c.ioCounters = func(ctx context.Context) ([]psnet.IOCountersStat, error) {
		return []psnet.IOCountersStat{{BytesRecv: 0, BytesSent: 0}}, nil
	}

	c.prober.listInterfaces = func() ([]net.Interface, error) {
		return []net.Interface{{Name: "eth0", Flags: net.FlagUp}}, nil
	}
	c.prober.probeInternet = func(timeout time.Duration) bool { return true }
	c.prober.dialOutbound = func() (string, error) { return "192.0.2.1", nil }
	c.prober.retryPause = time.Millisecond

	c.speed.pingHost = func(ctx context.Context, hostAddr string, timeout time.Duration) (float64, error) {
		return 15, nil
	}

	lat, lon := 48.2, 16.37
	c.location = &fakeLocationProvider{location: &Location{Latitude: &lat, Longitude: &lon}}

	return c
}

func TestCollectHappyPath(t *testing.T) {
	c := newTestCollector(t)

	record := c.Collect(context.Background())

	if record.DeviceID != "host-id-1" || record.DeviceName != "test-host" {
		t.Errorf("Unexpected identity: %s / %s", record.DeviceID, record.DeviceName)
	}
	if record.OS != "linux" || record.OSVersion != "22.04" {
		t.Errorf("Unexpected OS fields: %s %s", record.OS, record.OSVersion)
	}
	if record.NetworkType != "ethernet" {
		t.Errorf("Expected ethernet network type, got %s", record.NetworkType)
	}
	if record.IPAddress != "192.0.2.1" {
		t.Errorf("Expected resolved IP, got %s", record.IPAddress)
	}
	if record.AvgLatency == nil || *record.AvgLatency != 15 {
		t.Errorf("Expected avg latency 15, got %v", record.AvgLatency)
	}
	// Zero counters force the latency-based estimate: 15ms -> 50MB/s
	if record.DownloadSpeed != "50MB/s" {
		t.Errorf("Expected estimated download 50MB/s, got %s", record.DownloadSpeed)
	}
	if record.Latitude == nil || *record.Latitude != 48.2 {
		t.Errorf("Expected latitude 48.2, got %v", record.Latitude)
	}
	if record.Timestamp == 0 {
		t.Error("Expected timestamp to be set")
	}
}

func TestCollectIdentityFallbacks(t *testing.T) {
	c := newTestCollector(t)
	c.hostInfo = func(ctx context.Context) (*host.InfoStat, error) {
		return nil, fmt.Errorf("host info unavailable")
	}

	record := c.Collect(context.Background())

	if record.DeviceID != "unknown-device" {
		t.Errorf("Expected unknown-device fallback, got %s", record.DeviceID)
	}
	if record.DeviceName != "unknown-host" {
		t.Errorf("Expected unknown-host fallback, got %s", record.DeviceName)
	}
	if record.OS != "unknown" {
		t.Errorf("Expected unknown OS fallback, got %s", record.OS)
	}
}

func TestCollectLocationFailureLeavesNulls(t *testing.T) {
	c := newTestCollector(t)
	c.location = &fakeLocationProvider{err: fmt.Errorf("geolocation down")}

	record := c.Collect(context.Background())

	if record.Latitude != nil || record.Longitude != nil || record.Altitude != nil || record.Accuracy != nil {
		t.Error("Expected all location fields null on provider failure")
	}
}

func TestCollectAirplaneModeSkipsProbes(t *testing.T) {
	c := newTestCollector(t)
	c.prober.listInterfaces = func() ([]net.Interface, error) {
		return []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, nil
	}

	pinged := false
	c.speed.pingHost = func(ctx context.Context, hostAddr string, timeout time.Duration) (float64, error) {
		pinged = true
		return 10, nil
	}

	record := c.Collect(context.Background())

	if !record.AirplaneMode {
		t.Error("Expected airplane mode")
	}
	if pinged {
		t.Error("Expected speed test to be skipped in airplane mode")
	}
	if record.AvgLatency != nil {
		t.Error("Expected no latency in airplane mode")
	}
}

func TestCollectMeasuredThroughput(t *testing.T) {
	c := newTestCollector(t)

	calls := 0
	c.ioCounters = func(ctx context.Context) ([]psnet.IOCountersStat, error) {
		calls++
		if calls == 1 {
			return []psnet.IOCountersStat{{BytesRecv: 0, BytesSent: 0}}, nil
		}
		return []psnet.IOCountersStat{{BytesRecv: 10 * 1024 * 1024, BytesSent: 5 * 1024 * 1024}}, nil
	}
	c.config.SetConfig("throughput_sample_window", "1s")

	record := c.Collect(context.Background())

	if record.DownloadSpeed != "10.0MB/s" {
		t.Errorf("Expected measured download 10.0MB/s, got %s", record.DownloadSpeed)
	}
	if record.UploadSpeed != "5.0MB/s" {
		t.Errorf("Expected measured upload 5.0MB/s, got %s", record.UploadSpeed)
	}
}
