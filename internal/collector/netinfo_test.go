package collector

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

func newTestProber() *NetProber {
	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	np := NewNetProber(logger)
	np.retryPause = time.Millisecond
	np.probeInternet = func(timeout time.Duration) bool { return true }
	return np
}

func upInterface(name string) net.Interface {
	return net.Interface{Name: name, Flags: net.FlagUp}
}

func TestClassifyNetworkType(t *testing.T) {
	tests := []struct {
		interfaces []net.Interface
		want       string
	}{
		{[]net.Interface{upInterface("wlan0")}, "wifi"},
		{[]net.Interface{upInterface("wlp3s0")}, "wifi"},
		{[]net.Interface{upInterface("eth0")}, "ethernet"},
		{[]net.Interface{upInterface("enp0s31f6")}, "ethernet"},
		{[]net.Interface{upInterface("wwan0")}, "cellular"},
		{[]net.Interface{upInterface("rmnet0")}, "cellular"},
		{[]net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, "none"},
		{[]net.Interface{{Name: "eth0"}}, "none"}, // down
		{nil, "none"},
	}

	for _, tt := range tests {
		if got := classifyNetworkType(tt.interfaces); got != tt.want {
			t.Errorf("classifyNetworkType(%v) = %s, want %s", tt.interfaces, got, tt.want)
		}
	}
}

func TestSnapshotAirplaneMode(t *testing.T) {
	np := newTestProber()
	np.listInterfaces = func() ([]net.Interface, error) {
		return []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Name: "wlan0"}, // down
		}, nil
	}

	info := np.Snapshot()
	if !info.AirplaneMode {
		t.Error("Expected airplane mode with no active interface")
	}
	if info.IPAddress != "" {
		t.Errorf("Expected no IP resolution in airplane mode, got %s", info.IPAddress)
	}
	if info.InternetReachable {
		t.Error("Expected internet unreachable in airplane mode")
	}
}

func TestResolveIPOutboundDialFirst(t *testing.T) {
	np := newTestProber()
	np.dialOutbound = func() (string, error) { return "203.0.113.7", nil }

	ip := np.resolveIP([]net.Interface{upInterface("eth0")})
	if ip != "203.0.113.7" {
		t.Errorf("Expected outbound dial IP, got %s", ip)
	}
}

func TestResolveIPRejectsPlaceholder(t *testing.T) {
	np := newTestProber()
	np.dialOutbound = func() (string, error) { return "0.0.0.0", nil }
	np.interfaceAddrs = func(iface net.Interface) ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.IPv4(192, 168, 1, 10), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	ip := np.resolveIP([]net.Interface{upInterface("eth0")})
	if ip != "192.168.1.10" {
		t.Errorf("Expected interface IP after placeholder rejection, got %s", ip)
	}
}

func TestResolveIPPrefersPhysicalOverVirtual(t *testing.T) {
	np := newTestProber()
	np.dialOutbound = func() (string, error) { return "", fmt.Errorf("offline") }
	np.interfaceAddrs = func(iface net.Interface) ([]net.Addr, error) {
		switch iface.Name {
		case "docker0":
			return []net.Addr{&net.IPNet{IP: net.IPv4(172, 17, 0, 1), Mask: net.CIDRMask(16, 32)}}, nil
		case "eth0":
			return []net.Addr{&net.IPNet{IP: net.IPv4(192, 168, 1, 20), Mask: net.CIDRMask(24, 32)}}, nil
		}
		return nil, nil
	}

	ip := np.resolveIP([]net.Interface{upInterface("docker0"), upInterface("eth0")})
	if ip != "192.168.1.20" {
		t.Errorf("Expected physical adapter IP, got %s", ip)
	}
}

func TestResolveIPRetriesOutboundDial(t *testing.T) {
	np := newTestProber()
	calls := 0
	np.dialOutbound = func() (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("transient failure")
		}
		return "198.51.100.4", nil
	}
	np.interfaceAddrs = func(iface net.Interface) ([]net.Addr, error) { return nil, nil }

	ip := np.resolveIP([]net.Interface{upInterface("eth0")})
	if ip != "198.51.100.4" {
		t.Errorf("Expected retried dial IP, got %s", ip)
	}
	if calls != 2 {
		t.Errorf("Expected 2 dial attempts, got %d", calls)
	}
}
