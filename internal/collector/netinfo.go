package collector

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// NetworkInfo is the network portion of a snapshot
type NetworkInfo struct {
	NetworkType       string
	AirplaneMode      bool
	InternetReachable bool
	IPAddress         string
}

// NetProber inspects local interfaces and connectivity. The function
// fields are swappable so tests can run without touching the real network.
type NetProber struct {
	logger *utils.LogsManager

	listInterfaces func() ([]net.Interface, error)
	interfaceAddrs func(net.Interface) ([]net.Addr, error)
	dialOutbound   func() (string, error)
	probeInternet  func(timeout time.Duration) bool
	retryPause     time.Duration
}

// NewNetProber creates a prober using the real OS network stack
func NewNetProber(logger *utils.LogsManager) *NetProber {
	return &NetProber{
		logger:         logger,
		listInterfaces: net.Interfaces,
		interfaceAddrs: func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
		dialOutbound:   outboundDialIP,
		probeInternet:  probeInternet,
		retryPause:     500 * time.Millisecond,
	}
}

// Snapshot gathers network type, airplane mode, reachability and IP
func (np *NetProber) Snapshot() *NetworkInfo {
	info := &NetworkInfo{NetworkType: "none"}

	interfaces, err := np.listInterfaces()
	if err != nil {
		np.logger.Warn(fmt.Sprintf("Failed to list network interfaces: %v", err), "collector")
		info.AirplaneMode = true
		return info
	}

	info.NetworkType = classifyNetworkType(interfaces)
	info.AirplaneMode = !hasActiveInterface(interfaces)

	if info.AirplaneMode {
		// No link, nothing to probe or resolve
		return info
	}

	info.InternetReachable = np.probeInternet(3 * time.Second)
	info.IPAddress = np.resolveIP(interfaces)

	return info
}

// classifyNetworkType maps the first active non-loopback interface name
// to a coarse network type.
func classifyNetworkType(interfaces []net.Interface) string {
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		switch {
		case strings.HasPrefix(name, "wl") || strings.Contains(name, "wi-fi") || strings.Contains(name, "wifi") || strings.Contains(name, "wlan"):
			return "wifi"
		case strings.HasPrefix(name, "wwan") || strings.HasPrefix(name, "rmnet") || strings.HasPrefix(name, "ppp"):
			return "cellular"
		case strings.HasPrefix(name, "eth") || strings.HasPrefix(name, "en"):
			return "ethernet"
		}
	}

	// Fall back to any active interface
	if hasActiveInterface(interfaces) {
		return "ethernet"
	}
	return "none"
}

func hasActiveInterface(interfaces []net.Interface) bool {
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp != 0 {
			return true
		}
	}
	return false
}

// resolveIP tries four strategies in order: outbound dial, interface
// enumeration, any interface address, a short pause and one retry of the
// outbound dial. Placeholder values are rejected at every step.
func (np *NetProber) resolveIP(interfaces []net.Interface) string {
	if ip, err := np.dialOutbound(); err == nil && usableIP(ip) {
		return ip
	}

	if ip := np.bestInterfaceIP(interfaces); usableIP(ip) {
		return ip
	}

	if ip := np.anyInterfaceIP(interfaces); usableIP(ip) {
		return ip
	}

	time.Sleep(np.retryPause)
	if ip, err := np.dialOutbound(); err == nil && usableIP(ip) {
		return ip
	}

	np.logger.Debug("All IP resolution strategies failed", "collector")
	return ""
}

func usableIP(ip string) bool {
	return ip != "" && ip != "0.0.0.0"
}

// bestInterfaceIP picks the highest-priority IPv4 address: public IPs
// first, then common LAN ranges, skipping virtual adapters.
func (np *NetProber) bestInterfaceIP(interfaces []net.Interface) string {
	bestIP := ""
	bestPriority := -1

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		isVirtual := strings.Contains(name, "docker") ||
			strings.Contains(name, "vethernet") ||
			strings.Contains(name, "vmware") ||
			strings.Contains(name, "virtualbox") ||
			strings.HasPrefix(name, "veth") ||
			strings.HasPrefix(name, "br-")

		addrs, err := np.interfaceAddrs(iface)
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ip := addrIPv4(addr)
			if ip == nil {
				continue
			}

			ipStr := ip.String()
			priority := 0
			if !ip.IsPrivate() {
				priority = 1000
			} else if strings.HasPrefix(ipStr, "192.168.") {
				priority = 100
			} else if strings.HasPrefix(ipStr, "10.") {
				priority = 90
			} else if strings.HasPrefix(ipStr, "172.") {
				priority = 80
			}
			if isVirtual {
				priority -= 500
			}

			if priority > bestPriority {
				bestPriority = priority
				bestIP = ipStr
			}
		}
	}

	return bestIP
}

// anyInterfaceIP returns the first non-loopback IPv4 address found
func (np *NetProber) anyInterfaceIP(interfaces []net.Interface) string {
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := np.interfaceAddrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ip := addrIPv4(addr); ip != nil {
				return ip.String()
			}
		}
	}
	return ""
}

func addrIPv4(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	if ip == nil || ip.To4() == nil || ip.IsLoopback() {
		return nil
	}
	return ip.To4()
}

// outboundDialIP discovers the preferred local IP by opening a UDP socket
// toward a public resolver. No packets are sent.
func outboundDialIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}

// probeInternet checks reachability with a TCP dial to a public resolver
func probeInternet(timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", "1.1.1.1:53", timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
