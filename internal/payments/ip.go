package payments

import (
	"net"
	"net/netip"
	"strings"
)

const loopbackIPv4 = "127.0.0.1"

// NormalizeIP turns a caller address into the dotted quad the gateway expects:
// ports and IPv6-mapped prefixes are stripped and loopback becomes 127.0.0.1.
func NormalizeIP(remote string) string {
	host := strings.TrimSpace(remote)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return loopbackIPv4
	}
	addr = addr.Unmap()
	if addr.IsLoopback() {
		return loopbackIPv4
	}
	return addr.String()
}
