package fetch

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var broadcastV4 = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// validateURL checks the parts of a download URL that can be judged without
// resolving the host.
func validateURL(raw string, allowPrivate bool) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, newDownloadError(raw, ErrInvalidURL, "invalid url")
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, newDownloadError(raw, ErrInvalidURL, "only http and https urls are allowed")
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, newDownloadError(raw, ErrInvalidURL, "url must include a hostname")
	}
	if allowPrivate {
		return parsed, nil
	}
	if isLocalName(host) {
		return nil, newDownloadError(raw, ErrForbiddenHost, "localhost addresses are not allowed")
	}
	if addr, err := netip.ParseAddr(host); err == nil && forbiddenAddr(addr) {
		return nil, newDownloadError(raw, ErrForbiddenHost, "private or local ips are not allowed")
	}
	return parsed, nil
}

func isLocalName(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

func forbiddenAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		addr == broadcastV4
}

// dialControl rejects connections to forbidden addresses after DNS
// resolution, so a public name that resolves to a private address is still
// refused.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	if forbiddenAddr(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, addr)
	}
	return nil
}
