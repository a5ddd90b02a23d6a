package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrBlockedTarget is returned for URLs that resolve to loopback, private,
// link-local or otherwise non-public addresses.
var ErrBlockedTarget = errors.New("target address is not allowed")

// blockedHostnames are always rejected, regardless of what they resolve to.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata.gce.internal":    {},
	"metadata.internal":        {},
}

// hostGuard rejects fetch targets on non-public networks. It checks the
// requested hostname up front and every resolved IP at dial time, so a DNS
// answer that changes between validation and connect cannot bypass it.
//
// A nil guard performs no checks.
type hostGuard struct{}

// checkURL validates a parsed URL before any request is made. Hostnames
// pass here and are re-checked against their resolved addresses in
// dialContext.
func (g *hostGuard) checkURL(u *url.URL) error {
	if g == nil {
		return nil
	}
	return g.checkHost(u.Hostname())
}

func (g *hostGuard) checkHost(host string) error {
	if g == nil {
		return nil
	}
	if _, blocked := blockedHostnames[strings.ToLower(host)]; blocked {
		return fmt.Errorf("%w: blocked host %s", ErrBlockedTarget, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return g.checkIP(ip)
	}
	return nil
}

func (g *hostGuard) checkIP(ip net.IP) error {
	if g == nil {
		return nil
	}

	// Normalize IPv6-mapped IPv4 (::ffff:127.0.0.1 -> 127.0.0.1).
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrBlockedTarget, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrBlockedTarget, ip)
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address %s", ErrBlockedTarget, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrBlockedTarget, ip)
	}
	return nil
}

// transport returns an http.Transport whose dialer re-validates resolved
// addresses, or nil for a nil guard.
func (g *hostGuard) transport() *http.Transport {
	if g == nil {
		return nil
	}
	return &http.Transport{
		DialContext:         g.dialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// dialContext resolves the host, checks every returned address and connects
// to the first one. Connecting to the checked address closes the window
// between resolution and dial.
func (g *hostGuard) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := g.checkIP(ip); err != nil {
			return nil, err
		}
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}

	if err := g.checkHost(host); err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := g.checkIP(ip); err != nil {
			return nil, fmt.Errorf("%s resolved to %s: %w", host, ip, err)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolving %s: no addresses", host)
	}

	target := ips[0].String()
	if port != "" {
		target = net.JoinHostPort(target, port)
	}
	return (&net.Dialer{}).DialContext(ctx, network, target)
}
