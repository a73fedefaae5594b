// Package horosafe guards page loading: remote page URLs are checked against
// private and loopback targets, local page paths are confined to a root, and
// bodies are read with a hard cap.
package horosafe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"net/url"
	"path/filepath"
	"strings"
)

// MaxPageBody is the default cap for page bodies (10 MiB).
const MaxPageBody int64 = 10 << 20

var (
	// ErrPathTraversal is returned when a page path escapes its root.
	ErrPathTraversal = errors.New("horosafe: path traversal detected")

	// ErrSSRF is returned when a page URL targets a private or loopback address.
	ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")

	// ErrUnsafeScheme is returned for page URLs that are not http or https.
	ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

	// ErrNoHost is returned for page URLs without a host name.
	ErrNoHost = errors.New("horosafe: URL has no host")

	// ErrTooLarge is returned by LimitedReadAll when the cap is exceeded.
	ErrTooLarge = errors.New("horosafe: body too large")
)

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// SafePath joins root and name and rejects results outside root.
// An empty root disables confinement and returns the cleaned name.
func SafePath(root, name string) (string, error) {
	if root == "" {
		return filepath.Clean(name), nil
	}
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	base := filepath.Clean(root)
	cleaned := filepath.Join(base, filepath.Clean("/"+strings.TrimPrefix(name, base)))
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateURL checks that rawURL is http(s) with a host that neither is nor
// resolves to a private, loopback or link-local address. Resolution failures
// are let through: the fetch itself will fail on them.
func ValidateURL(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return nil, ErrNoHost
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsPrivate(addr) {
			return nil, fmt.Errorf("%w: %s", ErrSSRF, host)
		}
		return u, nil
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return u, nil
	}
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil && IsPrivate(addr) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrSSRF, host, a)
		}
	}
	return u, nil
}

// IsPrivate reports whether addr is loopback, link-local, unspecified or in
// a private range.
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return true
	}
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// LimitedReadAll reads at most max bytes from r and fails with ErrTooLarge
// past that.
func LimitedReadAll(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = MaxPageBody
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, max)
	}
	return data, nil
}
