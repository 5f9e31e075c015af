package validate

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// URLConstraints bounds a link.
type URLConstraints struct {
	AllowedSchemes []string
	BlockPrivate   bool
	MaxLength      int
}

// PublicWebURLConstraints accepts http and https links to public hosts.
var PublicWebURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// LookupHost resolves host names for the private-address check.
var LookupHost = net.DefaultResolver.LookupNetIP

// URL checks raw against c and returns it trimmed.
func URL(raw string, c URLConstraints) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	if c.MaxLength > 0 && len(raw) > c.MaxLength {
		return "", fmt.Errorf("%w: longer than %d", ErrTooLong, c.MaxLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !slices.Contains(c.AllowedSchemes, strings.ToLower(u.Scheme)) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if c.BlockPrivate {
		if err := checkPublic(host); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// checkPublic rejects localhost and hosts that resolve to private,
// loopback or link-local addresses. Hosts that do not resolve pass.
func checkPublic(host string) error {
	if h := strings.ToLower(host); h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: %s", ErrSSRFRisk, host)
	}
	addrs := []netip.Addr{}
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = append(addrs, addr)
	} else if resolved, err := LookupHost(context.Background(), "ip", host); err == nil {
		addrs = resolved
	}
	for _, addr := range addrs {
		if private(addr.Unmap()) {
			return fmt.Errorf("%w: %s", ErrSSRFRisk, addr)
		}
	}
	return nil
}

func private(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
