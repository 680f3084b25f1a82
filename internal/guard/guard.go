// Package guard validates caller-supplied URLs before any network fetch.
// It enforces the http/https scheme allowlist, rejects private and reserved
// destinations, blocks cloud metadata endpoints, and closes the DNS-rebinding
// gap by applying the same checks to every resolved address.
package guard

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
)

// Resolver abstracts DNS lookup so tests can inject rebinding scenarios.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Config tunes the guard beyond its built-in protections.
type Config struct {
	// BlockedDomains lists extra hostnames to reject; entries may be exact
	// ("internal.example.com") or suffix wildcards ("*.corp.example.com").
	BlockedDomains []string
}

// Guard implements ingest.Validator.
type Guard struct {
	resolver  Resolver
	blocklist *hostBlocklist
	logger    *zap.Logger
}

// New builds a Guard. A nil resolver falls back to net.DefaultResolver.
func New(cfg Config, resolver Resolver, logger *zap.Logger) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		resolver:  resolver,
		blocklist: newHostBlocklist(cfg.BlockedDomains),
		logger:    logger,
	}
}

// Hostnames served by cloud metadata services. Blocked by name so a request
// cannot reach the endpoint even through a resolver the guard never sees.
var metadataHostnames = map[string]struct{}{
	"metadata.google.internal":   {},
	"metadata.goog":              {},
	"metadata":                   {},
	"instance-data":              {},
	"instance-data.ec2.internal": {},
	"metadata.azure.com":         {},
}

// Well-known metadata service addresses, checked before the generic
// link-local block so they yield the more specific error kind.
var metadataAddrs = []netip.Addr{
	netip.MustParseAddr("169.254.169.254"),
	netip.MustParseAddr("fd00:ec2::254"),
}

type blockedRange struct {
	prefix netip.Prefix
	label  string
}

var blockedRanges = []blockedRange{
	{netip.MustParsePrefix("0.0.0.0/8"), "all-zeros"},
	{netip.MustParsePrefix("10.0.0.0/8"), "rfc1918"},
	{netip.MustParsePrefix("100.64.0.0/10"), "shared address space"},
	{netip.MustParsePrefix("127.0.0.0/8"), "loopback"},
	{netip.MustParsePrefix("169.254.0.0/16"), "link-local"},
	{netip.MustParsePrefix("172.16.0.0/12"), "rfc1918"},
	{netip.MustParsePrefix("192.0.0.0/24"), "ietf protocol assignments"},
	{netip.MustParsePrefix("192.0.2.0/24"), "documentation"},
	{netip.MustParsePrefix("192.168.0.0/16"), "rfc1918"},
	{netip.MustParsePrefix("198.18.0.0/15"), "benchmarking"},
	{netip.MustParsePrefix("198.51.100.0/24"), "documentation"},
	{netip.MustParsePrefix("203.0.113.0/24"), "documentation"},
	{netip.MustParsePrefix("224.0.0.0/4"), "multicast"},
	{netip.MustParsePrefix("240.0.0.0/4"), "reserved"},
	{netip.MustParsePrefix("::/128"), "unspecified"},
	{netip.MustParsePrefix("::1/128"), "loopback"},
	{netip.MustParsePrefix("fc00::/7"), "unique local"},
	{netip.MustParsePrefix("fe80::/10"), "link-local"},
	{netip.MustParsePrefix("ff00::/8"), "multicast"},
}

// Validate implements ingest.Validator. The returned ValidatedURL is the only
// string the downloader may use as a request target; callers must never
// re-derive a target from the raw input.
func (g *Guard) Validate(ctx context.Context, rawURL string, checkDNS bool) (ingest.ValidatedURL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ingest.ValidatedURL{}, ingest.WrapError(ingest.KindInvalidHost, err, "unparseable url")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ingest.ValidatedURL{}, ingest.NewError(ingest.KindInvalidScheme, "scheme %q is not allowed", u.Scheme)
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	if err := checkHostSyntax(host); err != nil {
		return ingest.ValidatedURL{}, err
	}

	normalizeHostPort(u, host)

	if _, blocked := metadataHostnames[host]; blocked {
		return ingest.ValidatedURL{}, ingest.NewError(ingest.KindCloudMetadataBlocked, "host %q is a cloud metadata endpoint", host)
	}
	if g.blocklist.Blocked(host) {
		return ingest.ValidatedURL{}, ingest.NewError(ingest.KindInvalidHost, "host %q is on the configured blocklist", host)
	}

	var addrs []netip.Addr
	if literal, perr := netip.ParseAddr(host); perr == nil {
		if err := checkAddr(literal); err != nil {
			return ingest.ValidatedURL{}, err
		}
		addrs = []netip.Addr{literal}
	} else if checkDNS {
		addrs, err = g.resolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return ingest.ValidatedURL{}, ingest.WrapError(ingest.KindInvalidHost, err, "dns resolution failed for %q", host)
		}
		if len(addrs) == 0 {
			return ingest.ValidatedURL{}, ingest.NewError(ingest.KindInvalidHost, "host %q resolved to no addresses", host)
		}
		// A single private answer fails the whole set: a hostname that
		// mixes public and private records is a rebinding vector.
		for _, addr := range addrs {
			if err := checkAddr(addr); err != nil {
				g.logger.Warn("resolved address rejected",
					zap.String("host", host),
					zap.String("addr", addr.String()))
				return ingest.ValidatedURL{}, err
			}
		}
	}

	return ingest.ValidatedURL{
		Normalized: u.String(),
		Host:       host,
		Addrs:      addrs,
	}, nil
}

func checkHostSyntax(host string) error {
	if host == "" {
		return ingest.NewError(ingest.KindInvalidHost, "url has no host")
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return ingest.NewError(ingest.KindInvalidHost, "host %q contains whitespace", host)
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" {
			if _, err := netip.ParseAddr(host); err == nil {
				return nil // IPv6 literals contain "::"
			}
			return ingest.NewError(ingest.KindInvalidHost, "host %q has an empty label", host)
		}
	}
	return nil
}

// normalizeHostPort lowercases the host and strips scheme-default ports.
// IPv6 literals keep their brackets so the rebuilt URL parses back to the
// same host. Credentials, path, query and fragment pass through verbatim.
func normalizeHostPort(u *url.URL, host string) {
	port := u.Port()
	switch {
	case port == "", u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}
}

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	for _, meta := range metadataAddrs {
		if addr == meta {
			return ingest.NewError(ingest.KindCloudMetadataBlocked, "address %s is a cloud metadata endpoint", addr)
		}
	}
	for _, r := range blockedRanges {
		if r.prefix.Contains(addr) {
			return ingest.NewError(ingest.KindPrivateAddressBlocked, "address %s is in a blocked range (%s)", addr, r.label)
		}
	}
	return nil
}
