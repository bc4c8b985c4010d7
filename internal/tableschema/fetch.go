package tableschema

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// FetchOptions configures NewFetchClient.
type FetchOptions struct {
	// Timeout bounds one GET, body included.
	Timeout time.Duration

	// AllowPrivate lets the client reach loopback and private networks.
	// Leave it off when the URL comes from an untrusted caller.
	AllowPrivate bool
}

// nonPublic are ranges IsGlobalUnicast and IsPrivate let through but that
// are not reachable on the public internet.
var nonPublic = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// NewFetchClient returns an http.Client for URLSource.
//
// Unless AllowPrivate is set the dialer checks the resolved address of every
// connection, redirects included, and fails with ErrForbiddenAddress for
// anything that is not publicly routable. Hostnames that resolve to an
// internal address are refused the same way. Proxy environment variables are
// ignored so the dialer always sees the real peer.
func NewFetchClient(opts FetchOptions) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if !opts.AllowPrivate {
		dialer.Control = dialPublicOnly
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func dialPublicOnly(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !PublicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ap.Addr())
	}
	return nil
}

// PublicAddr reports whether a is a unicast address routable on the public
// internet.
func PublicAddr(a netip.Addr) bool {
	a = a.Unmap()
	if !a.IsValid() || !a.IsGlobalUnicast() || a.IsPrivate() {
		return false
	}
	for _, p := range nonPublic {
		if p.Contains(a) {
			return false
		}
	}
	return true
}
