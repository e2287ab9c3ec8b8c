package fronting

import (
	"context"
	"net"
	"strings"
)

// addrResolver is the slice of Resolver the classifier needs.
type addrResolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

// Classifier decides, per host about to be dialed, whether the connection
// should be redirected to an alternate address. It is handed to the HTTP
// transport's dial hook, so it runs for every connection the transport
// opens and must stay side-effect free beyond cache reads inside the
// resolver.
type Classifier struct {
	frontHost    string
	frontAddr    string
	mediaDomains []string
	resolver     addrResolver
}

func NewClassifier(frontHost, frontAddr string, mediaDomains []string, resolver addrResolver) *Classifier {
	return &Classifier{
		frontHost:    frontHost,
		frontAddr:    frontAddr,
		mediaDomains: mediaDomains,
		resolver:     resolver,
	}
}

// Rewrite returns the address (host:port) to dial in place of host:port,
// or ok=false when the connection should proceed to the platform-resolved
// address unchanged. The TLS/Host identity is never touched here; only the
// transport-layer destination moves.
//
// Rules, in order:
//  1. The front host itself (the resolver probe path) always goes to the
//     provider's fixed address, no DNS round trip.
//  2. Hosts in the media domain family go to the DoH-resolved address for
//     that host.
//  3. Everything else is passed through untouched.
func (c *Classifier) Rewrite(ctx context.Context, host, port string) (string, bool, error) {
	switch {
	case host == c.frontHost:
		return c.frontAddr, true, nil
	case c.isMediaHost(host):
		addr, err := c.resolver.Resolve(ctx, host)
		if err != nil {
			return "", false, err
		}
		return net.JoinHostPort(addr, port), true, nil
	default:
		return "", false, nil
	}
}

func (c *Classifier) isMediaHost(host string) bool {
	for _, d := range c.mediaDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
