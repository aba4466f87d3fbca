// Package nets builds the HTTP client used to reach model endpoints, honoring proxy settings.
package nets

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

type HTTPClient = *http.Client

const (
	dialTimeout    = 10 * time.Second
	requestTimeout = 5 * time.Minute
)

func (Module) HTTPClient(
	addr ProxyAddr,
) HTTPClient {
	client, err := NewHTTPClient(addr)
	if err != nil {
		panic(err)
	}
	return client
}

// NewHTTPClient returns a client that sends remote requests through the proxy.
// Loopback and private addresses are always dialed directly.
func NewHTTPClient(addr ProxyAddr) (*http.Client, error) {
	u, err := ProxyURL(addr)
	if err != nil {
		return nil, err
	}
	direct := &net.Dialer{
		Timeout: dialTimeout,
	}
	transport := &http.Transport{
		DialContext:         direct.DialContext,
		TLSHandshakeTimeout: dialTimeout,
		MaxIdleConns:        8,
		IdleConnTimeout:     time.Minute,
	}

	if u != nil {
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				if IsLocalHost(req.URL.Hostname()) {
					return nil, nil
				}
				return u, nil
			}
		default:
			socks, err := proxy.FromURL(u, direct)
			if err != nil {
				return nil, err
			}
			dialer, ok := socks.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("proxy %s: no context dialer", u.Redacted())
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					host = addr
				}
				if IsLocalHost(host) {
					return direct.DialContext(ctx, network, addr)
				}
				return dialer.DialContext(ctx, network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}, nil
}

// IsLocalHost reports whether the host is a loopback or private address.
// Names that do not resolve are not local.
func IsLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		var err error
		ips, err = net.LookupIP(host)
		if err != nil {
			return false
		}
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() {
			return true
		}
	}
	return false
}
