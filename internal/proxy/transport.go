package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"
)

// TransportFactory builds the round tripper for one attempt through d
// (nil d means a direct connection).
type TransportFactory func(d *Descriptor) (http.RoundTripper, error)

// DefaultTransportFactory is the production TransportFactory
func DefaultTransportFactory(d *Descriptor) (http.RoundTripper, error) {
	return NewTransport(d)
}

func baseTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 8 * time.Second,
	}
}

// NewTransport returns an http.Transport bound to d
func NewTransport(d *Descriptor) (*http.Transport, error) {
	tr := baseTransport()
	if d == nil {
		return tr, nil
	}

	switch d.Scheme {
	case SchemeHTTP:
		tr.Proxy = http.ProxyURL(d.URL())

	case SchemeSOCKS5:
		var auth *xproxy.Auth
		if d.Credentials != nil {
			auth = &xproxy.Auth{User: d.Credentials.Username, Password: d.Credentials.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", d.Addr(), auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %s: %w", d.Redacted(), err)
		}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}

	case SchemeSOCKS4:
		u := &url.URL{Scheme: string(SchemeSOCKS4), Host: d.Addr(), RawQuery: "timeout=10s"}
		if d.Credentials != nil {
			// socks4 only carries a user id
			u.User = url.User(d.Credentials.Username)
		}
		dial := socks.Dial(u.String())
		tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}

	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", d.Scheme)
	}

	return tr, nil
}
