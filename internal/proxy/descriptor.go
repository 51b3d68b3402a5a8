package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Scheme selects how a proxy is spoken to
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeSOCKS4 Scheme = "socks4"
	SchemeSOCKS5 Scheme = "socks5"
)

// Credentials are the optional proxy login
type Credentials struct {
	Username string
	Password string
}

// Descriptor is a parsed, normalized proxy endpoint
type Descriptor struct {
	Scheme      Scheme
	Host        string
	Port        int
	Credentials *Credentials
}

// Parse turns one line of the proxy list into a Descriptor.
//
// Accepted forms:
//
//	host:port
//	user:pass@host:port
//	socks5://user@host:port
//
// A line without a scheme prefix is an HTTP proxy.
func Parse(line string) (Descriptor, error) {
	rest := strings.TrimSpace(line)
	if rest == "" {
		return Descriptor{}, fmt.Errorf("empty proxy line")
	}

	d := Descriptor{Scheme: SchemeHTTP}
	if prefix, tail, ok := strings.Cut(rest, "://"); ok {
		switch Scheme(strings.ToLower(prefix)) {
		case SchemeHTTP:
			d.Scheme = SchemeHTTP
		case SchemeSOCKS4:
			d.Scheme = SchemeSOCKS4
		case SchemeSOCKS5:
			d.Scheme = SchemeSOCKS5
		default:
			return Descriptor{}, fmt.Errorf("unsupported proxy scheme %q", prefix)
		}
		rest = tail
	}

	hostPort := rest
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		auth := rest[:at]
		hostPort = rest[at+1:]
		user, pass, _ := strings.Cut(auth, ":")
		if user == "" {
			return Descriptor{}, fmt.Errorf("proxy credentials without username")
		}
		d.Credentials = &Credentials{Username: user, Password: pass}
	}

	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid proxy address %q: %w", hostPort, err)
	}
	if host == "" {
		return Descriptor{}, fmt.Errorf("proxy address %q has no host", hostPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Descriptor{}, fmt.Errorf("invalid proxy port %q", portStr)
	}
	d.Host = host
	d.Port = port

	return d, nil
}

// Addr returns host:port
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String re-serializes the descriptor in the form Parse accepts
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(string(d.Scheme))
	b.WriteString("://")
	if d.Credentials != nil {
		b.WriteString(d.Credentials.Username)
		if d.Credentials.Password != "" {
			b.WriteString(":")
			b.WriteString(d.Credentials.Password)
		}
		b.WriteString("@")
	}
	b.WriteString(d.Addr())
	return b.String()
}

// Redacted is String with the password masked, for logs
func (d Descriptor) Redacted() string {
	if d.Credentials == nil || d.Credentials.Password == "" {
		return d.String()
	}
	masked := d
	masked.Credentials = &Credentials{Username: d.Credentials.Username, Password: "***"}
	return masked.String()
}

// URL returns the descriptor as a *url.URL
func (d Descriptor) URL() *url.URL {
	u := &url.URL{Scheme: string(d.Scheme), Host: d.Addr()}
	if d.Credentials != nil {
		u.User = url.UserPassword(d.Credentials.Username, d.Credentials.Password)
	}
	return u
}

// Describe is nil-safe formatting used in logs and errors
func Describe(d *Descriptor) string {
	if d == nil {
		return "direct"
	}
	return d.Redacted()
}
