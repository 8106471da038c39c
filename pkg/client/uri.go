package client

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// endpoint is where a session sends its operations
type endpoint struct {
	inProcess bool
	baseURL   string
}

// parseURI resolves a connection string. Driver schemes map onto the HTTP
// API of the server; a missing port means DefaultPort.
func parseURI(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid connection URI %q: %w", raw, err)
	}

	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "mem":
		return endpoint{inProcess: true}, nil
	case "docstore", "mongodb", "http":
		scheme = "http"
	case "https":
		scheme = "https"
	default:
		return endpoint{}, fmt.Errorf("invalid connection URI %q: unsupported scheme %q", raw, u.Scheme)
	}

	host := u.Host
	if host == "" {
		return endpoint{}, fmt.Errorf("invalid connection URI %q: missing host", raw)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(DefaultPort))
	}
	return endpoint{baseURL: scheme + "://" + host}, nil
}
