package source

import (
	"net"
	"net/url"
	"strings"
)

// visitSet records submitted URLs by their canonical form. Like Source it
// is used from a single goroutine.
type visitSet map[string]struct{}

// add reports whether u was not seen before and records it.
func (v visitSet) add(u *url.URL) bool {
	key := canonicalKey(u)
	if _, seen := v[key]; seen {
		return false
	}
	v[key] = struct{}{}
	return true
}

// canonicalKey maps equivalent spellings of a URL onto one string: scheme
// and host are lower-cased, default ports and fragments dropped, an empty
// path becomes "/" and query parameters are sorted.
func canonicalKey(u *url.URL) string {
	k := *u
	k.Scheme = strings.ToLower(k.Scheme)

	host, port := strings.ToLower(k.Hostname()), k.Port()
	if (k.Scheme == "http" && port == "80") || (k.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		k.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		k.Host = "[" + host + "]"
	default:
		k.Host = host
	}

	if k.Path == "" && k.RawPath == "" {
		k.Path = "/"
	}
	k.Fragment, k.RawFragment = "", ""
	k.RawQuery = k.Query().Encode()
	return k.String()
}
