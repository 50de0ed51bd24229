// Package facts extracts request facts from inbound HTTP requests and derives
// client facts from the user agent.
package facts

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Request holds the facts read directly off an inbound request.
type Request struct {
	Host      string
	Port      int
	Path      string
	Query     url.Values
	Scheme    string
	TLS       bool
	Method    string
	ClientIP  string
	UserAgent string
	Languages []language.Tag
}

// Extract reads every request fact. debug may be nil.
func Extract(r *http.Request, debug *DebugOverride) Request {
	scheme, isTLS := Protocol(r)
	host, port := Host(r, isTLS)

	ip := ClientIP(r)
	if debug != nil {
		if override, ok := debug.ClientIP(r); ok {
			ip = override
		}
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	return Request{
		Host:      host,
		Port:      port,
		Path:      path,
		Query:     r.URL.Query(),
		Scheme:    scheme,
		TLS:       isTLS,
		Method:    r.Method,
		ClientIP:  ip,
		UserAgent: r.UserAgent(),
		Languages: AcceptLanguages(r.Header.Get("Accept-Language")),
	}
}

// Host returns the lowercased request host without a trailing dot, and the
// port, defaulted from the protocol when absent.
func Host(r *http.Request, isTLS bool) (string, int) {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	port := 80
	if isTLS {
		port = 443
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host, port
}

// Protocol returns "https" for TLS connections and "http" otherwise.
func Protocol(r *http.Request) (string, bool) {
	if r.TLS != nil {
		return "https", true
	}
	return "http", false
}

// ClientIP honours the first X-Forwarded-For entry and falls back to the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

// AcceptLanguages parses an Accept-Language header, most preferred first.
// Malformed headers yield no languages.
func AcceptLanguages(header string) []language.Tag {
	if header == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}

// PrimaryLanguage returns the lowercased base language of the most preferred tag.
func PrimaryLanguage(tags []language.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	base, _ := tags[0].Base()
	return strings.ToLower(base.String())
}
