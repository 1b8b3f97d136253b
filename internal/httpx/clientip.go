package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ForwardedForHeader carries the client chain added by proxies.
const ForwardedForHeader = "X-Forwarded-For"

// RemoteIP returns the host part of r.RemoteAddr, or RemoteAddr unchanged when it has no port.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedFor returns the raw X-Forwarded-For header value with surrounding space trimmed.
// The value is reported verbatim; it is client-controlled and not validated.
func ForwardedFor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ForwardedForHeader))
}
