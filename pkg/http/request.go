package http

import (
	"net"
	"net/http"
	"strings"
)

// clientIPHeaders are consulted in order before falling back to the socket address.
// The HTTP_* names are what some CGI-style proxies forward verbatim.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_CLIENT_IP",
	"HTTP_X_FORWARDED_FOR",
}

// ExtractClientIP returns the source address of the request.
//
// The first header in clientIPHeaders holding a non-empty value other than "unknown" wins.
// Comma separated lists (X-Forwarded-For) contribute their first entry. Without a usable
// header the host part of RemoteAddr is returned.
func ExtractClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if first, _, found := strings.Cut(value, ","); found {
			value = first
		}
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, "unknown") {
			continue
		}
		return value
	}

	return getRemoteAddr(r)
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}
