package observability

import (
	"net"
	"net/http"
	"strings"
)

const (
	headerRequestID    = "X-Request-Id"
	headerRealIP       = "X-Real-Ip"
	headerForwardedFor = "X-Forwarded-For"
)

// ClientInfo is what the service records about whoever sent an HTTP request.
type ClientInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

// ClientInfoFromRequest reads the caller details from r. RequestID is empty
// when the caller did not send one.
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	return ClientInfo{
		RequestID: strings.TrimSpace(r.Header.Get(headerRequestID)),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP prefers the proxy-provided address and falls back to the peer.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get(headerRealIP)); ip != "" {
		return ip
	}
	if hops := r.Header.Get(headerForwardedFor); hops != "" {
		first, _, _ := strings.Cut(hops, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
