package util

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client with bounded dial/TLS timeouts. A non-empty
// userAgent is stamped on every request that does not set its own.
func NewHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	var tr http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if userAgent != "" {
		tr = &uaTransport{next: tr, ua: userAgent}
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

type uaTransport struct {
	next http.RoundTripper
	ua   string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(r)
}
