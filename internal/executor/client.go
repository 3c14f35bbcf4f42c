package executor

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout is the per-request ceiling used when none is configured.
const DefaultTimeout = 30 * time.Second

// NewClient returns an http.Client with a pooled transport sized for
// maxConns concurrent connections to a single host. Timeouts are applied
// per request by the Executor, so the client itself has none.
func NewClient(maxConns int) *http.Client {
	if maxConns <= 0 {
		maxConns = 256
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
