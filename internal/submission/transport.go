// internal/submission/transport.go
package submission

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Transport defaults. Submissions are rare and small, so the pool is tiny.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 20 * time.Second
	DefaultIdleConnTimeout       = 30 * time.Second
)

// newHTTPTransport builds the transport used for submissions with HTTP/2
// enabled for TLS endpoints.
func newHTTPTransport(logger *zap.Logger) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		MaxIdleConns:          2,
		MaxIdleConnsPerHost:   1,
		// The request body is compressed explicitly; responses are tiny.
		DisableCompression: true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("Failed to enable HTTP/2 on submission transport; using HTTP/1.1.", zap.Error(err))
	}
	return transport
}
