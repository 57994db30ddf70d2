// Package http talks to the engine's loopback HTTP API.
package http

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/deckshare/localsend-bridge/internal/constants"
)

// NewEngineTransport returns a transport for the engine's loopback API.
//
// The engine serves a self-signed certificate on 127.0.0.1, so certificate
// and hostname verification are disabled. Environment proxies are ignored
// because the target is always local. HTTP/2 is negotiated when the engine
// offers it; set DISABLE_HTTP2=true to force HTTP/1.1.
func NewEngineTransport() *nethttp.Transport {
	dialer := &net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPIdleConnTimeout,
	}

	tr := &nethttp.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // #nosec G402 -- self-signed loopback certificate
			MinVersion:         tls.VersionTLS12,
		},
	}

	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return tr
}
