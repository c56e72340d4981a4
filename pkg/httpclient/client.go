package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds HTTP client configuration for outbound calls to object
// storage and other HTTP dependencies.
type Config struct {
	Timeout             time.Duration
	DialTimeout         time.Duration
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             60 * time.Second,
		DialTimeout:         10 * time.Second,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// ConfigureTransport applies the dial and pooling settings of cfg to tr.
// TLS settings on tr are left untouched so SDKs that build their own
// transport (the AWS SDK adds custom root CAs this way) keep them.
func ConfigureTransport(tr *http.Transport, cfg Config) {
	tr.DialContext = (&net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	tr.ForceAttemptHTTP2 = true
	tr.MaxIdleConns = cfg.MaxConnsPerHost
	tr.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	tr.MaxConnsPerHost = cfg.MaxConnsPerHost
	tr.IdleConnTimeout = cfg.IdleConnTimeout
	tr.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
	tr.ExpectContinueTimeout = time.Second
}
