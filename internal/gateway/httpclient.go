package gateway

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultTimeout        = 30 * time.Second
)

// HTTPOptions 出站网关请求选项
type HTTPOptions struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// NewHTTPClient 创建网关 HTTP 客户端：连接超时 + 总超时，TLS 1.2 起，不自动重试
func NewHTTPClient(o HTTPOptions) *resty.Client {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   o.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: o.ConnectTimeout,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return resty.New().
		SetTransport(transport).
		SetTimeout(o.Timeout).
		SetRetryCount(0)
}
