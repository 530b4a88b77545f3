// Package tlsutil 为服务商 HTTP 客户端提供统一的 TLS 加固配置。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultTLSConfig 返回 TLS 1.2+、仅 AEAD 密码套件的配置
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// SecureTransport 返回服务商调用使用的 Transport。
// 语音上传体积较大，因此单主机空闲连接数比默认值高。
func SecureTransport() *http.Transport {
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// sharedTransport 由所有服务商客户端共用，Deepgram/OpenAI/ElevenLabs 各自复用空闲连接
var sharedTransport = sync.OnceValue(SecureTransport)

// SharedTransport 返回进程内共享的加固 Transport
func SharedTransport() *http.Transport {
	return sharedTransport()
}

// SecureHTTPClient 返回带 TLS 加固的 http.Client；timeout 是整个请求的上限，
// 单次调用的截止时间由调用方的 context 控制。
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: SharedTransport(),
	}
}

// CloseIdleConnections 关闭共享 Transport 上的空闲连接，用于优雅关闭
func CloseIdleConnections() {
	SharedTransport().CloseIdleConnections()
}
