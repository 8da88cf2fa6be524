package cache

import (
	"net"
	"net/http"
	"time"
)

// objectTransport 是所有 S3 请求共享的连接池配置，复用长连接并集中设置超时。
// 不设置整体请求超时：大对象的流式上传与下载时长取决于对象大小。
var objectTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 30 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// newObjectTransport 为每个 ObjectStore 复制一份独立的 Transport。
func newObjectTransport() http.RoundTripper {
	return objectTransport.Clone()
}
