package tieba

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"

	"tiebaagent/proxypool/model"
)

// clientFor 为一条出口路径构造 http.Client。
// http/https 代理走 Transport.Proxy，socks5 走 x/net/proxy 拨号器，
// 直连哨兵使用默认传输。
func clientFor(cand *model.Candidate, timeout time.Duration) (*http.Client, error) {
	if cand.Direct() {
		return &http.Client{Timeout: timeout}, nil
	}

	switch cand.URL.Scheme {
	case "http", "https":
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(cand.URL),
			},
		}, nil

	case "socks5", "socks5h":
		dialer, err := xproxy.FromURL(cand.URL, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to build socks5 dialer for %s: %w", cand.Masked(), err)
		}
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					if cd, ok := dialer.(xproxy.ContextDialer); ok {
						return cd.DialContext(ctx, network, addr)
					}
					return dialer.Dial(network, addr)
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q for %s", cand.URL.Scheme, cand.Masked())
	}
}
