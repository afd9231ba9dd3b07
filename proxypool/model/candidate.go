package model

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Health 表示一条出口路径的健康状态。
type Health int

const (
	HealthUntested Health = iota
	HealthVerified
	HealthFailed
)

func (h Health) String() string {
	switch h {
	case HealthVerified:
		return "verified"
	case HealthFailed:
		return "failed"
	default:
		return "untested"
	}
}

// ParseHealth 从持久化文本恢复健康状态。
func ParseHealth(s string) Health {
	switch s {
	case "verified":
		return HealthVerified
	case "failed":
		return HealthFailed
	default:
		return HealthUntested
	}
}

// Candidate 是代理链中的一条出口路径。URL 为 nil 表示直连哨兵。
// 它在内存中被链和客户端共享，状态变更由 Chain 统一管理。
type Candidate struct {
	URL    *url.URL
	Source string // 来源: "preferred", 抓取站点名, 或 "direct"

	Health      Health
	Failures    int // 本次运行内的累计失败次数
	Latency     time.Duration
	LastChecked time.Time
}

// Direct 报告该候选是否是直连哨兵。
func (c *Candidate) Direct() bool {
	return c.URL == nil
}

// Masked 返回用于日志和报告的脱敏地址：凭证替换为 ***，
// IP 地址只保留第一段。完整地址永远不进入日志。
// 手工拼接而不走 url.URL.String()，避免 *** 被百分号转义。
func (c *Candidate) Masked() string {
	if c.URL == nil {
		return "direct"
	}
	host := c.URL.Hostname()
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		octets := strings.Split(host, ".")
		host = octets[0] + ".***.***.***"
	}
	if port := c.URL.Port(); port != "" {
		host = fmt.Sprintf("%s:%s", host, port)
	}

	var sb strings.Builder
	sb.WriteString(c.URL.Scheme)
	sb.WriteString("://")
	if c.URL.User != nil {
		name := c.URL.User.Username()
		if name == "" {
			name = "***"
		}
		sb.WriteString(name)
		sb.WriteString(":***@")
	}
	sb.WriteString(host)
	return sb.String()
}
