package tieba

import (
	"math/rand"
	"net/http"
)

var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
}

const mobileUserAgent = "Mozilla/5.0 (Linux; Android 12; Pixel 5) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/114.0.0.0 Mobile Safari/537.36"

// 贴吧接口按 Host 头做分流，不论实际出口路径走哪条都固定带上。
const apiHost = "tieba.baidu.com"

// applyHeaders 设置 Host、会话 Cookie 与随机轮换的 User-Agent。
func applyHeaders(req *http.Request, bduss string, mobile bool) {
	req.Host = apiHost
	ua := mobileUserAgent
	if !mobile {
		ua = desktopUserAgents[rand.Intn(len(desktopUserAgents))]
	}
	req.Header.Set("User-Agent", ua)
	if bduss != "" {
		req.AddCookie(&http.Cookie{Name: "BDUSS", Value: bduss})
	}
	if req.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
}
