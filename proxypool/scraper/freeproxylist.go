package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"tiebaagent/internal/shared/logger"
	"tiebaagent/proxypool/model"
)

// FreeProxyListScraper 抓取 free-proxy-list.net 的免费代理表格。
type FreeProxyListScraper struct {
	collector *colly.Collector
}

// NewFreeProxyListScraper 创建一个新的 FreeProxyListScraper 实例。
func NewFreeProxyListScraper() Scraper {
	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"),
	)
	c.SetRequestTimeout(20 * time.Second)

	return &FreeProxyListScraper{
		collector: c,
	}
}

// Name 返回抓取器的名称。
func (s *FreeProxyListScraper) Name() string {
	return "free-proxy-list.net"
}

// Scrape 执行抓取操作。
func (s *FreeProxyListScraper) Scrape() ([]*model.Candidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	var candidates []*model.Candidate
	var mu sync.Mutex // OnHTML 回调可能并发触发，保护 candidates 切片

	s.collector.OnHTML("table.table tbody tr", func(e *colly.HTMLElement) {
		ip := strings.TrimSpace(e.ChildText("td:nth-child(1)"))
		portStr := strings.TrimSpace(e.ChildText("td:nth-child(2)"))
		https := strings.TrimSpace(e.ChildText("td:nth-child(7)"))

		if ip == "" || portStr == "" {
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			l.Warn().Str("ip", ip).Str("port", portStr).Str("source", s.Name()).Msg("Failed to parse port, skipping.")
			return
		}

		scheme := "http"
		if strings.EqualFold(https, "yes") {
			scheme = "https"
		}
		u, err := url.Parse(fmt.Sprintf("%s://%s:%d", scheme, ip, port))
		if err != nil {
			return
		}

		mu.Lock()
		candidates = append(candidates, &model.Candidate{
			URL:         u,
			Source:      s.Name(),
			LastChecked: time.Now(),
		})
		mu.Unlock()
	})

	if err := s.collector.Visit("https://free-proxy-list.net/"); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.Name(), err)
	}
	s.collector.Wait()

	l.Info().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates, nil
}
