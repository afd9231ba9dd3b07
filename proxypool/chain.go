// Package proxypool 维护一条有序的出口路径链：
// 用户首选代理 → 公共代理池 → 直连哨兵。
package proxypool

import (
	"math/rand"
	"net/url"
	"sync"

	"tiebaagent/internal/shared/logger"
	"tiebaagent/proxypool/model"
	"tiebaagent/proxypool/scraper"
	"tiebaagent/proxypool/storage"
)

// 整次运行内允许的路径失败总预算。超出后代理链退化为直连，
// 避免公共代理池反复拖慢剩余操作。
const defaultFailureBudget = 12

// Chain 是代理链的总控制器。所有状态变更都在内部互斥锁下进行，
// 多账号并行时可以安全共享。
type Chain struct {
	mu sync.Mutex

	preferred *model.Candidate
	pool      []*model.Candidate
	direct    *model.Candidate

	scrapers []scraper.Scraper
	store    storage.Storage

	poolSize      int
	fetched       bool
	failureBudget int
	totalFailures int
	degraded      bool

	verifiedOnce sync.Once
}

// New 创建代理链。preferred 为 nil 时链从公共池开始;
// store 为 nil 时不做候选缓存。
func New(preferred *url.URL, poolSize int, store storage.Storage) *Chain {
	c := &Chain{
		direct:        &model.Candidate{Source: "direct"},
		store:         store,
		poolSize:      poolSize,
		failureBudget: defaultFailureBudget,
	}
	if preferred != nil {
		c.preferred = &model.Candidate{URL: preferred, Source: "preferred"}
	}
	return c
}

// AddScraper 注册一个公共代理源抓取器。
func (c *Chain) AddScraper(s scraper.Scraper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scrapers = append(c.scrapers, s)
}

// Add 直接向池中加入一个候选 (缓存加载或测试注入)。
func (c *Chain) Add(cand *model.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = append(c.pool, cand)
	c.fetched = true
}

// Candidates 返回当前的有序路径快照。首次调用时惰性填充公共池。
// 链退化后只返回直连哨兵。任何情况下直连哨兵都在且只在末尾。
func (c *Chain) Candidates() []*model.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.degraded {
		return []*model.Candidate{c.direct}
	}

	if !c.fetched {
		c.fetchPoolLocked()
	}

	out := make([]*model.Candidate, 0, len(c.pool)+2)
	if c.preferred != nil {
		out = append(out, c.preferred)
	}
	out = append(out, c.pool...)
	out = append(out, c.direct)
	return out
}

// MarkVerified 将候选标记为已验证。验证日志整个进程生命周期只打一次，
// 状态本身仍然每次更新。
func (c *Chain) MarkVerified(cand *model.Candidate) {
	c.mu.Lock()
	cand.Health = model.HealthVerified
	masked := cand.Masked()
	c.mu.Unlock()

	c.verifiedOnce.Do(func() {
		l := logger.WithComponent("ProxyPool/Chain")
		l.Info().Str("path", masked).Msg("Egress path verified.")
	})
}

// MarkFailed 记录一次候选失败。失败的候选在本次操作序列内不会被移除，
// 但整次运行的失败总数超过预算后，链退化为直连。
func (c *Chain) MarkFailed(cand *model.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cand.Health = model.HealthFailed
	cand.Failures++

	if cand.Direct() {
		// 直连失败不计入退化预算，它是保底路径。
		return
	}

	c.totalFailures++
	if !c.degraded && c.totalFailures >= c.failureBudget {
		c.degraded = true
		l := logger.WithComponent("ProxyPool/Chain")
		l.Warn().
			Int("failures", c.totalFailures).
			Msg("Proxy failure budget exhausted, degrading to direct connection for the rest of this run.")
	}
}

// Degraded 报告链是否已退化为直连。
func (c *Chain) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// fetchPoolLocked 填充公共代理池：先尝试缓存，再依次执行抓取器。
// 结果洗牌后截断到 poolSize，避免与其他公共池用户产生相同的请求顺序。
// 必须在持有 c.mu 时调用。
func (c *Chain) fetchPoolLocked() {
	c.fetched = true
	l := logger.WithComponent("ProxyPool/Chain")

	if c.store != nil {
		cached, err := c.store.Load()
		if err != nil {
			l.Warn().Err(err).Msg("Failed to load proxy cache, falling back to scraping.")
		} else if len(cached) > 0 {
			c.pool = cached
		}
	}

	if len(c.pool) == 0 {
		for _, s := range c.scrapers {
			scraped, err := s.Scrape()
			if err != nil {
				l.Warn().Err(err).Str("source", s.Name()).Msg("Scraper failed.")
				continue
			}
			c.pool = append(c.pool, scraped...)
		}
	}

	rand.Shuffle(len(c.pool), func(i, j int) {
		c.pool[i], c.pool[j] = c.pool[j], c.pool[i]
	})
	if c.poolSize > 0 && len(c.pool) > c.poolSize {
		c.pool = c.pool[:c.poolSize]
	}

	l.Info().Int("count", len(c.pool)).Msg("Proxy pool populated.")

	if c.store != nil && len(c.pool) > 0 {
		if err := c.store.Save(c.pool); err != nil {
			l.Warn().Err(err).Msg("Failed to save proxy cache.")
		}
	}
}
