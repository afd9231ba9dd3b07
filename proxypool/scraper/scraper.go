package scraper

import "tiebaagent/proxypool/model"

// Scraper 接口定义了从公共代理源抓取候选路径的行为。
type Scraper interface {
	// Scrape 执行抓取操作，并返回候选切片。
	// 实现者应只负责抓取和初步解析，不做连通性验证。
	Scrape() ([]*model.Candidate, error)

	// Name 返回抓取器的名称，用于日志记录。
	Name() string
}
