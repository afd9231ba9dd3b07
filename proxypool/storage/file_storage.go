package storage

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"tiebaagent/internal/shared/logger"
	"tiebaagent/proxypool/model"
)

const (
	delimiter = "|"
	numFields = 5 // URL|Source|Health|LatencyMs|LastCheckedUnix
)

// Storage 接口定义了代理候选持久化的行为。
type Storage interface {
	Load() ([]*model.Candidate, error)
	Save(candidates []*model.Candidate) error
}

// FileStorage 实现了 Storage 接口，使用纯文本文件缓存抓取到的候选，
// 让后续运行不必重新抓取公共代理源。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Load 从纯文本文件加载候选。文件缺失返回空列表，不是错误。
func (fs *FileStorage) Load() ([]*model.Candidate, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("ProxyPool/Storage")

	file, err := os.Open(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Debug().Str("path", fs.filePath).Msg("Proxy cache file not found, pool will be scraped on first use.")
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var candidates []*model.Candidate
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, delimiter)
		if len(fields) != numFields {
			l.Warn().Int("line", lineNum).Int("expected", numFields).Int("got", len(fields)).Msg("Skipping malformed line in proxy cache.")
			continue
		}

		c, err := parseCandidate(fields)
		if err != nil {
			l.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse candidate from line, skipping.")
			continue
		}
		candidates = append(candidates, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(candidates)).Msg("Loaded proxy candidates from cache.")
	return candidates, nil
}

// Save 持久化候选列表。直连哨兵不落盘。
func (fs *FileStorage) Save(candidates []*model.Candidate) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var sb strings.Builder
	count := 0
	for _, c := range candidates {
		if c.Direct() {
			continue
		}
		sb.WriteString(formatCandidate(c))
		sb.WriteString("\n")
		count++
	}

	if err := os.WriteFile(fs.filePath, []byte(sb.String()), 0644); err != nil {
		return err
	}

	l := logger.WithComponent("ProxyPool/Storage")
	l.Debug().Int("count", count).Msg("Saved proxy candidates to cache.")
	return nil
}

// formatCandidate 将一个候选格式化为一行文本。
func formatCandidate(c *model.Candidate) string {
	return strings.Join([]string{
		c.URL.String(),
		c.Source,
		c.Health.String(),
		strconv.FormatInt(c.Latency.Milliseconds(), 10),
		strconv.FormatInt(c.LastChecked.Unix(), 10),
	}, delimiter)
}

// parseCandidate 从字段切片解析出一个候选。
func parseCandidate(fields []string) (*model.Candidate, error) {
	u, err := url.Parse(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("incomplete proxy url %q", fields[0])
	}

	latencyMs, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latency: %w", err)
	}

	lastCheckedUnix, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid last_checked: %w", err)
	}

	c := &model.Candidate{
		URL:     u,
		Source:  fields[1],
		Health:  model.ParseHealth(fields[2]),
		Latency: time.Duration(latencyMs) * time.Millisecond,
	}
	if lastCheckedUnix > 0 {
		c.LastChecked = time.Unix(lastCheckedUnix, 0)
	}
	return c, nil
}
