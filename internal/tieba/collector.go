package tieba

import (
	"context"
	"encoding/json"
	"fmt"

	"tiebaagent/internal/shared/logger"
)

// RawPage 是关注列表接口的一页原始响应。forum_list 的形态并不稳定：
// 可能是对象、对象列表、甚至列表套列表，留给采集器递归展开。
type RawPage struct {
	ForumList json.RawMessage `json:"forum_list"`
	HasMore   string          `json:"has_more"`
}

// ForumEntry 是归一化后的贴吧条目。ID 在一次采集内唯一。
type ForumEntry struct {
	ID     string
	Name   string
	Slogan string
}

// PageFetcher 由调用方提供，内部通过弹性客户端取第 page 页。
type PageFetcher func(ctx context.Context, page int) (*RawPage, error)

// Collect 顺序驱动分页接口直到 has_more 不再为 "1"。
// 上游的翻页语义按页号顺序衔接，禁止并行或乱序请求。
// 某一页拉取失败时返回已经收集到的部分结果和该错误，
// 下游报告能容忍不完整的列表。
func Collect(ctx context.Context, fetch PageFetcher) ([]ForumEntry, error) {
	l := logger.WithComponent("Tieba/Collector")

	var entries []ForumEntry
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		raw, err := fetch(ctx, page)
		if err != nil {
			l.Warn().Err(err).Int("page", page).Int("collected", len(entries)).
				Msg("Page fetch failed, returning partial results.")
			return entries, fmt.Errorf("page %d: %w", page, err)
		}

		for _, record := range flattenRecords(raw.ForumList) {
			entry, ok := normalize(record)
			if !ok {
				continue
			}
			key := entry.ID
			if key == "" {
				key = "name:" + entry.Name
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, entry)
		}

		if raw.HasMore != "1" {
			l.Info().Int("pages", page).Int("count", len(entries)).Msg("Collection finished.")
			return entries, nil
		}
	}
}

// flattenRecords 把任意嵌套的列表结构展开成扁平的记录序列。
// 非列表的叶子视为一条记录；顶层对象的每个字段值分别展开
// (forum_list 按 gconforum / non-gconforum 分组)。
func flattenRecords(raw json.RawMessage) []map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}

	var records []map[string]interface{}
	switch v := root.(type) {
	case map[string]interface{}:
		// 分组容器：值才是真正的嵌套列表。
		for _, group := range v {
			flattenValue(group, &records)
		}
	default:
		flattenValue(root, &records)
	}
	return records
}

func flattenValue(v interface{}, out *[]map[string]interface{}) {
	switch node := v.(type) {
	case []interface{}:
		for _, child := range node {
			flattenValue(child, out)
		}
	case map[string]interface{}:
		*out = append(*out, node)
	}
}

// normalize 把一条原始记录归一化为 ForumEntry。
// 既没有 id 也没有 name 的记录被丢弃。
func normalize(record map[string]interface{}) (ForumEntry, bool) {
	entry := ForumEntry{
		ID:     stringField(record, "id"),
		Name:   stringField(record, "name"),
		Slogan: stringField(record, "slogan"),
	}
	if entry.ID == "" && entry.Name == "" {
		return ForumEntry{}, false
	}
	return entry, true
}

// stringField 读取可能是字符串或数字的字段。
func stringField(record map[string]interface{}, key string) string {
	switch v := record[key].(type) {
	case string:
		return v
	case float64:
		// JSON 数字经 interface{} 解码后是 float64；id 都是整数。
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
