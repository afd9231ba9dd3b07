package tieba

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// 移动客户端协议常量。
const (
	clientType    = "2"
	clientVersion = "9.7.8.0"
	netType       = "1"
	fromID        = "1008621y"
	vcodeTag      = "11"
	pageSize      = "200"
)

// Endpoints 汇集上游接口地址，测试时可整体替换。
type Endpoints struct {
	TBS       string
	Favorites string
	SignIn    string
	Reply     string
	Delete    string
	SetTop    string
	ForumName string
}

// DefaultEndpoints 返回线上环境的接口地址。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TBS:       "http://tieba.baidu.com/dc/common/tbs",
		Favorites: "http://c.tieba.baidu.com/c/f/forum/like",
		SignIn:    "http://c.tieba.baidu.com/c/c/forum/sign",
		Reply:     "https://tieba.baidu.com/f/commit/post/add",
		Delete:    "https://c.tieba.baidu.com/c/u/comment/postDel",
		SetTop:    "https://tieba.baidu.com/mo/q",
		ForumName: "http://tieba.baidu.com/f/commit/share/fnameShareApi",
	}
}

// TBS 获取短时效的反 CSRF 令牌，后续签名接口都需要它。
func (c *Client) TBS(ctx context.Context, bduss string) (string, error) {
	out := c.Execute(ctx, &RequestSpec{
		Method: http.MethodGet,
		URL:    c.Endpoints.TBS,
		BDUSS:  bduss,
	})
	if !out.Success() {
		return "", fmt.Errorf("failed to fetch tbs: %w", out.AsError())
	}

	var payload struct {
		TBS string `json:"tbs"`
	}
	if err := out.Response.JSON(&payload); err != nil {
		return "", fmt.Errorf("failed to decode tbs response: %w", err)
	}
	if payload.TBS == "" {
		return "", fmt.Errorf("tbs missing from response")
	}
	return payload.TBS, nil
}

// FavoritePage 拉取关注贴吧列表的一页。页号从 1 开始，必须顺序请求。
func (c *Client) FavoritePage(ctx context.Context, bduss string, page int) (*RawPage, error) {
	out := c.Execute(ctx, &RequestSpec{
		Method: http.MethodPost,
		URL:    c.Endpoints.Favorites,
		Signed: true,
		BDUSS:  bduss,
		Params: map[string]string{
			"BDUSS":     bduss,
			"from":      fromID,
			"page_no":   strconv.Itoa(page),
			"page_size": pageSize,
			"vcode_tag": vcodeTag,
		},
	})
	if !out.Success() {
		return nil, fmt.Errorf("failed to fetch favorites page %d: %w", page, out.AsError())
	}

	var raw RawPage
	if err := out.Response.JSON(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode favorites page %d: %w", page, err)
	}
	return &raw, nil
}

// SignIn 对一个贴吧执行签到。业务层 error_code 由调用方从 Response 判断。
func (c *Client) SignIn(ctx context.Context, bduss, tbs, fid, kw string) Outcome {
	return c.Execute(ctx, &RequestSpec{
		Method: http.MethodPost,
		URL:    c.Endpoints.SignIn,
		Signed: true,
		BDUSS:  bduss,
		Params: map[string]string{
			"BDUSS": bduss,
			"fid":   fid,
			"kw":    kw,
			"tbs":   tbs,
		},
	})
}

// Reply 在目标帖子下回复，成功时返回新回复的 pid。
func (c *Client) Reply(ctx context.Context, bduss, tbs, fid, tid, content string) (string, Outcome) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	out := c.Execute(ctx, &RequestSpec{
		Method: http.MethodPost,
		URL:    c.Endpoints.Reply,
		Signed: true,
		BDUSS:  bduss,
		Mobile: true,
		Params: map[string]string{
			"BDUSS":       bduss,
			"content":     content,
			"fid":         fid,
			"tid":         tid,
			"vcode_tag":   vcodeTag,
			"tbs":         tbs,
			"mouse_pwd_t": now,
			"mouse_pwd":   now,
		},
	})
	if !out.Success() {
		return "", out
	}

	var payload struct {
		Data struct {
			PostID json.Number `json:"post_id"`
		} `json:"data"`
		Pid json.Number `json:"pid"`
	}
	if err := out.Response.JSON(&payload); err == nil {
		if pid := payload.Data.PostID.String(); pid != "" {
			return pid, out
		}
		return payload.Pid.String(), out
	}
	return "", out
}

// DeletePost 删除自己发出的回复。
func (c *Client) DeletePost(ctx context.Context, bduss, tbs, pid string) Outcome {
	return c.Execute(ctx, &RequestSpec{
		Method: http.MethodPost,
		URL:    c.Endpoints.Delete,
		Signed: true,
		BDUSS:  bduss,
		Mobile: true,
		Params: map[string]string{
			"post_id":  pid,
			"del_type": "0",
			"tbs":      tbs,
		},
	})
}

// Pin 尝试将帖子置顶。该旧接口返回 HTML，只看传输层结果。
func (c *Client) Pin(ctx context.Context, bduss, tbs, word, postID string) Outcome {
	return c.setTop(ctx, bduss, tbs, word, postID, "bdTOP")
}

// Unpin 尝试取消置顶。
func (c *Client) Unpin(ctx context.Context, bduss, tbs, word, postID string) Outcome {
	return c.setTop(ctx, bduss, tbs, word, postID, "bdUNTOP")
}

func (c *Client) setTop(ctx context.Context, bduss, tbs, word, postID, action string) Outcome {
	return c.Execute(ctx, &RequestSpec{
		Method:  http.MethodGet,
		URL:     c.Endpoints.SetTop,
		BDUSS:   bduss,
		Mobile:  true,
		RawBody: true,
		Params: map[string]string{
			"tn":   action,
			"z":    postID,
			"tbs":  tbs,
			"word": word,
		},
	})
}

// ForumID 根据吧名查询 fid。吧名末尾的"吧"字不参与查询。
func (c *Client) ForumID(ctx context.Context, bduss, name string) (string, error) {
	out := c.Execute(ctx, &RequestSpec{
		Method: http.MethodGet,
		URL:    c.Endpoints.ForumName,
		BDUSS:  bduss,
		Params: map[string]string{
			"ie":    "utf-8",
			"fname": strings.TrimRight(name, "吧"),
		},
	})
	if !out.Success() {
		return "", fmt.Errorf("failed to resolve fid for %q: %w", name, out.AsError())
	}

	var payload struct {
		Data struct {
			Fid json.Number `json:"fid"`
		} `json:"data"`
	}
	if err := out.Response.JSON(&payload); err != nil {
		return "", fmt.Errorf("failed to decode fid response for %q: %w", name, err)
	}
	if payload.Data.Fid.String() == "" {
		return "", fmt.Errorf("fid missing from response for %q", name)
	}
	return payload.Data.Fid.String(), nil
}
