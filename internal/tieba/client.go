// Package tieba 实现贴吧移动端私有 API 的弹性请求层：
// 请求签名、代理链回退、风控冷却与分页采集。
package tieba

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tiebaagent/internal/device"
	"tiebaagent/internal/shared/logger"
	"tiebaagent/internal/shared/types"
	"tiebaagent/internal/sign"
	"tiebaagent/proxypool"
)

// 同一路径两次尝试之间的固定间隔。
const attemptDelay = 2 * time.Second

// RequestSpec 描述一次逻辑 API 调用。
type RequestSpec struct {
	Method string
	URL    string
	// Params 作为 POST 表单或 GET 查询串发送。
	Params map[string]string
	// Signed 为 true 时补齐设备参数并在发送前计算签名。
	Signed bool
	// BDUSS 是会话 Cookie；为空则不带 Cookie。
	BDUSS string
	// Mobile 控制 User-Agent 形态。
	Mobile bool
	// RawBody 为 true 时不要求响应体是可解码的 JSON
	// (置顶等旧接口返回 HTML)。
	RawBody bool
}

// Client 把一次逻辑调用变成跨代理链、带重试与风控冷却的网络操作。
// 每个账号一个 Client，风控冷却因此按账号隔离；代理链可以跨账号共享。
type Client struct {
	// Endpoints 默认指向线上接口，测试可整体替换。
	Endpoints Endpoints

	chain  *proxypool.Chain
	device *device.Identity

	sleeper         Sleeper
	timeout         time.Duration
	maxPaths        int
	attemptsPerPath int
	cooldown        time.Duration
}

// New 创建弹性客户端。sleeper 传 nil 时使用真实时钟。
func New(chain *proxypool.Chain, dev *device.Identity, cfg types.NetworkConf, sleeper Sleeper) *Client {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Client{
		Endpoints:       DefaultEndpoints(),
		chain:           chain,
		device:          dev,
		sleeper:         sleeper,
		timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxPaths:        cfg.MaxPaths,
		attemptsPerPath: cfg.AttemptsPerPath,
		cooldown:        time.Duration(cfg.CooldownSeconds) * time.Second,
	}
}

// Execute 在代理链上执行一次调用。
// 状态机：逐条路径尝试，同一路径最多 attemptsPerPath 次；
// 命中风控立即冷却并返回 KindRateLimited (不消耗路径额度)；
// 所有路径耗尽返回 KindFatal。
func (c *Client) Execute(ctx context.Context, spec *RequestSpec) Outcome {
	l := logger.WithComponent("Tieba/Client")

	params := c.finalizeParams(spec)
	paths := c.chain.Candidates()
	if c.maxPaths > 0 && len(paths) > c.maxPaths {
		// 截断时保住末尾的直连哨兵。
		direct := paths[len(paths)-1]
		paths = append(paths[:c.maxPaths-1:c.maxPaths-1], direct)
	}

	var lastErr error
	for _, path := range paths {
		httpClient, err := clientFor(path, c.timeout)
		if err != nil {
			l.Warn().Err(err).Str("path", path.Masked()).Msg("Unusable egress path, skipping.")
			c.chain.MarkFailed(path)
			continue
		}

		for attempt := 1; attempt <= c.attemptsPerPath; attempt++ {
			if ctx.Err() != nil {
				return Outcome{Kind: KindFatal, Err: ctx.Err()}
			}

			resp, err := c.attempt(ctx, httpClient, spec, params)
			if err == nil {
				if _, limited := windControlCodes[resp.ErrorCode]; limited {
					l.Warn().Int("code", resp.ErrorCode).
						Msgf("Wind control triggered, backing off for %s", c.cooldown)
					c.sleeper.Sleep(ctx, c.cooldown)
					return Outcome{Kind: KindRateLimited, Code: resp.ErrorCode, Response: resp}
				}
				c.chain.MarkVerified(path)
				return Outcome{Kind: KindSuccess, Response: resp}
			}

			lastErr = err
			l.Debug().Err(err).Str("path", path.Masked()).Int("attempt", attempt).Msg("Attempt failed.")
			if attempt < c.attemptsPerPath {
				c.sleeper.Sleep(ctx, attemptDelay)
			}
		}
		c.chain.MarkFailed(path)
	}

	return Outcome{Kind: KindFatal, Err: fmt.Errorf("%w: %v", ErrPathsExhausted, lastErr)}
}

// attempt 发送一次请求并做传输层分类。返回的 error 表示瞬时失败。
func (c *Client) attempt(ctx context.Context, httpClient *http.Client, spec *RequestSpec, params map[string]string) (*Response, error) {
	req, err := buildRequest(ctx, spec, params)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, spec.URL)
	}

	out := &Response{StatusCode: resp.StatusCode, Body: body}
	if spec.RawBody {
		return out, nil
	}

	var probe codeProbe
	if err := out.JSON(&probe); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	out.ErrorCode = int(probe.ErrorCode)
	return out, nil
}

// finalizeParams 固化本次调用的全部参数。签名请求补齐设备参数、
// 客户端常量与时间戳，最后计算签名；同一次 Execute 的所有重试
// 共用同一份签名参数。
func (c *Client) finalizeParams(spec *RequestSpec) map[string]string {
	params := make(map[string]string, len(spec.Params)+8)
	for k, v := range spec.Params {
		params[k] = v
	}
	if !spec.Signed {
		return params
	}

	for k, v := range c.device.Params() {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	params["_client_type"] = clientType
	params["_client_version"] = clientVersion
	params["net_type"] = netType
	if _, ok := params["timestamp"]; !ok {
		params["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	}
	return sign.Sign(params)
}

func buildRequest(ctx context.Context, spec *RequestSpec, params map[string]string) (*http.Request, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	var req *http.Request
	var err error
	if spec.Method == http.MethodGet {
		target := spec.URL
		if len(values) > 0 {
			target = spec.URL + "?" + values.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, spec.URL, strings.NewReader(values.Encode()))
	}
	if err != nil {
		return nil, err
	}

	applyHeaders(req, spec.BDUSS, spec.Mobile)
	return req, nil
}
