package tieba

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// 风控 error_code 集合。命中任何一个都会触发全局冷却。
var windControlCodes = map[int]struct{}{
	110:    {},
	221023: {},
	219016: {},
}

// ErrRateLimited 在风控冷却结束后返回给调用方，
// 让上层能区分风控与普通失败并放弃整批操作。
var ErrRateLimited = errors.New("wind control triggered")

// ErrPathsExhausted 表示所有出口路径的重试额度都已用尽。
var ErrPathsExhausted = errors.New("all egress paths exhausted")

// OutcomeKind 标记一次请求执行的最终归类。
type OutcomeKind int

const (
	// KindSuccess: 传输层成功拿到可解码的响应。业务层的 error_code
	// 是否为 0 由调用方自己判断。
	KindSuccess OutcomeKind = iota
	// KindRateLimited: 上游风控命中，已完成冷却。
	KindRateLimited
	// KindFatal: 所有路径耗尽，操作失败。
	KindFatal
)

// Outcome 是一次 Execute 的结果。
type Outcome struct {
	Kind     OutcomeKind
	Response *Response
	Code     int   // 风控码, 仅 KindRateLimited 时有效
	Err      error // 失败原因, 仅 KindFatal 时有效
}

// Success 报告该结果是否为传输层成功。
func (o Outcome) Success() bool {
	return o.Kind == KindSuccess
}

// AsError 将非成功结果转换为可判别的 error。
func (o Outcome) AsError() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindRateLimited:
		return fmt.Errorf("%w (code %d)", ErrRateLimited, o.Code)
	default:
		if o.Err != nil {
			return o.Err
		}
		return ErrPathsExhausted
	}
}

// Response 是已经通过传输层分类的上游响应。
type Response struct {
	StatusCode int
	Body       []byte

	// ErrorCode 是业务层错误码。上游有时返回数字、有时返回字符串，
	// 解码时统一归一为 int；无法解析或缺失时为 0。
	ErrorCode int
}

// JSON 将响应体解码到 v。
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// flexibleCode 兼容 error_code 字段的字符串/数字两种形态。
// 偶尔出现的消息体式错误码解析不出数字，一律归一为 0，
// 不能因为它把整个响应当成坏响应去重试。
type flexibleCode int

func (f *flexibleCode) UnmarshalJSON(data []byte) error {
	*f = 0
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexibleCode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexibleCode(n)
	}
	return nil
}

type codeProbe struct {
	ErrorCode flexibleCode `json:"error_code"`
}
