// Package sign 实现贴吧移动端接口要求的请求参数签名。
package sign

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// signKey 是移动客户端内置的共享密钥。它不是安全边界，
// 只是协议兼容所需的固定常量。
const signKey = "tiebaclient!!!"

// Sign 返回带 sign 字段的参数副本，不修改调用方的 map。
// 签名算法：按 key 字节序排序后拼接 "key=value"，追加共享密钥，
// MD5 后取大写十六进制。相同的参数集 (含 timestamp) 总是产生相同签名。
func Sign(params map[string]string) map[string]string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	sb.WriteString(signKey)

	signed := make(map[string]string, len(params)+1)
	for k, v := range params {
		if k == "sign" {
			continue
		}
		signed[k] = v
	}
	signed["sign"] = fmt.Sprintf("%X", md5.Sum([]byte(sb.String())))
	return signed
}
