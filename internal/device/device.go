// Package device 生成并持久化一套稳定的移动设备指纹，
// 让所有请求在多次运行之间表现为同一台手机客户端。
package device

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"

	"tiebaagent/internal/shared/logger"
)

// profile 是设备目录中的一个条目。
type profile struct {
	Model          string
	Brand          string
	AndroidVersion string
	// tac 是 IMEI 的前 8 位 (型号分配码)，与机型对应。
	tac string
}

// 固定的设备目录。IMEI 前缀取自对应机型的真实 TAC 段。
var catalog = []profile{
	{Model: "MI 8", Brand: "Xiaomi", AndroidVersion: "10", tac: "86426604"},
	{Model: "MI 10", Brand: "Xiaomi", AndroidVersion: "11", tac: "86723004"},
	{Model: "Redmi Note 9", Brand: "Redmi", AndroidVersion: "10", tac: "86390805"},
	{Model: "Mi 11 Lite", Brand: "Xiaomi", AndroidVersion: "12", tac: "86836905"},
	{Model: "ONEPLUS A6000", Brand: "OnePlus", AndroidVersion: "10", tac: "86428104"},
	{Model: "HUAWEI P30", Brand: "Huawei", AndroidVersion: "10", tac: "86612304"},
}

var imeiPattern = regexp.MustCompile(`^[0-9]{15}$`)

// Identity 是一台虚拟设备的完整指纹。生成后不再变化，
// 由所有请求构造方只读共享。
type Identity struct {
	IMEI           string `json:"imei"`
	Model          string `json:"model"`
	Brand          string `json:"brand"`
	AndroidVersion string `json:"android_version"`
	ClientID       string `json:"client_id"`
	InstallID      string `json:"install_id"`
	CUID           string `json:"cuid"`
}

// LoadOrCreate 读取持久化的设备指纹；文件缺失或损坏时生成新指纹并立即落盘。
// 落盘失败只记日志，不中断本次运行 (指纹仍在内存中有效)。
func LoadOrCreate(path string) (*Identity, error) {
	l := logger.WithComponent("Device")

	if data, err := os.ReadFile(path); err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err == nil && id.valid() {
			l.Debug().Str("imei", id.IMEI).Str("model", id.Model).Msg("Loaded persisted device identity.")
			return &id, nil
		}
		l.Warn().Str("path", path).Msg("Device identity file is corrupt, regenerating.")
	}

	id := generate()
	if err := persist(path, id); err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Failed to persist device identity, continuing in-memory.")
	} else {
		l.Info().Str("model", id.Model).Msg("Generated and persisted new device identity.")
	}
	return id, nil
}

func (id *Identity) valid() bool {
	return imeiPattern.MatchString(id.IMEI) && luhnValid(id.IMEI) &&
		id.Model != "" && id.ClientID != "" && id.CUID != ""
}

// Params 返回该设备贡献给每个签名请求的公共参数。
func (id *Identity) Params() map[string]string {
	return map[string]string{
		"_client_id":  id.ClientID,
		"_phone_imei": id.IMEI,
		"cuid":        id.CUID,
		"model":       id.Model,
	}
}

func generate() *Identity {
	p := catalog[rand.Intn(len(catalog))]
	imei := generateIMEI(p.tac)
	now := time.Now()

	clientID := fmt.Sprintf("wappc_%d_%03d", now.UnixMilli(), rand.Intn(1000))
	cuidSeed := fmt.Sprintf("%s%s%d", imei, p.Model, now.UnixNano())
	cuid := fmt.Sprintf("%X", md5.Sum([]byte(cuidSeed)))[:20]

	return &Identity{
		IMEI:           imei,
		Model:          p.Model,
		Brand:          p.Brand,
		AndroidVersion: p.AndroidVersion,
		ClientID:       clientID,
		InstallID:      uuid.New().String(),
		CUID:           cuid,
	}
}

// generateIMEI 在 8 位 TAC 后补 6 位随机序列号，再附加 Luhn 校验位。
func generateIMEI(tac string) string {
	body := tac
	for i := 0; i < 6; i++ {
		body += fmt.Sprintf("%d", rand.Intn(10))
	}
	return body + fmt.Sprintf("%d", luhnCheckDigit(body))
}

// luhnCheckDigit 对 14 位数字体计算校验位：从右往左每隔一位翻倍，
// 超过 9 则减 9，校验位 = (10 - sum mod 10) mod 10。
func luhnCheckDigit(body string) int {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// luhnValid 校验完整的 15 位标识符。
func luhnValid(imei string) bool {
	if len(imei) != 15 {
		return false
	}
	return luhnCheckDigit(imei[:14]) == int(imei[14]-'0')
}

func persist(path string, id *Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal device identity: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
