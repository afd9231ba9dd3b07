package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"tiebaagent/internal/shared/types"
)

// 配置默认值。ini 文件与环境变量都可以覆盖。
const (
	DefaultPoolSize        = 10
	DefaultMaxPaths        = 3
	DefaultAttemptsPerPath = 3
	DefaultTimeoutSeconds  = 10
	DefaultCooldownSeconds = 300
	DefaultIntervalDays    = 3
)

// Load 加载 ini 行为配置并应用环境变量覆盖。
// 配置文件缺失不是错误：凭证类配置本来就只从环境变量来。
func Load(cfg *types.Config, fileName string) error {
	applyDefaults(cfg)

	if fileName != "" {
		iniFile, err := ini.Load(fileName)
		if err == nil {
			if err := iniFile.MapTo(cfg); err != nil {
				return fmt.Errorf("failed to map config file '%s': %w", fileName, err)
			}
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	overrideFromEnvString(&cfg.NetworkConf.PreferredProxy, "PREFERRED_PROXY")
	overrideFromEnvInt(&cfg.NetworkConf.CooldownSeconds, "COOLDOWN_SECONDS")
	overrideFromEnvString(&cfg.MailConf.Host, "HOST")
	overrideFromEnvString(&cfg.MailConf.From, "FROM")
	overrideFromEnvString(&cfg.MailConf.To, "TO")
	overrideFromEnvString(&cfg.MailConf.Auth, "AUTH")
	overrideFromEnvBool(&cfg.ModeratorConf.Enable, "MODERATOR_TASK_ENABLE")
	overrideFromEnvBool(&cfg.ModeratorConf.PostEnable, "MODERATOR_POST_ENABLE")
	overrideFromEnvBool(&cfg.ModeratorConf.TopEnable, "MODERATOR_TOP_ENABLE")
	overrideFromEnvInt(&cfg.ModeratorConf.AccountIndex, "MODERATOR_BDUSS_INDEX")
	overrideFromEnvInt(&cfg.ModeratorConf.IntervalDays, "MODERATOR_INTERVAL_DAYS")
	overrideFromEnvString(&cfg.ModeratorConf.Bars, "MODERATED_BARS")
	overrideFromEnvString(&cfg.ModeratorConf.PostIDs, "TARGET_POST_IDS")

	cfg.Accounts = splitList(os.Getenv("BDUSS"), "#")
	return nil
}

func applyDefaults(cfg *types.Config) {
	cfg.LogConf.Level = "info"
	cfg.NetworkConf.PoolSize = DefaultPoolSize
	cfg.NetworkConf.MaxPaths = DefaultMaxPaths
	cfg.NetworkConf.AttemptsPerPath = DefaultAttemptsPerPath
	cfg.NetworkConf.TimeoutSeconds = DefaultTimeoutSeconds
	cfg.NetworkConf.CooldownSeconds = DefaultCooldownSeconds
	cfg.NetworkConf.ProxyCachePath = "proxy_pool.txt"
	cfg.NetworkConf.DevicePath = "device.json"
	cfg.ModeratorConf.IntervalDays = DefaultIntervalDays
	cfg.ModeratorConf.MarkerPath = "last_moderator_run.json"
}

func splitList(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvBool(target *bool, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		*target = strings.EqualFold(envValue, "true")
	}
}
