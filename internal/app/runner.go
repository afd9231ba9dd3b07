// Package app 串联账号签到与吧主考核的完整工作流。
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tiebaagent/internal/device"
	"tiebaagent/internal/report"
	"tiebaagent/internal/shared/logger"
	"tiebaagent/internal/shared/types"
	"tiebaagent/internal/tieba"
	"tiebaagent/proxypool"
	"tiebaagent/proxypool/scraper"
	"tiebaagent/proxypool/storage"
)

// 子操作之间的人工节奏区间。刻意随机化以降低可识别的自动化特征。
const (
	signPaceMin = 1 * time.Second
	signPaceMax = 3 * time.Second
	modPaceMin  = 3 * time.Second
	modPaceMax  = 8 * time.Second
)

// Runner 按顺序处理所有账号。代理链和设备指纹跨账号共享，
// 风控冷却通过每账号一个 Client 隔离。
type Runner struct {
	cfg     *types.Config
	chain   *proxypool.Chain
	dev     *device.Identity
	sleeper tieba.Sleeper
}

// NewRunner 构造工作流：加载设备指纹并组装代理链。
func NewRunner(cfg *types.Config) (*Runner, error) {
	dev, err := device.LoadOrCreate(cfg.NetworkConf.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare device identity: %w", err)
	}

	var preferred *url.URL
	if cfg.NetworkConf.PreferredProxy != "" {
		preferred, err = url.Parse(cfg.NetworkConf.PreferredProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid preferred proxy: %w", err)
		}
	}

	chain := proxypool.New(preferred, cfg.NetworkConf.PoolSize, storage.NewFileStorage(cfg.NetworkConf.ProxyCachePath))
	chain.AddScraper(scraper.NewFreeProxyListScraper())
	chain.AddScraper(scraper.NewProxyListDownloadScraper())

	return &Runner{
		cfg:     cfg,
		chain:   chain,
		dev:     dev,
		sleeper: tieba.RealSleeper{},
	}, nil
}

// Run 依次处理每个账号，最后发送签到报告。
// 单个账号或贴吧的失败不会中止整批运行。
func (r *Runner) Run(ctx context.Context) error {
	l := logger.WithComponent("App/Runner")

	if len(r.cfg.Accounts) == 0 {
		return errors.New("no accounts configured, set the BDUSS environment variable")
	}

	canModerate := r.cfg.ModeratorConf.Enable &&
		canRunModerator(r.cfg.ModeratorConf.MarkerPath, r.cfg.ModeratorConf.IntervalDays, time.Now())

	start := time.Now()
	var results []report.AccountResult
	var moderatorStatuses []report.ModeratorStatus
	moderatorRan := false

	for idx, bduss := range r.cfg.Accounts {
		l.Info().Int("account", idx+1).Msg("Starting account run.")
		client := tieba.New(r.chain, r.dev, r.cfg.NetworkConf, r.sleeper)

		result := r.runAccount(ctx, client, idx, bduss)
		results = append(results, result)

		if canModerate && idx == r.cfg.ModeratorConf.AccountIndex {
			statuses := r.runModeratorTasks(ctx, client, bduss)
			if len(statuses) > 0 {
				moderatorStatuses = append(moderatorStatuses, statuses...)
				moderatorRan = true
			}
		}
	}

	if moderatorRan {
		writeMarker(r.cfg.ModeratorConf.MarkerPath, time.Now())
	}

	if err := report.Send(r.cfg.MailConf, results, time.Since(start), moderatorStatuses); err != nil {
		l.Error().Err(err).Msg("Report delivery failed.")
	}

	l.Info().Int("accounts", len(results)).Msg("All account runs finished.")
	return nil
}

// runAccount 执行一个账号的完整签到序列。
func (r *Runner) runAccount(ctx context.Context, client *tieba.Client, idx int, bduss string) report.AccountResult {
	l := logger.WithComponent("App/Runner")
	result := report.AccountResult{Index: idx}

	tbs, err := client.TBS(ctx, bduss)
	if err != nil {
		l.Error().Err(err).Int("account", idx+1).Msg("Failed to fetch tbs, skipping account.")
		return result
	}

	forums, err := tieba.Collect(ctx, func(ctx context.Context, page int) (*tieba.RawPage, error) {
		return client.FavoritePage(ctx, bduss, page)
	})
	if err != nil {
		// 部分结果照常签到，报告也照常包含它们。
		l.Warn().Err(err).Int("collected", len(forums)).Msg("Favorites collection incomplete.")
	}
	result.Forums = forums
	l.Info().Int("account", idx+1).Int("forums", len(forums)).Msg("Collected subscribed forums.")

	for _, forum := range forums {
		r.sleeper.Sleep(ctx, tieba.Jitter(signPaceMin, signPaceMax))

		out := client.SignIn(ctx, bduss, tbs, forum.ID, forum.Name)
		switch out.Kind {
		case tieba.KindSuccess:
			if out.Response.ErrorCode == 0 {
				result.Signed++
			} else {
				result.Failed++
				l.Debug().Str("forum", forum.Name).Int("code", out.Response.ErrorCode).Msg("Sign-in rejected by upstream.")
			}
		case tieba.KindRateLimited:
			// 冷却已经发生；继续硬签剩余贴吧只会再次触发风控。
			l.Warn().Int("code", out.Code).Str("forum", forum.Name).Msg("Wind control hit, aborting the rest of this account's batch.")
			result.Failed++
			return result
		default:
			result.Failed++
			l.Error().Err(out.AsError()).Str("forum", forum.Name).Msg("Sign-in failed on every egress path, continuing with next forum.")
		}
	}
	return result
}

// runModeratorTasks 对配置的每个吧执行一次吧主考核任务。
func (r *Runner) runModeratorTasks(ctx context.Context, client *tieba.Client, bduss string) []report.ModeratorStatus {
	l := logger.WithComponent("App/Moderator")

	bars := splitCSV(r.cfg.ModeratorConf.Bars)
	posts := splitCSV(r.cfg.ModeratorConf.PostIDs)
	if len(bars) == 0 || len(posts) == 0 {
		return nil
	}
	if len(posts) < len(bars) {
		bars = bars[:len(posts)]
	}

	tbs, err := client.TBS(ctx, bduss)
	if err != nil {
		l.Error().Err(err).Msg("Failed to fetch tbs for moderator tasks.")
		return nil
	}

	var statuses []report.ModeratorStatus
	seen := make(map[string]struct{})
	for i, bar := range bars {
		if _, dup := seen[bar]; dup {
			continue
		}
		seen[bar] = struct{}{}

		l.Info().Str("bar", bar).Msg("Running moderator task.")
		statuses = append(statuses, r.moderatorTask(ctx, client, bduss, tbs, bar, posts[i]))
		r.sleeper.Sleep(ctx, 5*time.Second)
	}
	return statuses
}

// moderatorTask 执行回复+删除与置顶+取消置顶两组动作。
func (r *Runner) moderatorTask(ctx context.Context, client *tieba.Client, bduss, tbs, bar, postID string) report.ModeratorStatus {
	l := logger.WithComponent("App/Moderator")
	status := report.ModeratorStatus{Bar: bar}

	fid, err := client.ForumID(ctx, bduss, bar)
	if err != nil {
		l.Error().Err(err).Str("bar", bar).Msg("Failed to resolve fid, skipping moderator task.")
		return status
	}

	if r.cfg.ModeratorConf.PostEnable {
		r.sleeper.Sleep(ctx, tieba.Jitter(modPaceMin, modPaceMax))

		content := time.Now().Format("2006-01-02 15:04:05") + " #(滑稽)"
		pid, out := client.Reply(ctx, bduss, tbs, fid, postID, content)
		switch {
		case out.Kind == tieba.KindRateLimited:
			l.Warn().Int("code", out.Code).Str("bar", bar).Msg("Wind control hit during reply, abandoning task.")
			return status
		case out.Success() && out.Response.ErrorCode == 0:
			status.Reply = true
			l.Info().Str("pid", pid).Str("bar", bar).Msg("Reply posted.")
			if pid != "" {
				r.sleeper.Sleep(ctx, tieba.Jitter(modPaceMin, modPaceMax))
				if del := client.DeletePost(ctx, bduss, tbs, pid); !del.Success() {
					l.Warn().Err(del.AsError()).Str("pid", pid).Msg("Failed to delete own reply.")
				}
			}
		default:
			l.Error().Err(out.AsError()).Str("bar", bar).Msg("Reply failed.")
		}
	}

	if r.cfg.ModeratorConf.TopEnable {
		r.sleeper.Sleep(ctx, tieba.Jitter(modPaceMin, modPaceMax))
		if out := client.Pin(ctx, bduss, tbs, bar, postID); out.Success() {
			status.Top = true
			l.Info().Str("bar", bar).Str("post", postID).Msg("Pin attempt finished.")
		} else {
			l.Error().Err(out.AsError()).Str("bar", bar).Msg("Pin failed.")
		}

		r.sleeper.Sleep(ctx, tieba.Jitter(modPaceMin, modPaceMax))
		if out := client.Unpin(ctx, bduss, tbs, bar, postID); !out.Success() {
			l.Warn().Err(out.AsError()).Str("bar", bar).Msg("Unpin failed.")
		}
	}
	return status
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
