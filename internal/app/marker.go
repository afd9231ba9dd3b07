package app

import (
	"encoding/json"
	"os"
	"time"

	"tiebaagent/internal/shared/logger"
)

const markerDateLayout = "2006-01-02"

type runMarker struct {
	LastRun string `json:"last_run"`
}

// canRunModerator 根据上次执行日期标记判断吧主任务是否到期。
// 标记文件缺失或损坏视为可以执行。
func canRunModerator(path string, intervalDays int, now time.Time) bool {
	l := logger.WithComponent("App/Marker")

	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}

	var marker runMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Moderator run marker is corrupt, treating task as due.")
		return true
	}
	last, err := time.Parse(markerDateLayout, marker.LastRun)
	if err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Moderator run marker has invalid date, treating task as due.")
		return true
	}

	elapsed := now.Sub(last)
	if elapsed < time.Duration(intervalDays)*24*time.Hour {
		l.Info().
			Str("last_run", marker.LastRun).
			Int("interval_days", intervalDays).
			Msg("Moderator task ran recently, skipping this round.")
		return false
	}
	return true
}

// writeMarker 记录本次吧主任务的执行日期。写入失败只记日志。
func writeMarker(path string, now time.Time) {
	l := logger.WithComponent("App/Marker")
	data, err := json.Marshal(runMarker{LastRun: now.Format(markerDateLayout)})
	if err == nil {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Failed to update moderator run marker.")
		return
	}
	l.Info().Str("date", now.Format(markerDateLayout)).Msg("Moderator run marker updated.")
}
