package report

import (
	"strings"
	"testing"
	"time"

	"tiebaagent/internal/tieba"
)

func TestBuildListsForumsPerAccount(t *testing.T) {
	results := []AccountResult{
		{Index: 0, Forums: []tieba.ForumEntry{{ID: "1", Name: "golang", Slogan: "gopher home"}}, Signed: 1},
		{Index: 1, Forums: []tieba.ForumEntry{{ID: "2", Name: "linux"}}, Signed: 1},
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	subject, body := Build(results, 95*time.Second, nil, now)

	if !strings.Contains(subject, "2026-08-30") {
		t.Errorf("subject %q missing date", subject)
	}
	if !strings.Contains(subject, "2") {
		t.Errorf("subject %q missing account count", subject)
	}
	if !strings.Contains(body, "golang") || !strings.Contains(body, "gopher home") {
		t.Error("body missing forum name or slogan")
	}
	// Empty slogan renders the placeholder.
	if !strings.Contains(body, "无") {
		t.Error("body missing empty-slogan placeholder")
	}
	if !strings.Contains(body, "1分35秒") {
		t.Errorf("body missing formatted duration, got: %.200s", body)
	}
}

func TestBuildRendersModeratorStatus(t *testing.T) {
	moderator := []ModeratorStatus{
		{Bar: "golang", Reply: true, Top: false},
		{Bar: "linux", Reply: false, Top: false},
	}
	_, body := Build(nil, time.Second, moderator, time.Now())

	if !strings.Contains(body, "✅") || !strings.Contains(body, "❌") {
		t.Error("moderator icons missing from body")
	}
	if !strings.Contains(body, "成功") || !strings.Contains(body, "失败") {
		t.Error("moderator status words missing from body")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42秒"},
		{95 * time.Second, "1分35秒"},
		{0, "0秒"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%s) = %s, want %s", c.d, got, c.want)
		}
	}
}
