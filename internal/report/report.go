// Package report 渲染签到结果的 HTML 报告并通过 SMTP 发送。
package report

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"tiebaagent/internal/shared/logger"
	"tiebaagent/internal/shared/types"
	"tiebaagent/internal/tieba"
)

// AccountResult 汇总一个账号的签到情况。
type AccountResult struct {
	Index  int
	Forums []tieba.ForumEntry
	Signed int
	Failed int
}

// ModeratorStatus 记录一个吧的吧主考核任务执行结果。
type ModeratorStatus struct {
	Bar   string
	Reply bool
	Top   bool
}

// Send 渲染并发送签到报告。邮箱未配置时记日志跳过，从不让报告失败
// 影响主流程。
func Send(cfg types.MailConf, results []AccountResult, total time.Duration, moderator []ModeratorStatus) error {
	l := logger.WithComponent("Report")

	if cfg.Host == "" || cfg.From == "" || cfg.To == "" || cfg.Auth == "" {
		l.Warn().Msg("Mail is not configured, skipping report delivery.")
		return nil
	}

	subject, body := Build(results, total, moderator, time.Now())
	recipients := strings.Split(cfg.To, "#")

	host := cfg.Host
	if !strings.Contains(host, ":") {
		host += ":25"
	}
	serverName := host[:strings.Index(host, ":")]

	var msg strings.Builder
	msg.WriteString("From: " + cfg.From + "\r\n")
	msg.WriteString("To: " + strings.Join(recipients, ", ") + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", cfg.From, cfg.Auth, serverName)
	if err := smtp.SendMail(host, auth, cfg.From, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send report mail: %w", err)
	}
	l.Info().Int("recipients", len(recipients)).Msg("Report mail sent.")
	return nil
}

// Build 渲染报告的主题与 HTML 正文。
func Build(results []AccountResult, total time.Duration, moderator []ModeratorStatus, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("%s 签到%d个贴吧账号", now.Format("2006-01-02"), len(results))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h2 style='color: #66ccff;'>签到报告 - %s</h2>", now.Format("2006年01月02日")))
	sb.WriteString(fmt.Sprintf("<h3>共有%d个账号签到，总签到时间：%s</h3>", len(results), formatDuration(total)))

	if len(moderator) > 0 {
		sb.WriteString("<h3>吧主考核任务执行情况：</h3>")
		for _, m := range moderator {
			icon := "❌"
			if m.Reply || m.Top {
				icon = "✅"
			}
			sb.WriteString(fmt.Sprintf(`<div class="child">%s：%s<br>发帖操作：%s<br>置顶操作：%s</div>`,
				m.Bar, icon, statusWord(m.Reply), statusWord(m.Top)))
		}
	}

	sb.WriteString(`<style>.child { background-color: rgba(173, 216, 230, 0.19); padding: 10px; } .child * { margin: 5px; }</style>`)

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("<br><b>账号%d的签到信息：</b><br><br>", r.Index+1))
		for _, f := range r.Forums {
			slogan := f.Slogan
			if slogan == "" {
				slogan = "无"
			}
			sb.WriteString(fmt.Sprintf(`<div class="child"><div class="name"> 贴吧名称: %s </div><div class="slogan"> 贴吧简介: %s </div></div><hr>`,
				f.Name, slogan))
		}
	}
	return subject, sb.String()
}

func statusWord(ok bool) string {
	if ok {
		return "成功"
	}
	return "失败"
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	minutes := seconds / 60
	remaining := seconds % 60
	if minutes > 0 {
		return fmt.Sprintf("%d分%d秒", minutes, remaining)
	}
	return fmt.Sprintf("%d秒", remaining)
}
