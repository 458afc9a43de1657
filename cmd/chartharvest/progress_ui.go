package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/chartharvest/internal/app/harvest"
	"github.com/John-Robertt/chartharvest/internal/config"
	"github.com/John-Robertt/chartharvest/internal/domain"
)

var _ harvest.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：harvest 只发事件，CLI 决定如何展示
type progressUI struct {
	w   io.Writer
	eff config.EffectiveConfig

	mu        sync.Mutex
	startedAt time.Time

	periods int
	period  int
	dates   int // 当前月份的日期数
	dateIdx int
	ok      int
	fail    int
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig) *progressUI {
	return &progressUI{w: w, eff: eff}
}

func (p *progressUI) OnStart(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.startedAt = now

	fmt.Fprintf(p.w, "[%s] chartharvest harvest %s %s → %s\n", now.Format("15:04:05"), rr.Chart, rr.Start, rr.End)
	fmt.Fprintln(p.w, "配置（生效）:")
	if p.eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", p.eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  out_dir: %s\n", p.eff.OutDir)
	fmt.Fprintf(p.w, "  delay: %s\n", p.eff.Delay)
	fmt.Fprintf(p.w, "  capture_images: %s\n", onOff(p.eff.CaptureImages))
	fmt.Fprintf(p.w, "  emit_console: %s\n", onOff(p.eff.EmitConsole))
	fmt.Fprintf(p.w, "  archive_pages: %s\n", onOff(p.eff.ArchivePages))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(p.eff.ProxyURL))
	if p.eff.SQLitePath != "" {
		fmt.Fprintf(p.w, "  sqlite: %s\n", p.eff.SQLitePath)
	}
	if p.eff.BaseURL != config.DefaultBaseURL {
		fmt.Fprintf(p.w, "  base_url: %s\n", truncate(p.eff.BaseURL, 120))
	}
	fmt.Fprintf(p.w, "  run_id: %s\n", rr.RunID)
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPeriod(idx, total int, period domain.Period, dates []domain.ChartDate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.period, p.periods = idx, total
	p.dates, p.dateIdx = len(dates), 0
	if len(dates) == 0 {
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s 没有可用的榜单日期\n", idx, total, period)
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] %s dates=%d\n", idx, total, period, len(dates))
}

func (p *progressUI) OnDateDone(date domain.ChartDate, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dateIdx++
	switch res.Status {
	case domain.StatusOK:
		p.ok++
		skipped := ""
		if res.SkippedRows > 0 {
			skipped = fmt.Sprintf(" skipped=%d", res.SkippedRows)
		}
		fmt.Fprintf(p.w, "  (%d/%d) %s OK entries=%d%s (%s)\n",
			p.dateIdx, p.dates, date, res.Entries, skipped, formatShortDuration(dur),
		)
	case domain.StatusEmpty:
		p.fail++
		fmt.Fprintf(p.w, "  (%d/%d) %s EMPTY %s (%s)\n",
			p.dateIdx, p.dates, date, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		p.fail++
		fmt.Fprintf(p.w, "  (%d/%d) %s FAIL %s: %s (%s)\n",
			p.dateIdx, p.dates, date, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
}

func (p *progressUI) OnWarn(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] 警告：%s\n", time.Now().Format("15:04:05"), truncate(msg, 200))
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		elapsed = time.Since(p.startedAt)
	}
	state := "结束"
	if rr.Canceled {
		state = "已取消"
	}
	fmt.Fprintf(p.w, "\n[%s] %s: ok=%d fail=%d records=%d elapsed=%s\n",
		time.Now().Format("15:04:05"), state, p.ok, p.fail, rr.Summary.Records, formatElapsed(elapsed),
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
