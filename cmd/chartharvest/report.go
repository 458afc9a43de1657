package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/John-Robertt/chartharvest/internal/app/harvest"
	"github.com/John-Robertt/chartharvest/internal/app/planner"
	"github.com/John-Robertt/chartharvest/internal/config"
	"github.com/John-Robertt/chartharvest/internal/domain"
)

// emitReport 输出最终报告。
// stdout 非 TTY 时 stdout 必须且仅输出一个 RunReport JSON，摘要走 stderr。
func emitReport(e *env, rr domain.RunReport) {
	summary := fmt.Sprintf("完成：succeeded=%d failed=%d records=%d", rr.Summary.Succeeded, rr.Summary.Failed, rr.Summary.Records)
	if rr.Canceled {
		summary += " (已取消)"
	}

	if isTTY(e.stdout) {
		fmt.Fprintln(e.stdout, summary)
		for _, it := range rr.Items {
			if !it.Failure() {
				continue
			}
			key := it.Date
			if key == "" {
				key = it.Period
			}
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(e.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(e.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(e.stderr, summary)
}

// emitItem 是 fetch 的输出：同样遵守“非 TTY 时 stdout 只有 JSON”。
func emitItem(e *env, it domain.ItemResult) {
	line := fmt.Sprintf("%s entries=%d skipped=%d", it.Status, it.Entries, it.SkippedRows)
	if it.Output != "" {
		line += " out=" + it.Output
	}
	if it.ErrorCode != "" {
		line += fmt.Sprintf(" %s: %s", it.ErrorCode, it.ErrorMsg)
	}

	if isTTY(e.stdout) {
		fmt.Fprintln(e.stdout, line)
		return
	}
	_ = json.NewEncoder(e.stdout).Encode(it)
	fmt.Fprintln(e.stderr, line)
}

func reportForConfigError(start, end domain.Period, err error) domain.RunReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	now := time.Now().UTC()
	rr := domain.RunReport{
		Start:      start.String(),
		End:        end.String(),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(e *env) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(e.stderr) {
		return e.stderr, true
	}
	// 仅重定向了 stderr 时，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(e.stdout) {
		return e.stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, l planner.Layout) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "report: %s\n", l.ReportPath())
	fmt.Fprintf(w, "out: %s\n", l.RunDir())
}

// warnObserver 只转发诊断：非交互的 harvest 与 fetch 这类单步命令使用。
type warnObserver struct {
	w io.Writer
}

var _ harvest.Observer = warnObserver{}

func (warnObserver) OnStart(domain.RunReport)                                      {}
func (warnObserver) OnPeriod(int, int, domain.Period, []domain.ChartDate)          {}
func (warnObserver) OnDateDone(domain.ChartDate, domain.ItemResult, time.Duration) {}
func (o warnObserver) OnWarn(msg string)                                           { fmt.Fprintf(o.w, "警告：%s\n", msg) }
func (warnObserver) OnFinish(domain.RunReport)                                     {}
