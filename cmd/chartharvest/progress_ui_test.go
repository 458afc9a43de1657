package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/chartharvest/internal/config"
	"github.com/John-Robertt/chartharvest/internal/domain"
)

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	eff := config.Defaults(t.TempDir())
	eff.ProxyURL = "http://user:pw@127.0.0.1:7890"
	p := newProgressUI(&buf, eff)

	p.OnStart(domain.RunReport{RunID: "r1", Chart: "hot100", Start: "2025-01", End: "2025-02"})
	p.OnPeriod(1, 2, domain.Period{Year: 2025, Month: 1}, []domain.ChartDate{{Year: 2025, Month: 1, Day: 5}, {Year: 2025, Month: 1, Day: 12}})
	p.OnDateDone(domain.ChartDate{Year: 2025, Month: 1, Day: 5}, domain.ItemResult{Status: domain.StatusOK, Entries: 100, SkippedRows: 1}, 1200*time.Millisecond)
	p.OnDateDone(domain.ChartDate{Year: 2025, Month: 1, Day: 12}, domain.ItemResult{Status: domain.StatusFailed, ErrorCode: domain.ErrCodeFetchFailed, ErrorMsg: "HTTP 503"}, 0)
	p.OnPeriod(2, 2, domain.Period{Year: 2025, Month: 2}, nil)
	p.OnWarn("日期列表获取失败")
	p.OnFinish(domain.RunReport{Summary: domain.ReportSummary{Records: 100}})

	out := buf.String()
	for _, want := range []string{
		"chartharvest harvest hot100 2025-01 → 2025-02",
		"proxy: on (http://127.0.0.1:7890, auth=on)",
		"[1/2] 2025-01 dates=2",
		"(1/2) 2025-01-05 OK entries=100 skipped=1 (1.2s)",
		"(2/2) 2025-01-12 FAIL fetch_failed: HTTP 503",
		"[2/2] 2025-02 没有可用的榜单日期",
		"警告：日期列表获取失败",
		"结束: ok=1 fail=2 records=100",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if strings.Contains(out, "pw") {
		t.Fatalf("不应输出代理密码：\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("前回：12位", 4); got != "前..." {
		t.Fatalf("truncate=%q", got)
	}
	if got := truncate("  abc ", 10); got != "abc" {
		t.Fatalf("truncate=%q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("formatElapsed=%q", got)
	}
}
