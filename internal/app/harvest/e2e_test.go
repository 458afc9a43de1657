package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/chartharvest/internal/app/planner"
	"github.com/John-Robertt/chartharvest/internal/config"
	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/csvx"
)

func readProviderFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "..", "provider", "billboardjp", "testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

// fakeSite 模拟站点的两个接口：get_chartdays 与 detail。
func fakeSite(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	chart := readProviderFixture(t, "chart.html")
	noTable := readProviderFixture(t, "no_table.html")

	var (
		mu   sync.Mutex
		reqs []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/charts/get_chartdays", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, r.URL.RequestURI())
		mu.Unlock()
		q := r.URL.Query()
		switch q.Get("year") + q.Get("month") {
		case "202412":
			_, _ = w.Write([]byte(`<option value="20241229">2024年12月29日</option>`))
		case "202501":
			_, _ = w.Write([]byte(`<option value="">選択</option><option value="20250105">1/5</option><option value="20250112">1/12</option>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/charts/detail", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, r.URL.RequestURI())
		mu.Unlock()
		q := r.URL.Query()
		switch q.Get("year") + q.Get("month") + q.Get("day") {
		case "20241229", "20250105":
			_, _ = w.Write(chart)
		case "20250112":
			_, _ = w.Write(noTable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestE2E_HarvestAgainstFakeSite(t *testing.T) {
	srv, reqs := fakeSite(t)

	cwd := t.TempDir()
	eff := config.Defaults(cwd)
	eff.BaseURL = srv.URL
	eff.Delay = 0
	eff.ArchivePages = true
	eff.SQLitePath = filepath.Join(cwd, "db", "charts.db")

	obs := &recordObserver{}
	h, err := New(eff, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer h.Close()

	start := domain.Period{Year: 2024, Month: 12}
	end := domain.Period{Year: 2025, Month: 2}
	rr, records := h.Harvest(context.Background(), start, end, OptionsFrom(eff))

	// 12 月 1 期成功；1 月 1 成功 + 1 解析失败；2 月日期接口 500 => no_dates。
	if rr.Summary.Succeeded != 2 || rr.Summary.Failed != 2 || rr.Summary.Records != 18 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if rr.Items[2].ErrorCode != domain.ErrCodeParseFailed || rr.Items[3].ErrorCode != domain.ErrCodeNoDates {
		t.Fatalf("失败分类不符合预期：%+v", rr.Items)
	}
	if rr.Items[0].SkippedRows != 1 {
		t.Fatalf("畸形行应计入 skipped_rows：%+v", rr.Items[0])
	}
	if len(records) != 18 || records[0].Date.Compact() != "20241229" || records[9].Date.Compact() != "20250105" {
		t.Fatalf("合并记录不符合预期：%d", len(records))
	}
	if len(obs.warns) != 1 {
		t.Fatalf("期望 1 条诊断（2 月日期接口失败），实际 %v", obs.warns)
	}

	layout := planner.NewLayout(eff.OutDir, eff.Chart, start, end)
	header, rows, err := csvx.ReadRecordSet(layout.DatePath(domain.ChartDate{Year: 2025, Month: 1, Day: 5}))
	if err != nil {
		t.Fatalf("读取每期文件失败：%v", err)
	}
	if len(header) != 7 || header[0] != csvx.ColImage || len(rows) != 9 {
		t.Fatalf("每期文件不符合预期：header=%v rows=%d", header, len(rows))
	}
	if rows[3][1] != "new" || rows[3][4] != "NEW" {
		t.Fatalf("第 4 名应为 NEW：%v", rows[3])
	}
	if _, err := os.Stat(layout.DatePath(domain.ChartDate{Year: 2025, Month: 1, Day: 12})); !os.IsNotExist(err) {
		t.Fatalf("解析失败的期不应产生文件：%v", err)
	}

	_, combined, err := csvx.ReadRecordSet(layout.CombinedPath())
	if err != nil || len(combined) != 18 {
		t.Fatalf("合并文件不符合预期：rows=%d err=%v", len(combined), err)
	}

	archived := filepath.Join(eff.OutDir, "cache", "pages", "hot100", "20250105.html")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("期望页面已归档：%v", err)
	}

	// 请求顺序：先日期、再逐期；每月一次日期请求。
	want := []string{
		"/charts/get_chartdays?a=hot100&year=2024&month=12",
		"/charts/detail?a=hot100&year=2024&month=12&day=29",
		"/charts/get_chartdays?a=hot100&year=2025&month=01",
		"/charts/detail?a=hot100&year=2025&month=01&day=05",
		"/charts/detail?a=hot100&year=2025&month=01&day=12",
		"/charts/get_chartdays?a=hot100&year=2025&month=02",
	}
	if len(*reqs) != len(want) {
		t.Fatalf("请求次数不符合预期：%v", *reqs)
	}
	for i := range want {
		if (*reqs)[i] != want[i] {
			t.Fatalf("第 %d 个请求期望 %q，实际 %q", i, want[i], (*reqs)[i])
		}
	}
}

func TestE2E_RealSleepHonoursDelay(t *testing.T) {
	srv, _ := fakeSite(t)

	eff := config.Defaults(t.TempDir())
	eff.BaseURL = srv.URL
	eff.Delay = 50 * time.Millisecond

	h, err := New(eff, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer h.Close()

	p := domain.Period{Year: 2025, Month: 1}
	started := time.Now()
	rr, _ := h.Harvest(context.Background(), p, p, OptionsFrom(eff))
	if len(rr.Items) != 2 {
		t.Fatalf("期望 2 期，实际 %+v", rr.Items)
	}
	if el := time.Since(started); el < 100*time.Millisecond {
		t.Fatalf("两期之后各等待一次，总耗时至少 100ms，实际 %s", el)
	}
}
