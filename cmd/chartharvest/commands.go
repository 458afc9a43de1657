package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/app"
	"github.com/John-Robertt/chartharvest/internal/app/harvest"
	"github.com/John-Robertt/chartharvest/internal/app/planner"
	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/cache"
	"github.com/John-Robertt/chartharvest/internal/infra/csvx"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
	"github.com/John-Robertt/chartharvest/internal/provider"
	"github.com/John-Robertt/chartharvest/internal/provider/billboardjp"
	"github.com/John-Robertt/chartharvest/internal/scan"
	"github.com/John-Robertt/chartharvest/internal/storage"
)

// HarvestCommand：harvest --start 2025-01 [--end 2025-03]
type HarvestCommand struct {
	Start string `long:"start" required:"true" description:"起始月份 YYYY-MM"`
	End   string `long:"end" description:"结束月份 YYYY-MM（默认等于 --start）"`

	globals *GlobalFlags
	env     *env
}

func (c *HarvestCommand) Execute(args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("多余的参数：%q", args)}
	}
	start, err := domain.ParsePeriod(c.Start)
	if err != nil {
		return usageError{fmt.Errorf("--start：%w", err)}
	}
	end := start
	if strings.TrimSpace(c.End) != "" {
		if end, err = domain.ParsePeriod(c.End); err != nil {
			return usageError{fmt.Errorf("--end：%w", err)}
		}
	}
	if end.Before(start) {
		return usageError{fmt.Errorf("--start %s 晚于 --end %s", start, end)}
	}

	e := c.env
	eff, err := e.load(c.globals)
	if err != nil {
		if errors.As(err, new(usageError)) {
			return err
		}
		emitReport(e, reportForConfigError(start, end, err))
		return exitCode(1)
	}

	progressW, interactive := pickProgressWriter(e)
	var obs harvest.Observer = warnObserver{w: e.stderr}
	if interactive {
		obs = newProgressUI(progressW, eff)
	}

	h, err := harvest.New(eff, obs)
	if err != nil {
		emitReport(e, reportForConfigError(start, end, err))
		return exitCode(1)
	}
	defer h.Close()
	h.Console = consoleWriter(e)

	rr, _ := h.Harvest(e.ctx, start, end, harvest.OptionsFrom(eff))
	emitReport(e, rr)
	if interactive {
		emitLocations(progressW, planner.NewLayout(eff.OutDir, eff.Chart, start, end))
	}
	// 输出没写全（warnings 非空）同样算失败：调用方不能假设磁盘上的结果完整。
	if rr.Summary.Failed == 0 && !rr.Canceled && len(rr.Warnings) == 0 {
		return nil
	}
	return exitCode(1)
}

// FetchCommand：fetch [--date 20250105]
type FetchCommand struct {
	Date string `long:"date" description:"榜单日期 YYYYMMDD（默认最新一期）"`

	globals *GlobalFlags
	env     *env
}

func (c *FetchCommand) Execute(args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("多余的参数：%q", args)}
	}
	date, err := optionalDate(c.Date)
	if err != nil {
		return err
	}

	e := c.env
	eff, err := e.load(c.globals)
	if err != nil {
		return err
	}
	h, err := harvest.New(eff, warnObserver{w: e.stderr})
	if err != nil {
		return err
	}
	defer h.Close()
	h.Console = consoleWriter(e)

	if err := fsx.EnsureDir(eff.OutDir); err != nil {
		return fmt.Errorf("创建输出目录失败：%w", err)
	}
	target := planner.SinglePath(eff.OutDir, eff.Chart, date)

	res := h.FetchAndExtract(e.ctx, date, target, harvest.OptionsFrom(eff))
	var p domain.Period
	if date != nil {
		p = date.Period()
	}
	it := res.Item(p)
	if date == nil {
		it.Period = ""
	}
	emitItem(e, it)
	if !res.OK() {
		return exitCode(1)
	}
	return nil
}

// ExtractCommand：从本地 HTML 重新提取；--file 与 --date（读归档）二选一。
type ExtractCommand struct {
	File string `long:"file" description:"本地榜单 HTML 文件"`
	Date string `long:"date" description:"读取已归档页面 <out-dir>/cache/pages/<chart>/<YYYYMMDD>.html"`
	Out  string `long:"out" description:"写出的 CSV 路径（默认输出到 stdout）"`

	globals *GlobalFlags
	env     *env
}

func (c *ExtractCommand) Execute(args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("多余的参数：%q", args)}
	}
	file := strings.TrimSpace(c.File)
	if file != "" && strings.TrimSpace(c.Date) != "" {
		return usageError{errors.New("--file 与 --date 不能同时使用")}
	}
	date, err := optionalDate(c.Date)
	if err != nil {
		return err
	}

	e := c.env
	eff, err := e.load(c.globals)
	if err != nil {
		return err
	}
	bj := billboardjp.Provider{BaseURL: eff.BaseURL, ChartName: eff.Chart}

	var html []byte
	if file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(e.cwd, file)
		}
		if html, err = os.ReadFile(file); err != nil {
			return err
		}
	} else {
		store := cache.New(eff.OutDir, true)
		b, ok, err := store.ReadPage(eff.Chart, date)
		if err != nil {
			return err
		}
		if !ok {
			path, _ := store.PagePath(eff.Chart, date)
			return fmt.Errorf("没有找到归档页面：%s（抓取时需开启 --archive-pages）", path)
		}
		html = b
	}

	page, err := bj.ParseChart(html, bj.ChartURL(date), provider.ParseOptions{CaptureImages: eff.CaptureImages})
	if err != nil {
		return fmt.Errorf("解析失败：%w", err)
	}
	for _, re := range page.Skipped {
		fmt.Fprintln(e.stderr, re.Error())
	}
	fmt.Fprintf(e.stderr, "提取：rows=%d entries=%d skipped=%d\n", page.Rows, len(page.Entries), len(page.Skipped))
	if len(page.Entries) == 0 {
		return exitCode(1)
	}

	header := csvx.Header(eff.CaptureImages)
	rows := csvx.Rows(page.Entries, eff.CaptureImages)
	if out := strings.TrimSpace(c.Out); out != "" {
		if !filepath.IsAbs(out) {
			out = filepath.Join(e.cwd, out)
		}
		return csvx.FileSink{}.WriteRecordSet(out, header, rows)
	}
	return csvx.Encode(e.stdout, header, rows)
}

// CombineCommand：把目录下的每期 CSV 重新合并。
type CombineCommand struct {
	Dir string `long:"dir" required:"true" description:"每期 CSV 所在目录（只扫描第一层）"`
	Out string `long:"out" description:"合并输出路径（默认 <dir>/combined_charts.csv）"`

	globals *GlobalFlags
	env     *env
}

func (c *CombineCommand) Execute(args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("多余的参数：%q", args)}
	}
	e := c.env
	eff, err := e.load(c.globals)
	if err != nil {
		return err
	}

	dir := strings.TrimSpace(c.Dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	files, err := scan.ScanDateCSVs(dir, eff.Chart)
	if err != nil {
		return fmt.Errorf("扫描 %s 失败：%w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%s 下没有 %s 的每期文件", dir, eff.Chart)
	}

	load, err := app.LoadRecordSets(files)
	if err != nil {
		return err
	}
	records := app.Combine(load.Sets)

	out := strings.TrimSpace(c.Out)
	switch {
	case out == "":
		out = filepath.Join(dir, planner.CombinedName)
	case !filepath.IsAbs(out):
		out = filepath.Join(e.cwd, out)
	}
	if err := (csvx.FileSink{}).WriteRecordSet(out, csvx.CombinedHeader(load.CaptureImages), csvx.CombinedRows(records, load.CaptureImages)); err != nil {
		return fmt.Errorf("写入 %s 失败：%w", out, err)
	}
	fmt.Fprintf(e.stderr, "合并：files=%d records=%d skipped_rows=%d\n", len(files), len(records), load.SkippedRows)
	fmt.Fprintf(e.stderr, "out: %s\n", out)
	return nil
}

// QueryCommand：从 --sqlite 数据库读回已落库的结果；--date 与 --run-id 二选一。
type QueryCommand struct {
	Date  string `long:"date" description:"输出该期条目的 CSV（YYYYMMDD）"`
	RunID string `long:"run-id" description:"输出该次 harvest 的汇总 JSON"`

	globals *GlobalFlags
	env     *env
}

func (c *QueryCommand) Execute(args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("多余的参数：%q", args)}
	}
	runID := strings.TrimSpace(c.RunID)
	hasDate := strings.TrimSpace(c.Date) != ""
	if hasDate == (runID != "") {
		return usageError{errors.New("--date 与 --run-id 必须且只能指定一个")}
	}
	date, err := optionalDate(c.Date)
	if err != nil {
		return err
	}

	e := c.env
	eff, err := e.load(c.globals)
	if err != nil {
		return err
	}
	if eff.SQLitePath == "" {
		return usageError{errors.New("query 需要 --sqlite 或配置 sqlite_path")}
	}
	if _, err := os.Stat(eff.SQLitePath); err != nil {
		return fmt.Errorf("打开数据库失败：%w", err)
	}
	st, err := storage.Open(eff.SQLitePath)
	if err != nil {
		return fmt.Errorf("打开数据库失败：%w", err)
	}
	defer st.Close()

	if runID != "" {
		row, err := st.GetHarvest(e.ctx, runID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("没有 run_id=%s 的记录", runID)
		}
		if err != nil {
			return err
		}
		return json.NewEncoder(e.stdout).Encode(row)
	}

	entries, err := st.EntriesByDate(e.ctx, eff.Chart, *date)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stderr, "查询：%s %s entries=%d\n", eff.Chart, *date, len(entries))
	if len(entries) == 0 {
		return exitCode(1)
	}
	return csvx.Encode(e.stdout, csvx.Header(eff.CaptureImages), csvx.Rows(entries, eff.CaptureImages))
}

func optionalDate(s string) (*domain.ChartDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, ok := domain.ParseChartDate(s)
	if !ok {
		return nil, usageError{fmt.Errorf("--date 必须是真实日期 YYYYMMDD，实际是 %q", s)}
	}
	return &d, nil
}

// consoleWriter：stdout 是 TTY 时逐条记录打印到 stdout；否则改走 stderr，stdout 留给 JSON。
func consoleWriter(e *env) io.Writer {
	if isTTY(e.stdout) {
		return e.stdout
	}
	return e.stderr
}
