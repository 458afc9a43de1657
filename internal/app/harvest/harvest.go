package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/chartharvest/internal/app"
	"github.com/John-Robertt/chartharvest/internal/app/planner"
	"github.com/John-Robertt/chartharvest/internal/config"
	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/cache"
	"github.com/John-Robertt/chartharvest/internal/infra/csvx"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
	"github.com/John-Robertt/chartharvest/internal/infra/httpx"
	"github.com/John-Robertt/chartharvest/internal/provider"
	"github.com/John-Robertt/chartharvest/internal/provider/billboardjp"
	"github.com/John-Robertt/chartharvest/internal/storage"
)

// Options 是一次抓取的行为开关（由配置 + CLI 合并得到，不存在隐藏的全局状态）。
type Options struct {
	// CaptureImages 同时采集封面图与排名变化标记（输出多出 Image/Status 两列）。
	CaptureImages bool
	// EmitConsole 把每条记录打印到 Console。
	EmitConsole bool
	// Delay 是两次单期抓取之间的固定间隔；<=0 表示不等待。
	Delay time.Duration
}

// OptionsFrom 从最终配置提取抓取开关。
func OptionsFrom(eff config.EffectiveConfig) Options {
	return Options{
		CaptureImages: eff.CaptureImages,
		EmitConsole:   eff.EmitConsole,
		Delay:         eff.Delay,
	}
}

// RecordStore 是可选的结构化落库（例如 SQLite）。
type RecordStore interface {
	SaveHarvest(ctx context.Context, rr domain.RunReport, records []domain.HarvestRecord) error
}

// Harvester 串行执行“日期发现 → 单期抓取 → 合并”。零值字段都有默认行为，只有 Provider/Client 必填。
type Harvester struct {
	Provider provider.Provider
	Client   *http.Client

	// OutDir 为空时不写任何文件（只返回报告与记录）。
	OutDir string
	Sink   csvx.Sink
	Pages  cache.Store
	Store  RecordStore

	Obs     Observer
	Console io.Writer

	// Sleep 默认是可被 ctx 打断的 time.Timer；测试可替换为记录调用的桩。
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
	NewRunID func() string

	closers []io.Closer
	// warnings 收集本次 Harvest 的诊断，最终写入 RunReport.Warnings。
	warnings []string
}

// New 按最终配置组装 Harvester（HTTP client、站点 provider、CSV sink、页面归档、可选 SQLite）。
// 调用方负责 Close。
func New(eff config.EffectiveConfig, obs Observer) (*Harvester, error) {
	client, err := httpx.NewClient(eff.ProxyURL, eff.UserAgent)
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
	}

	h := &Harvester{
		Provider: billboardjp.Provider{BaseURL: eff.BaseURL, ChartName: eff.Chart},
		Client:   client,
		OutDir:   eff.OutDir,
		Sink:     csvx.FileSink{},
		Pages:    cache.New(eff.OutDir, eff.ArchivePages),
		Obs:      obs,
	}

	if eff.SQLitePath != "" {
		if err := fsx.EnsureDir(filepath.Dir(eff.SQLitePath)); err != nil {
			return nil, fmt.Errorf("创建 sqlite 目录失败：%w", err)
		}
		st, err := storage.Open(eff.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("打开 sqlite 失败：%w", err)
		}
		h.Store = st
		h.closers = append(h.closers, st)
	}
	return h, nil
}

// Close 释放 New 打开的资源。
func (h *Harvester) Close() error {
	var errs []error
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

func (h *Harvester) obs() Observer {
	if h.Obs == nil {
		return nopObserver{}
	}
	return h.Obs
}

// warn 记录一条非致命诊断并转发给 Observer。
func (h *Harvester) warn(msg string) {
	h.warnings = append(h.warnings, msg)
	h.obs().OnWarn(msg)
}

func (h *Harvester) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Harvester) sleep(ctx context.Context, d time.Duration) error {
	if h.Sleep != nil {
		return h.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (h *Harvester) sink() csvx.Sink {
	if h.Sink == nil {
		return csvx.FileSink{}
	}
	return h.Sink
}

func (h *Harvester) console() io.Writer {
	if h.Console == nil {
		return os.Stdout
	}
	return h.Console
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DiscoverDates 返回某月已发布的榜单日期（按站点顺序）。
// 网络或解析失败降级为空列表，并通过 OnWarn 报告；永远不会中止 harvest。
func (h *Harvester) DiscoverDates(ctx context.Context, p domain.Period) []domain.ChartDate {
	html, u, err := h.Provider.FetchDates(ctx, p, h.Client)
	if err != nil {
		h.warn(fmt.Sprintf("%s 日期列表获取失败：%s", p, humanizeFetchError(h.Provider.Name(), err)))
		return []domain.ChartDate{}
	}
	dates, err := h.Provider.ParseDates(html)
	if err != nil {
		h.warn(fmt.Sprintf("%s 日期列表解析失败（%s）：%v", p, u, err))
		return []domain.ChartDate{}
	}
	return dates
}

// DateResult 是单期抓取的结果。Status 只会是 ok / empty / failed。
type DateResult struct {
	Date *domain.ChartDate // nil 表示最新榜单
	URL  string

	Status    string
	ErrorCode string
	ErrorMsg  string

	// Entries 仅在 Status==ok 时非空。
	Entries []domain.ChartEntry
	Skipped []provider.RowError
	Output  string
}

func (r DateResult) OK() bool { return r.Status == domain.StatusOK }

// Item 把结果转换为报告条目。
func (r DateResult) Item(p domain.Period) domain.ItemResult {
	it := domain.ItemResult{
		Period:      p.String(),
		URL:         r.URL,
		Status:      r.Status,
		ErrorCode:   r.ErrorCode,
		ErrorMsg:    r.ErrorMsg,
		Entries:     len(r.Entries),
		SkippedRows: len(r.Skipped),
		Output:      r.Output,
	}
	if r.Date != nil {
		it.Date = r.Date.String()
	}
	return it
}

// FetchAndExtract 抓取并解析一期榜单；target 非空时把结果写入 target。
//
// 结果分三类（互斥）：
// - failed：抓取失败 / 非 2xx / 解析失败 / 写入失败。不重试。
// - empty：页面正常但没有任何有效行（与 failed 区分）。
// - ok：至少一条记录，且（若要求）已写入 target。
func (h *Harvester) FetchAndExtract(ctx context.Context, date *domain.ChartDate, target string, opts Options) DateResult {
	res := DateResult{Date: date}
	name := h.Provider.Name()

	html, u, err := h.Provider.FetchChart(ctx, date, h.Client)
	res.URL = u
	if err != nil {
		fillProviderError(&res, &provider.Error{Provider: name, Stage: provider.StageFetch, Err: err})
		return res
	}

	if h.Pages.Enabled() {
		if err := h.Pages.WritePage(h.Provider.Chart(), date, html); err != nil {
			h.warn(fmt.Sprintf("归档页面失败：%v", err))
		}
	}

	page, err := h.Provider.ParseChart(html, u, provider.ParseOptions{CaptureImages: opts.CaptureImages})
	if err != nil {
		fillProviderError(&res, &provider.Error{Provider: name, Stage: provider.StageParse, Err: err})
		return res
	}
	res.Skipped = page.Skipped

	if len(page.Entries) == 0 {
		res.Status = domain.StatusEmpty
		res.ErrorCode = domain.ErrCodeEmptyResult
		res.ErrorMsg = fmt.Sprintf("页面共 %d 行，但没有任何有效记录", page.Rows)
		return res
	}

	if target != "" {
		if err := h.sink().WriteRecordSet(target, csvx.Header(opts.CaptureImages), csvx.Rows(page.Entries, opts.CaptureImages)); err != nil {
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeIOFailed
			if fsx.IsPathTypeConflict(err) {
				res.ErrorMsg = err.Error()
			} else {
				res.ErrorMsg = fmt.Sprintf("写入 %s 失败：%v", target, err)
			}
			return res
		}
		res.Output = target
	}

	if opts.EmitConsole {
		printEntries(h.console(), page.Entries, opts.CaptureImages)
	}

	res.Status = domain.StatusOK
	res.Entries = page.Entries
	return res
}

func printEntries(w io.Writer, entries []domain.ChartEntry, captureImages bool) {
	for _, e := range entries {
		fmt.Fprintf(w, "#%d %s / %s  上周=%s 最高=%d 在榜=%s", e.Rank, e.Title, e.Artist, e.Prev, e.Peak, e.Weeks)
		if captureImages {
			fmt.Fprintf(w, " 状态=%s", e.Trend)
		}
		fmt.Fprintln(w)
	}
}

// Harvest 依次处理 [start, end] 内每个月的每一期榜单，并返回报告与合并后的记录。
//
// 执行顺序固定：期间按时间顺序，期内按日期发现顺序；每次单期抓取之后（无论成败）等待 opts.Delay。
// 唯一的提前结束方式是 ctx 取消：在期间/日期边界与等待中检查，报告标记 canceled=true。
// 输出目录、合并文件、report.json、SQLite 的失败只作为诊断报告（RunReport.Warnings），不会让 Harvest 失败。
// 输出目录不可用时照常抓取整个区间，只是不写任何文件。
func (h *Harvester) Harvest(ctx context.Context, start, end domain.Period, opts Options) (domain.RunReport, []domain.HarvestRecord) {
	chart := h.Provider.Chart()
	rr := domain.RunReport{
		RunID:     h.runID(),
		Chart:     chart,
		Start:     start.String(),
		End:       end.String(),
		StartedAt: h.now(),
		Items:     make([]domain.ItemResult, 0, 16),
	}
	obs := h.obs()
	h.warnings = nil

	periods, err := domain.Periods(start, end)
	if err != nil {
		return h.abort(rr, domain.ErrCodeConfigInvalid, err.Error()), nil
	}

	layout := planner.NewLayout(h.OutDir, chart, start, end)
	persist := h.OutDir != ""
	if persist {
		if err := layout.Prepare(); err != nil {
			h.warn(fmt.Sprintf("创建输出目录失败，本次不写任何文件：%v", err))
			persist = false
		}
	}

	obs.OnStart(rr)

	sets := make([]domain.RecordSet, 0, len(periods)*5)
loop:
	for i, p := range periods {
		if ctx.Err() != nil {
			rr.Canceled = true
			break
		}

		dates := h.DiscoverDates(ctx, p)
		obs.OnPeriod(i+1, len(periods), p, dates)
		if len(dates) == 0 {
			if ctx.Err() != nil {
				rr.Canceled = true
				break
			}
			rr.Items = append(rr.Items, domain.ItemResult{
				Period:    p.String(),
				Status:    domain.StatusNoDates,
				ErrorCode: domain.ErrCodeNoDates,
				ErrorMsg:  fmt.Sprintf("%s 没有可用的榜单日期", p),
			})
			continue
		}

		for _, d := range dates {
			if ctx.Err() != nil {
				rr.Canceled = true
				break loop
			}

			target := ""
			if persist {
				target = layout.DatePath(d)
			}

			oneStarted := h.now()
			res := h.FetchAndExtract(ctx, &d, target, opts)
			item := res.Item(p)
			rr.Items = append(rr.Items, item)
			if res.OK() {
				sets = append(sets, domain.RecordSet{Date: d, Entries: res.Entries})
				if res.Output != "" {
					rr.Outputs = append(rr.Outputs, res.Output)
				}
			}
			obs.OnDateDone(d, item, h.now().Sub(oneStarted))

			if err := h.sleep(ctx, opts.Delay); err != nil {
				rr.Canceled = true
				break loop
			}
		}
	}

	records := app.Combine(sets)
	if persist && len(records) > 0 {
		path := layout.CombinedPath()
		if err := h.sink().WriteRecordSet(path, csvx.CombinedHeader(opts.CaptureImages), csvx.CombinedRows(records, opts.CaptureImages)); err != nil {
			h.warn(fmt.Sprintf("写入合并文件失败：%v", err))
		} else {
			rr.Outputs = append(rr.Outputs, path)
		}
	}

	rr = h.finish(rr)

	if h.Store != nil {
		// 取消后仍然落库：已完成的期是有效数据。
		if err := h.Store.SaveHarvest(context.WithoutCancel(ctx), rr, records); err != nil {
			h.warn(fmt.Sprintf("写入 sqlite 失败：%v", err))
		}
	}
	rr.Warnings = append(rr.Warnings, h.warnings...)
	if persist {
		if err := writeReport(layout.ReportPath(), rr); err != nil {
			msg := fmt.Sprintf("写入 report.json 失败：%v", err)
			h.warn(msg)
			rr.Warnings = append(rr.Warnings, msg)
		}
	}

	obs.OnFinish(rr)
	return rr, records
}

func (h *Harvester) runID() string {
	if h.NewRunID != nil {
		return h.NewRunID()
	}
	return uuid.NewString()
}

func (h *Harvester) finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = h.now()
	rr.Finalize()
	return rr
}

// abort 处理没有任何期被处理的失败（区间非法）：报告里只有一条合成条目。
func (h *Harvester) abort(rr domain.RunReport, code, msg string) domain.RunReport {
	rr.Items = append(rr.Items, domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	})
	rr = h.finish(rr)
	h.obs().OnFinish(rr)
	return rr
}
