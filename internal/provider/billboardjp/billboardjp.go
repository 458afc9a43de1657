package billboardjp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/chartharvest/internal/domain"
	providerx "github.com/John-Robertt/chartharvest/internal/provider"
)

const (
	// DefaultBaseURL 是站点 origin；相对图片路径也以它为基准补全。
	DefaultBaseURL = "https://www.billboard-japan.com"
	// DefaultChart 是默认榜单（Hot 100）。
	DefaultChart = "hot100"
)

// Provider 实现 Billboard JAPAN 榜单页的抓取与解析。
//
// 约束：
// - Fetch* 不做缓存/重试/限速（由上层统一控制）
// - Parse* 是纯函数（只依赖输入 html + pageURL + 选项）
type Provider struct {
	// BaseURL 允许测试或镜像替换站点 origin；为空时使用 DefaultBaseURL。
	BaseURL string
	// ChartName 对应查询参数 a=；为空时使用 DefaultChart。
	ChartName string
}

var _ providerx.Provider = Provider{}

func (Provider) Name() string { return "billboardjp" }

func (p Provider) Chart() string {
	c := strings.TrimSpace(p.ChartName)
	if c == "" {
		return DefaultChart
	}
	return c
}

func (p Provider) base() string {
	b := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if b == "" {
		return DefaultBaseURL
	}
	return b
}

// DatesURL: <base>/charts/get_chartdays?a=hot100&year=2025&month=01
func (p Provider) DatesURL(period domain.Period) string {
	q := url.Values{}
	q.Set("a", p.Chart())
	q.Set("year", fmt.Sprintf("%04d", period.Year))
	q.Set("month", fmt.Sprintf("%02d", period.Month))
	return p.base() + "/charts/get_chartdays?" + encodeOrdered(q, "a", "year", "month")
}

// ChartURL: <base>/charts/detail?a=hot100[&year=2025&month=01&day=05]
func (p Provider) ChartURL(date *domain.ChartDate) string {
	q := url.Values{}
	q.Set("a", p.Chart())
	if date == nil {
		return p.base() + "/charts/detail?" + encodeOrdered(q, "a")
	}
	q.Set("year", fmt.Sprintf("%04d", date.Year))
	q.Set("month", fmt.Sprintf("%02d", date.Month))
	q.Set("day", fmt.Sprintf("%02d", date.Day))
	return p.base() + "/charts/detail?" + encodeOrdered(q, "a", "year", "month", "day")
}

// encodeOrdered 按给定顺序编码参数（url.Values.Encode 会按字母序重排，这里保持站点的习惯顺序）。
func encodeOrdered(q url.Values, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(q.Get(k)))
	}
	return strings.Join(parts, "&")
}

func (p Provider) FetchDates(ctx context.Context, period domain.Period, c *http.Client) ([]byte, string, error) {
	if err := period.Validate(); err != nil {
		return nil, "", err
	}
	u := p.DatesURL(period)
	b, err := providerx.Get(ctx, c, u)
	return b, u, err
}

// ParseDates 解析日期列表接口返回的 <option> 片段。
// 只保留 value 为 8 位 YYYYMMDD 的选项，按出现顺序返回（重复值只保留第一次）。
func (Provider) ParseDates(html []byte) ([]domain.ChartDate, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, errors.New("日期列表为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.ChartDate]struct{}, 8)
	out := make([]domain.ChartDate, 0, 5)
	doc.Find("option").Each(func(_ int, s *goquery.Selection) {
		v, ok := s.Attr("value")
		if !ok {
			return
		}
		d, ok := domain.ParseChartDate(v)
		if !ok {
			return
		}
		if _, dup := seen[d]; dup {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	})
	return out, nil
}

func (p Provider) FetchChart(ctx context.Context, date *domain.ChartDate, c *http.Client) ([]byte, string, error) {
	u := p.ChartURL(date)
	b, err := providerx.Get(ctx, c, u)
	return b, u, err
}

// ParseChart 把榜单页解析为条目列表。
//
// 页面级失败只有两种：HTML 为空，或页面里根本没有 <table>（疑似返回了错误页/改版）。
// 有表格但没有有效行时返回空结果（由上层判定为 empty），不是错误。
func (p Provider) ParseChart(html []byte, pageURL string, opt providerx.ParseOptions) (providerx.ChartPage, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return providerx.ChartPage{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return providerx.ChartPage{}, err
	}
	if doc.Find("table").Length() == 0 {
		return providerx.ChartPage{}, errors.New("未找到榜单表格（站点结构可能变化或返回了非榜单页面）")
	}

	origin := originOf(pageURL, p.base())

	rows := doc.Find("table tbody tr")
	page := providerx.ChartPage{
		Entries: make([]domain.ChartEntry, 0, rows.Length()),
		Rows:    rows.Length(),
	}
	rows.Each(func(i int, row *goquery.Selection) {
		e, rerr := parseRow(row, opt, origin)
		if rerr != nil {
			rerr.Row = i + 1
			page.Skipped = append(page.Skipped, *rerr)
			return
		}
		page.Entries = append(page.Entries, e)
	})
	return page, nil
}

func parseRow(row *goquery.Selection, opt providerx.ParseOptions, origin string) (domain.ChartEntry, *providerx.RowError) {
	rankSel := row.Find("td.rank_td span").First()
	if rankSel.Length() == 0 {
		return domain.ChartEntry{}, &providerx.RowError{Field: "rank"}
	}
	rank := domain.FirstInt(normSpace(rankSel.Text()))
	if rank <= 0 {
		return domain.ChartEntry{}, &providerx.RowError{Field: "rank"}
	}

	title := normSpace(row.Find("p.musuc_title").First().Text())
	if title == "" {
		return domain.ChartEntry{}, &providerx.RowError{Field: "title"}
	}

	artistSel := row.Find("p.artist_name").First()
	artist := ""
	if a := artistSel.Find("a").First(); a.Length() > 0 {
		artist = normSpace(a.Text())
	}
	if artist == "" {
		artist = normSpace(artistSel.Text())
	}
	if artist == "" {
		return domain.ChartEntry{}, &providerx.RowError{Field: "artist"}
	}

	e := domain.ChartEntry{
		Rank:   rank,
		Title:  title,
		Artist: artist,
		Peak:   rank,
		Trend:  domain.TrendUnavailable,
	}

	if w := row.Find("td.times_td").First(); w.Length() > 0 {
		e.Weeks = domain.Text(normSpace(w.Text()))
	}

	last := row.Find(".rank_detail .last").First()
	e.Prev = domain.ParsePrevRank(normSpace(last.Text()), last.Length() > 0)

	if opt.CaptureImages {
		if src, ok := row.Find("img").First().Attr("src"); ok {
			e.ImageURL = domain.Text(resolveImage(origin, src))
		}
		e.Trend = trendOf(row)
	}
	return e, nil
}

// trendOf 识别 rank 单元格上的互斥状态 class：up / down / cont(=flat) / new。
func trendOf(row *goquery.Selection) domain.Trend {
	s := row.Find("td.rank_td span.up, td.rank_td span.down, td.rank_td span.cont, td.rank_td span.new").First()
	switch {
	case s.Length() == 0:
		return domain.TrendUnavailable
	case s.HasClass("up"):
		return domain.TrendUp
	case s.HasClass("down"):
		return domain.TrendDown
	case s.HasClass("cont"):
		return domain.TrendFlat
	case s.HasClass("new"):
		return domain.TrendNew
	default:
		return domain.TrendUnavailable
	}
}

func originOf(pageURL, fallback string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallback
	}
	return u.Scheme + "://" + u.Host
}

func resolveImage(origin, src string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return origin + src
	default:
		return src
	}
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
