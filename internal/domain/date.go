package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ChartDate 唯一标识一期已发布的榜单（值类型，发现后不再变化）。
type ChartDate struct {
	Year  int
	Month int
	Day   int
}

var chartDateRE = regexp.MustCompile(`^[0-9]{8}$`)

// ParseChartDate 解析 8 位 YYYYMMDD。
// 除了格式之外还要求是真实存在的日历日期（例如 20250230 会被拒绝）。
// 不做 trim：带空白的值（" 20250105 "）视为非法。
func ParseChartDate(s string) (ChartDate, bool) {
	if !chartDateRE.MatchString(s) {
		return ChartDate{}, false
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return ChartDate{}, false
	}
	return ChartDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
}

// Compact 返回 YYYYMMDD（文件名与请求参数使用）。
func (d ChartDate) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// String 返回 YYYY-MM-DD（合并输出的 Chart_Date 列）。
func (d ChartDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d ChartDate) IsZero() bool { return d == ChartDate{} }

func (d ChartDate) Period() Period { return Period{Year: d.Year, Month: d.Month} }

// Period 是月粒度的区间单元。
type Period struct {
	Year  int
	Month int
}

// ParsePeriod 接受 "2025-01" 或 "202501"。
func ParsePeriod(s string) (Period, error) {
	raw := s
	s = strings.TrimSpace(s)
	var ys, ms string
	switch {
	case len(s) == 7 && s[4] == '-':
		ys, ms = s[:4], s[5:]
	case len(s) == 6:
		ys, ms = s[:4], s[4:]
	default:
		return Period{}, fmt.Errorf("期间格式无效：%q（期望 YYYY-MM 或 YYYYMM）", raw)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Period{}, fmt.Errorf("期间年份无效：%q", raw)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return Period{}, fmt.Errorf("期间月份无效：%q", raw)
	}
	p := Period{Year: y, Month: m}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Year <= 0 {
		return fmt.Errorf("年份必须为正整数，实际是 %d", p.Year)
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("月份必须在 [1,12]，实际是 %d", p.Month)
	}
	return nil
}

// Next 返回下一个月；13 月回绕到次年 1 月。
func (p Period) Next() Period {
	p.Month++
	if p.Month > 12 {
		p.Month = 1
		p.Year++
	}
	return p
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

// Compact 返回 YYYYMM（输出目录命名使用）。
func (p Period) Compact() string { return fmt.Sprintf("%04d%02d", p.Year, p.Month) }

// Periods 枚举 [start, end] 闭区间内的每个月（按时间顺序）。
func Periods(start, end Period) ([]Period, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("起始期间无效：%w", err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("结束期间无效：%w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("结束期间 %s 早于起始期间 %s", end, start)
	}
	out := make([]Period, 0, 12)
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out, nil
}
