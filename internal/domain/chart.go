package domain

import (
	"strconv"
	"strings"
)

// Unavailable 是所有“字段缺失”在输出中的统一写法。
const Unavailable = "unavailable"

// PrevKind 描述上周排名的三种形态（封闭枚举，不允许自由字符串）。
type PrevKind int

const (
	PrevUnavailable PrevKind = iota
	PrevNew
	PrevRanked
)

// PrevRank 是上周排名：要么是具体名次，要么是 NEW，要么缺失。
type PrevRank struct {
	Kind PrevKind
	Rank int // 仅 Kind==PrevRanked 时有效
}

func RankedPrev(n int) PrevRank { return PrevRank{Kind: PrevRanked, Rank: n} }

func (p PrevRank) String() string {
	switch p.Kind {
	case PrevNew:
		return "NEW"
	case PrevRanked:
		return strconv.Itoa(p.Rank)
	default:
		return Unavailable
	}
}

// ParsePrevRank 解析站点“前回”字段的原始文本。
//
// 规则：
// - 缺失（ok=false）或无数字 => unavailable
// - "-" => NEW
// - "12" / "前回：12" => 12
func ParsePrevRank(raw string, ok bool) PrevRank {
	if !ok {
		return PrevRank{Kind: PrevUnavailable}
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "前回："))
	s = strings.TrimSpace(strings.TrimPrefix(s, "前回:"))
	if s == "-" {
		return PrevRank{Kind: PrevNew}
	}
	n := FirstInt(s)
	if n <= 0 {
		return PrevRank{Kind: PrevUnavailable}
	}
	return RankedPrev(n)
}

// Trend 是排名变化标记。
type Trend string

const (
	TrendUp          Trend = "up"
	TrendDown        Trend = "down"
	TrendFlat        Trend = "flat"
	TrendNew         Trend = "new"
	TrendUnavailable Trend = Unavailable
)

// ParseTrend 只接受已知取值；其余一律视为 unavailable。
func ParseTrend(s string) Trend {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case TrendUp:
		return TrendUp
	case TrendDown:
		return TrendDown
	case TrendFlat:
		return TrendFlat
	case TrendNew:
		return TrendNew
	default:
		return TrendUnavailable
	}
}

// OptText 是可缺失的文本字段。Valid=false 时输出 unavailable。
type OptText struct {
	Value string
	Valid bool
}

func Text(s string) OptText {
	s = strings.TrimSpace(s)
	return OptText{Value: s, Valid: s != ""}
}

func (t OptText) String() string {
	if !t.Valid {
		return Unavailable
	}
	return t.Value
}

// ChartEntry 是榜单中的一行。
//
// 不变量：Rank>0 且 Title/Artist 非空；否则该行不会被产出。
// Peak 恒等于 Rank：站点不提供历史最高位，这是已知近似而非缺陷。
type ChartEntry struct {
	Rank     int
	Title    string
	Artist   string
	Prev     PrevRank
	Weeks    OptText
	Peak     int
	ImageURL OptText // 仅在采集图片/状态时有意义
	Trend    Trend
}

// Valid 报告必填字段是否齐全。
func (e ChartEntry) Valid() bool {
	return e.Rank > 0 && strings.TrimSpace(e.Title) != "" && strings.TrimSpace(e.Artist) != ""
}

// populated 统计必填字段中已填充的个数（用于判定“结构性空行”）。
func (e ChartEntry) populated() int {
	n := 0
	if e.Rank > 0 {
		n++
	}
	if strings.TrimSpace(e.Title) != "" {
		n++
	}
	if strings.TrimSpace(e.Artist) != "" {
		n++
	}
	return n
}

// StructurallyEmpty 表示该条目少于两个必填字段，合并时直接丢弃。
func (e ChartEntry) StructurallyEmpty() bool { return e.populated() < 2 }

// FirstInt 提取 s 中第一段连续数字；没有数字返回 0。
func FirstInt(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
