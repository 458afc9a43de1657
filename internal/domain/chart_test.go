package domain

import "testing"

func TestParsePrevRank(t *testing.T) {
	cases := []struct {
		raw  string
		ok   bool
		want PrevRank
		str  string
	}{
		{"-", true, PrevRank{Kind: PrevNew}, "NEW"},
		{"前回：-", true, PrevRank{Kind: PrevNew}, "NEW"},
		{"12", true, RankedPrev(12), "12"},
		{"前回：3", true, RankedPrev(3), "3"},
		{"", false, PrevRank{Kind: PrevUnavailable}, Unavailable},
		{"前回：", true, PrevRank{Kind: PrevUnavailable}, Unavailable},
	}
	for _, c := range cases {
		got := ParsePrevRank(c.raw, c.ok)
		if got != c.want {
			t.Fatalf("ParsePrevRank(%q,%v)=%+v 期望 %+v", c.raw, c.ok, got, c.want)
		}
		if got.String() != c.str {
			t.Fatalf("String()=%q 期望 %q", got.String(), c.str)
		}
	}
}

func TestParseTrend(t *testing.T) {
	if ParseTrend("UP") != TrendUp || ParseTrend("flat") != TrendFlat {
		t.Fatalf("已知取值解析失败")
	}
	if ParseTrend("right") != TrendUnavailable || ParseTrend("") != TrendUnavailable {
		t.Fatalf("未知取值应为 unavailable")
	}
}

func TestOptText(t *testing.T) {
	if Text("  ").String() != Unavailable {
		t.Fatalf("空白文本应为 unavailable")
	}
	if Text(" 5 ").String() != "5" {
		t.Fatalf("文本应被 trim")
	}
}

func TestChartEntry_ValidAndEmpty(t *testing.T) {
	e := ChartEntry{Rank: 1, Title: "T", Artist: "A"}
	if !e.Valid() || e.StructurallyEmpty() {
		t.Fatalf("完整条目判定错误：%+v", e)
	}
	e = ChartEntry{Rank: 1}
	if e.Valid() || !e.StructurallyEmpty() {
		t.Fatalf("只有 rank 的条目应为结构性空行")
	}
}
