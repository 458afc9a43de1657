package domain

import (
	"reflect"
	"testing"
)

func TestParseChartDate(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		want ChartDate
	}{
		{"20250105", true, ChartDate{2025, 1, 5}},
		{" 20241230 ", false, ChartDate{}},
		{"20241230\n", false, ChartDate{}},
		{"2025015", false, ChartDate{}},
		{"202501050", false, ChartDate{}},
		{"2025-01-05", false, ChartDate{}},
		{"abcdefgh", false, ChartDate{}},
		{"20250230", false, ChartDate{}},
		{"", false, ChartDate{}},
	}
	for _, c := range cases {
		got, ok := ParseChartDate(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseChartDate(%q)=%v,%v 期望 %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestChartDate_Format(t *testing.T) {
	d := ChartDate{2025, 1, 5}
	if d.Compact() != "20250105" {
		t.Fatalf("Compact=%q", d.Compact())
	}
	if d.String() != "2025-01-05" {
		t.Fatalf("String=%q", d.String())
	}
	if d.Period() != (Period{2025, 1}) {
		t.Fatalf("Period=%v", d.Period())
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-01")
	if err != nil || p != (Period{2025, 1}) {
		t.Fatalf("ParsePeriod(2025-01)=%v,%v", p, err)
	}
	p, err = ParsePeriod("202512")
	if err != nil || p != (Period{2025, 12}) {
		t.Fatalf("ParsePeriod(202512)=%v,%v", p, err)
	}
	for _, bad := range []string{"2025-13", "2025-00", "25-01", "2025/01", "abcd-01", ""} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Fatalf("期望 ParsePeriod(%q) 报错", bad)
		}
	}
}

func TestPeriods_WrapsYear(t *testing.T) {
	got, err := Periods(Period{2024, 11}, Period{2025, 2})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []Period{{2024, 11}, {2024, 12}, {2025, 1}, {2025, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestPeriods_SingleAndReversed(t *testing.T) {
	got, err := Periods(Period{2025, 6}, Period{2025, 6})
	if err != nil || len(got) != 1 {
		t.Fatalf("单月区间应得到 1 个期间：%v %v", got, err)
	}
	if _, err := Periods(Period{2025, 6}, Period{2025, 5}); err == nil {
		t.Fatalf("结束早于起始时应报错")
	}
}
