package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/domain"
)

// DateFile 是一个每期 CSV 文件及其榜单日期（从文件名解析）。
type DateFile struct {
	AbsPath string
	Name    string
	Date    domain.ChartDate
}

// ScanDateCSVs 扫描 dir（只看第一层）下的每期 CSV：billboard_japan_<chart>_<YYYYMMDD>.csv。
//
// 规则：
// - 只做 ReadDir，不读文件内容
// - 文件名中的日期必须是真实日历日期，否则忽略
// - 同一日期只会有一个文件（文件名唯一决定日期）
// - 结果按日期升序，保证合并输出稳定
func ScanDateCSVs(dir, chart string) ([]DateFile, error) {
	dir = filepath.Clean(dir)
	re, err := dateFileRE(chart)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make([]DateFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		d, ok := domain.ParseChartDate(m[1])
		if !ok {
			continue
		}
		out = append(out, DateFile{
			AbsPath: filepath.Join(dir, e.Name()),
			Name:    e.Name(),
			Date:    d,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Compact() < out[j].Date.Compact() })
	return out, nil
}

var chartNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func dateFileRE(chart string) (*regexp.Regexp, error) {
	c := strings.ToLower(strings.TrimSpace(chart))
	if !chartNameRE.MatchString(c) {
		return nil, &os.PathError{Op: "scan", Path: chart, Err: os.ErrInvalid}
	}
	return regexp.MustCompile(`^billboard_japan_` + regexp.QuoteMeta(c) + `_([0-9]{8})\.csv$`), nil
}
