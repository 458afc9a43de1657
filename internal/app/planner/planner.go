package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
)

const (
	filePrefix   = "billboard_japan_"
	CombinedName = "combined_charts.csv"
	ReportName   = "report.json"
)

// Layout 是一次 harvest 的输出布局（纯路径计算，不做任何写入）。
//
//	<out_dir>/billboard_japan_charts_<YYYYMM>_<YYYYMM>/
//	  billboard_japan_<chart>_<YYYYMMDD>.csv
//	  combined_charts.csv
//	  report.json
//
// 每期文件直接写到最终路径，不存在“先写再移动”。
type Layout struct {
	OutDir string
	Chart  string
	Start  domain.Period
	End    domain.Period
}

func NewLayout(outDir, chart string, start, end domain.Period) Layout {
	return Layout{
		OutDir: filepath.Clean(outDir),
		Chart:  strings.TrimSpace(chart),
		Start:  start,
		End:    end,
	}
}

func (l Layout) RunDir() string {
	return filepath.Join(l.OutDir, fmt.Sprintf("%scharts_%s_%s", filePrefix, l.Start.Compact(), l.End.Compact()))
}

func (l Layout) DatePath(d domain.ChartDate) string {
	return filepath.Join(l.RunDir(), DateFileName(l.Chart, d))
}

func (l Layout) CombinedPath() string { return filepath.Join(l.RunDir(), CombinedName) }

func (l Layout) ReportPath() string { return filepath.Join(l.RunDir(), ReportName) }

// Prepare 创建运行目录；目标已存在但是文件时返回 *fsx.PathTypeConflictError。
func (l Layout) Prepare() error {
	return fsx.EnsureDir(l.RunDir())
}

// DateFileName: billboard_japan_hot100_20250105.csv
func DateFileName(chart string, d domain.ChartDate) string {
	return filePrefix + chart + "_" + d.Compact() + ".csv"
}

// SinglePath 是 fetch 命令的输出路径；date 为 nil（最新榜单）时不带日期后缀。
func SinglePath(outDir, chart string, date *domain.ChartDate) string {
	if date == nil {
		return filepath.Join(outDir, filePrefix+chart+".csv")
	}
	return filepath.Join(outDir, DateFileName(chart, *date))
}
