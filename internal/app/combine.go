package app

import (
	"fmt"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/csvx"
	"github.com/John-Robertt/chartharvest/internal/scan"
)

// Combine 把各期结果按收割顺序拼接为带日期的记录。
//
// - 不做跨期去重（同一首歌在多期出现是正常数据）
// - 少于两个必填字段的条目视为结构性空行，直接丢弃
func Combine(sets []domain.RecordSet) []domain.HarvestRecord {
	n := 0
	for i := range sets {
		n += len(sets[i].Entries)
	}
	out := make([]domain.HarvestRecord, 0, n)
	for _, s := range sets {
		for _, e := range s.Entries {
			if e.StructurallyEmpty() {
				continue
			}
			out = append(out, domain.HarvestRecord{Date: s.Date, Entry: e})
		}
	}
	return out
}

// FileLoad 是回读每期 CSV 的结果。
type FileLoad struct {
	Sets []domain.RecordSet
	// CaptureImages 表示至少一个文件带图片/状态列；合并输出据此决定表头。
	CaptureImages bool
	// SkippedRows 是缺少必填字段而无法还原为条目的行数。
	SkippedRows int
}

// LoadRecordSets 回读 scan 找到的每期文件（按 files 的顺序）。任一文件读取失败即返回错误。
func LoadRecordSets(files []scan.DateFile) (FileLoad, error) {
	var out FileLoad
	out.Sets = make([]domain.RecordSet, 0, len(files))
	for _, f := range files {
		header, rows, err := csvx.ReadRecordSet(f.AbsPath)
		if err != nil {
			return FileLoad{}, fmt.Errorf("读取 %s 失败：%w", f.Name, err)
		}
		if csvx.HasImageColumns(header) {
			out.CaptureImages = true
		}
		set := domain.RecordSet{Date: f.Date, Entries: make([]domain.ChartEntry, 0, len(rows))}
		for _, row := range rows {
			e, ok := csvx.EntryFromRow(header, row)
			if !ok {
				out.SkippedRows++
				continue
			}
			set.Entries = append(set.Entries, e)
		}
		out.Sets = append(out.Sets, set)
	}
	return out, nil
}
