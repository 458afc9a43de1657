// Package csvx 负责榜单记录的分隔文本格式（写入与回读）。
//
// 写入格式固定：每个字段都用双引号包裹（内部的 " 转义为 ""），行尾 \n，UTF-8。
// encoding/csv 只在“需要时”加引号，无法满足“全部加引号”的约定，因此写入侧自行编码；
// 回读侧仍使用 encoding/csv（它能读懂任何合法 CSV）。
package csvx

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
)

const (
	ColImage  = "Image"
	ColStatus = "Status"
	ColSong   = "Song"
	ColArtist = "Artist"
	ColLast   = "Last Week"
	ColPeak   = "Peak Position"
	ColWeeks  = "Weeks on Chart"
	ColDate   = "Chart_Date"
)

// Sink 是持久化的外部协作者：写出一组带表头的记录。
type Sink interface {
	WriteRecordSet(path string, header []string, rows [][]string) error
}

// FileSink 把记录集原子写入本地文件。
type FileSink struct{}

func (FileSink) WriteRecordSet(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, header, rows); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, buf.Bytes())
}

// Encode 把 header + rows 编码为全引号 CSV。
func Encode(w io.Writer, header []string, rows [][]string) error {
	if len(header) > 0 {
		if err := writeRow(w, header); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := writeRow(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Header 返回单期文件的表头；图片/状态两列仅在 captureImages 时出现。
func Header(captureImages bool) []string {
	h := make([]string, 0, 7)
	if captureImages {
		h = append(h, ColImage, ColStatus)
	}
	return append(h, ColSong, ColArtist, ColLast, ColPeak, ColWeeks)
}

// Row 把条目编码为与 Header(captureImages) 对齐的字段。
func Row(e domain.ChartEntry, captureImages bool) []string {
	r := make([]string, 0, 7)
	if captureImages {
		trend := e.Trend
		if trend == "" {
			trend = domain.TrendUnavailable
		}
		r = append(r, e.ImageURL.String(), string(trend))
	}
	peak := e.Peak
	if peak <= 0 {
		peak = e.Rank
	}
	return append(r, e.Title, e.Artist, e.Prev.String(), fmt.Sprint(peak), e.Weeks.String())
}

// Rows 批量编码。
func Rows(entries []domain.ChartEntry, captureImages bool) [][]string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, Row(e, captureImages))
	}
	return out
}

// CombinedHeader 在单期表头前加 Chart_Date 列。
func CombinedHeader(captureImages bool) []string {
	return append([]string{ColDate}, Header(captureImages)...)
}

// CombinedRows 编码合并输出：每条记录前置 YYYY-MM-DD。
func CombinedRows(records []domain.HarvestRecord, captureImages bool) [][]string {
	out := make([][]string, 0, len(records))
	for _, rec := range records {
		out = append(out, append([]string{rec.Date.String()}, Row(rec.Entry, captureImages)...))
	}
	return out
}

// ReadRecordSet 回读一个单期文件，返回表头与数据行。
// 少于 2 个字段的行视为结构性空行，直接跳过。
func ReadRecordSet(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode 是 ReadRecordSet 的 io.Reader 版本。
func Decode(r io.Reader) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	// 旧版文件的表头形如 "Image, Status, Song"（逗号后带空格）。
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	header = all[0]
	for _, row := range all[1:] {
		if len(row) < 2 {
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// EntryFromRow 按表头把一行解码回 ChartEntry（rank 取 Peak Position 列，二者恒等）。
// 必填字段缺失返回 ok=false。
func EntryFromRow(header, row []string) (domain.ChartEntry, bool) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	var e domain.ChartEntry
	if s, ok := get(ColPeak); ok {
		e.Rank = domain.FirstInt(s)
		e.Peak = e.Rank
	}
	e.Title, _ = get(ColSong)
	e.Artist, _ = get(ColArtist)
	if !e.Valid() {
		return domain.ChartEntry{}, false
	}

	switch s, ok := get(ColLast); {
	case !ok:
	case s == "NEW":
		e.Prev = domain.PrevRank{Kind: domain.PrevNew}
	default:
		e.Prev = domain.ParsePrevRank(s, true)
	}
	if s, ok := get(ColWeeks); ok && s != domain.Unavailable && s != "N/A" {
		e.Weeks = domain.Text(s)
	}
	if s, ok := get(ColImage); ok && s != domain.Unavailable && s != "N/A" {
		e.ImageURL = domain.Text(s)
	}
	e.Trend = domain.TrendUnavailable
	if s, ok := get(ColStatus); ok {
		e.Trend = domain.ParseTrend(s)
	}
	return e, true
}

// HasImageColumns 报告表头是否包含图片/状态两列。
func HasImageColumns(header []string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == ColImage {
			return true
		}
	}
	return false
}
