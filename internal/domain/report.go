package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
	StatusNoDates = "no_dates"
)

const (
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeEmptyResult   = "empty_result"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeNoDates       = "no_dates"
	ErrCodeConfigInvalid = "config_invalid"
	ErrCodeCanceled      = "canceled"
)

// RunReport 是一次 harvest 的对外稳定输出（report.json / stdout JSON）。
type RunReport struct {
	RunID string `json:"run_id"`
	Chart string `json:"chart"`
	Start string `json:"start"` // YYYY-MM
	End   string `json:"end"`   // YYYY-MM

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Canceled   bool      `json:"canceled"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
	Outputs []string      `json:"outputs"`

	// Warnings 是不影响条目状态的诊断（输出目录、合并文件、report.json、sqlite 的写入失败等）。
	Warnings []string `json:"warnings"`
}

type ReportSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
}

// ItemResult 是一次“单期抓取”的结果；period 级失败（无可用日期）也占一条，Date 为空。
type ItemResult struct {
	Period string `json:"period"`         // YYYY-MM
	Date   string `json:"date,omitempty"` // YYYY-MM-DD
	URL    string `json:"url,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Entries     int    `json:"entries"`
	SkippedRows int    `json:"skipped_rows"`
	Output      string `json:"output,omitempty"`
}

// Failure 报告该条目是否计入失败。
func (it ItemResult) Failure() bool {
	switch it.Status {
	case StatusEmpty, StatusFailed, StatusNoDates:
		return true
	default:
		return false
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) nil 切片规范化为空切片（JSON 输出 [] 而非 null）
// 3) summary 由 items 计算得出
//
// items 保持收割顺序，不排序：顺序本身就是契约（按期间、再按发现顺序）。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	if r.Outputs == nil {
		r.Outputs = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}

	var s ReportSummary
	for _, it := range r.Items {
		if it.Status == StatusOK {
			s.Succeeded++
			s.Records += it.Entries
			continue
		}
		if it.Failure() {
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
