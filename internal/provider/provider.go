package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/John-Robertt/chartharvest/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；harvest 只依赖统一接口与稳定的 domain 类型。
//
// 约束：
// - Fetch* 不做缓存、不做重试、不做限速（限速由 harvest 的固定间隔负责）
// - Parse* 必须是纯函数：相同输入 => 相同输出
type Provider interface {
	Name() string
	// Chart 是榜单标识（例如 hot100），用于文件命名与归档目录。
	Chart() string

	FetchDates(ctx context.Context, p domain.Period, c *http.Client) (html []byte, pageURL string, err error)
	ParseDates(html []byte) ([]domain.ChartDate, error)

	// FetchChart 的 date 为 nil 时抓取最新一期。
	FetchChart(ctx context.Context, date *domain.ChartDate, c *http.Client) (html []byte, pageURL string, err error)
	ParseChart(html []byte, pageURL string, opt ParseOptions) (ChartPage, error)
}

// ParseOptions 控制可选字段的提取。
type ParseOptions struct {
	// CaptureImages 同时提取封面图与排名变化标记。
	CaptureImages bool
}

// ChartPage 是单页解析结果。
type ChartPage struct {
	Entries []domain.ChartEntry
	// Rows 是候选行总数（含被跳过的行）。
	Rows    int
	Skipped []RowError
}

// RowError 描述一行因缺少必填字段被跳过。永远不会升级为页面级失败。
type RowError struct {
	Row   int // 从 1 开始
	Field string
}

func (e RowError) Error() string {
	return fmt.Sprintf("第 %d 行缺少 %s，已跳过", e.Row, e.Field)
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type Error struct {
	Provider string
	Stage    string // "fetch" 或 "parse"
	Err      error
}

const (
	StageFetch = "fetch"
	StageParse = "parse"
)

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
