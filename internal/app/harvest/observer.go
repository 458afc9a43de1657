package harvest

import (
	"time"

	"github.com/John-Robertt/chartharvest/internal/domain"
)

// Observer 用于把“运行进度/逐期结果/非致命诊断”从核心执行流程中解耦出来。
//
// 约束：
// - harvest 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件来自 Harvest 所在的 goroutine；实现若另起 ticker 读取状态，需要自己加锁。
type Observer interface {
	// OnStart 在开始抓取前调用；rr 已填好 run_id/chart/起止期间。
	OnStart(rr domain.RunReport)
	// OnPeriod 在某月日期发现完成后调用（dates 可能为空）。
	OnPeriod(idx, total int, p domain.Period, dates []domain.ChartDate)
	// OnDateDone 在某期抓取结束后调用（无论成败）。
	OnDateDone(date domain.ChartDate, res domain.ItemResult, dur time.Duration)
	// OnWarn 报告不影响继续执行的问题（日期发现失败、归档/落库失败等）。
	OnWarn(msg string)
	// OnFinish 在报告 Finalize 之后调用。
	OnFinish(rr domain.RunReport)
}

// nopObserver 让核心流程不必到处判空。
type nopObserver struct{}

func (nopObserver) OnStart(domain.RunReport)                                      {}
func (nopObserver) OnPeriod(int, int, domain.Period, []domain.ChartDate)          {}
func (nopObserver) OnDateDone(domain.ChartDate, domain.ItemResult, time.Duration) {}
func (nopObserver) OnWarn(string)                                                 {}
func (nopObserver) OnFinish(domain.RunReport)                                     {}
