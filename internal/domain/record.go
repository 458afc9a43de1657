package domain

// RecordSet 是单期榜单的提取结果（由单期组件独占，直到交给合并器）。
type RecordSet struct {
	Date    ChartDate
	Entries []ChartEntry
}

// HarvestRecord 是带来源日期的条目；只由合并器创建，创建后不再修改。
type HarvestRecord struct {
	Date  ChartDate
	Entry ChartEntry
}
