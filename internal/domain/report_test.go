package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	r := RunReport{
		Chart:      "hot100",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 9*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 9*3600)),
		Items: []ItemResult{
			{Period: "2025-01", Date: "2025-01-05", Status: StatusOK, Entries: 100},
			{Period: "2025-01", Date: "2025-01-12", Status: StatusEmpty, ErrorCode: ErrCodeEmptyResult},
			{Period: "2025-01", Date: "2025-01-19", Status: StatusFailed, ErrorCode: ErrCodeFetchFailed},
			{Period: "2025-02", Status: StatusNoDates, ErrorCode: ErrCodeNoDates},
			{Period: "2025-03", Date: "2025-03-02", Status: StatusOK, Entries: 3},
		},
	}

	r.Finalize()

	if r.Summary.Succeeded != 2 || r.Summary.Failed != 3 || r.Summary.Records != 103 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
	// items 必须保持收割顺序。
	if r.Items[0].Date != "2025-01-05" || r.Items[3].Period != "2025-02" {
		t.Fatalf("items 顺序被改变：%+v", r.Items)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"started_at":"2026-02-09T01:00:00Z"`)) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	if !bytes.Contains(b, []byte(`"outputs":[]`)) {
		t.Fatalf("outputs 应输出为 []：%s", string(b))
	}
}
