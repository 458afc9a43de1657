package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanDateCSVs_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "billboard_japan_hot100_20250112.csv"))
	touch(t, filepath.Join(root, "billboard_japan_hot100_20250105.csv"))
	touch(t, filepath.Join(root, "billboard_japan_hot100_20241229.csv"))
	// 不匹配：合并文件、其他榜单、非法日期、子目录、其他扩展名。
	touch(t, filepath.Join(root, "combined_charts.csv"))
	touch(t, filepath.Join(root, "billboard_japan_top_albums_20250105.csv"))
	touch(t, filepath.Join(root, "billboard_japan_hot100_20250230.csv"))
	touch(t, filepath.Join(root, "nested", "billboard_japan_hot100_20250119.csv"))
	touch(t, filepath.Join(root, "billboard_japan_hot100_20250126.html"))

	got, err := ScanDateCSVs(root, "hot100")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"20241229", "20250105", "20250112"}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个文件，实际 %d：%+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Date.Compact() != want[i] {
			t.Fatalf("第 %d 个日期期望 %s，实际 %s", i, want[i], got[i].Date.Compact())
		}
		if got[i].AbsPath != filepath.Join(root, got[i].Name) {
			t.Fatalf("AbsPath 不符合预期：%q", got[i].AbsPath)
		}
	}
}

func TestScanDateCSVs_OtherChart(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "billboard_japan_top_albums_20250105.csv"))
	touch(t, filepath.Join(root, "billboard_japan_hot100_20250105.csv"))

	got, err := ScanDateCSVs(root, "top_albums")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].Name != "billboard_japan_top_albums_20250105.csv" {
		t.Fatalf("结果不符合预期：%+v", got)
	}
}

func TestScanDateCSVs_Errors(t *testing.T) {
	if _, err := ScanDateCSVs(filepath.Join(t.TempDir(), "missing"), "hot100"); err == nil {
		t.Fatalf("目录不存在时期望错误")
	}
	if _, err := ScanDateCSVs(t.TempDir(), "../x"); err == nil {
		t.Fatalf("非法 chart 时期望错误")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
