package harvest

import (
	"encoding/json"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
)

// writeReport 把最终报告原子写入 path（与 stdout JSON 同一结构）。
func writeReport(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, append(b, '\n'))
}
