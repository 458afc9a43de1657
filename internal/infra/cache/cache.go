package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/infra/fsx"
)

// Store 是原始榜单页面的归档：<root>/cache/pages/<chart>/<YYYYMMDD>.html。
//
// 约束：
// - 只做归档（写）与离线回放（读），harvest 本身从不读它：每次运行都重新抓取
// - Disabled=true 时写入直接返回 ErrDisabled
type Store struct {
	Root     string
	Disabled bool
}

var ErrDisabled = errors.New("cache: disabled")

// LatestKey 是“最新榜单”（不带日期）的归档文件名。
const LatestKey = "latest"

func New(root string, enabled bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		Disabled: !enabled,
	}
}

// Enabled 报告是否需要归档；零值 Store 视为未启用。
func (s Store) Enabled() bool { return !s.Disabled && s.Root != "" }

// PagePath 返回某期页面的归档路径；date 为 nil 表示最新榜单。
func (s Store) PagePath(chart string, date *domain.ChartDate) (string, error) {
	c, err := cleanChart(chart)
	if err != nil {
		return "", err
	}
	key := LatestKey
	if date != nil {
		key = date.Compact()
	}
	return filepath.Join(s.Root, "cache", "pages", c, key+".html"), nil
}

func (s Store) ReadPage(chart string, date *domain.ChartDate) ([]byte, bool, error) {
	path, err := s.PagePath(chart, date)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(chart string, date *domain.ChartDate, html []byte) error {
	if s.Disabled {
		return ErrDisabled
	}
	path, err := s.PagePath(chart, date)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, html)
}

var chartNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanChart(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return "", fmt.Errorf("chart 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !chartNameRE.MatchString(c) {
		return "", fmt.Errorf("非法 chart：%q", c)
	}
	return c, nil
}
