package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下自动发现的配置文件名。
	FileName = "chartharvest.yaml"

	DefaultChart   = "hot100"
	DefaultOutDir  = "data"
	DefaultBaseURL = "https://www.billboard-japan.com"
	// DefaultDelay 是两次单期抓取之间的固定间隔。
	DefaultDelay = 2 * time.Second
	// MaxDelay 是间隔上限；超出视为配置错误而不是截断（多半是单位写错）。
	MaxDelay = 10 * time.Minute
)

// CLIArgs 是 CLI 能覆盖的字段，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --no-images 必须能覆盖 capture_images: true。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时尝试 <cwd>/chartharvest.yaml（可选）。
	ConfigPath string

	Chart    string
	ChartSet bool

	OutDir    string
	OutDirSet bool

	// Delay 接受 "1500ms" / "2s" 或整数秒 "2"。
	Delay    string
	DelaySet bool

	CaptureImages    bool
	CaptureImagesSet bool

	EmitConsole    bool
	EmitConsoleSet bool

	ArchivePages    bool
	ArchivePagesSet bool

	SQLitePath    string
	SQLitePathSet bool
}

// FileConfig 对应 chartharvest.yaml 的解析结构。
// 指针字段用于区分“未写”与“写了零值”。
type FileConfig struct {
	Chart         string       `yaml:"chart"`
	OutDir        string       `yaml:"out_dir"`
	BaseURL       string       `yaml:"base_url"`
	Delay         *Delay       `yaml:"delay"`
	CaptureImages *bool        `yaml:"capture_images"`
	EmitConsole   *bool        `yaml:"emit_console"`
	Proxy         *ProxyConfig `yaml:"proxy"`
	UserAgent     string       `yaml:"user_agent"`
	ArchivePages  *bool        `yaml:"archive_pages"`
	SQLitePath    string       `yaml:"sqlite_path"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// Delay 在 YAML 中既可以写整数秒（2），也可以写 duration 字符串（"1500ms"）。
type Delay struct {
	time.Duration
}

func (d *Delay) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("delay 必须是标量，实际在第 %d 行", n.Line)
	}
	v, err := ParseDelay(n.Value)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// ParseDelay 解析间隔：纯数字按秒（可带小数），否则按 time.ParseDuration。
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("delay 不能为空")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("delay 无效：%q（期望整数秒或 1500ms/2s 这样的时长）", s)
	}
	return d, nil
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	Chart   string
	OutDir  string // 绝对路径
	BaseURL string

	Delay         time.Duration
	CaptureImages bool
	EmitConsole   bool

	ProxyURL  string
	UserAgent string

	ArchivePages bool
	// SQLitePath 为空表示不写 SQLite。
	SQLitePath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			if e.Path == "" {
				return fmt.Sprintf("%s：%v", e.Code, e.Err)
			}
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在，否则 config_not_found
// 2) 否则尝试 <cwd>/chartharvest.yaml（可选，不存在不报错）
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认。
// 配置文件里的相对路径以配置文件所在目录为基准；CLI 的相对路径以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	return merge(cwdAbs, fileBase, cli, fc, cfgPath)
}

// Defaults 返回不读取任何文件时的最终配置（用于测试与离线命令）。
func Defaults(cwd string) EffectiveConfig {
	eff, _ := merge(cwd, cwd, CLIArgs{}, FileConfig{}, "")
	return eff
}

var chartRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func merge(cwd, fileBase string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	chart := DefaultChart
	if cli.ChartSet {
		chart = cli.Chart
	} else if strings.TrimSpace(fc.Chart) != "" {
		chart = fc.Chart
	}
	chart = strings.ToLower(strings.TrimSpace(chart))
	if !chartRE.MatchString(chart) {
		return invalid(fmt.Errorf("chart 只能包含小写字母/数字/下划线，实际是 %q", chart))
	}

	outDir := filepath.Join(cwd, DefaultOutDir)
	if cli.OutDirSet && strings.TrimSpace(cli.OutDir) != "" {
		outDir = absCleanFrom(cwd, cli.OutDir)
	} else if strings.TrimSpace(fc.OutDir) != "" {
		outDir = absCleanFrom(fileBase, fc.OutDir)
	}

	baseURL := DefaultBaseURL
	if s := strings.TrimSpace(fc.BaseURL); s != "" {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid(fmt.Errorf("base_url 必须是 http/https 地址：%q", s))
		}
		baseURL = strings.TrimRight(s, "/")
	}

	delay := DefaultDelay
	if cli.DelaySet {
		d, err := ParseDelay(cli.Delay)
		if err != nil {
			return invalid(err)
		}
		delay = d
	} else if fc.Delay != nil {
		delay = fc.Delay.Duration
	}
	if delay < 0 {
		return invalid(fmt.Errorf("delay 不能为负数，实际是 %s", delay))
	}
	if delay > MaxDelay {
		return invalid(fmt.Errorf("delay 不能超过 %s，实际是 %s", MaxDelay, delay))
	}

	// 静默模式下默认采集图片与状态。
	captureImages := true
	if cli.CaptureImagesSet {
		captureImages = cli.CaptureImages
	} else if fc.CaptureImages != nil {
		captureImages = *fc.CaptureImages
	}

	emitConsole := false
	if cli.EmitConsoleSet {
		emitConsole = cli.EmitConsole
	} else if fc.EmitConsole != nil {
		emitConsole = *fc.EmitConsole
	}

	archivePages := false
	if cli.ArchivePagesSet {
		archivePages = cli.ArchivePages
	} else if fc.ArchivePages != nil {
		archivePages = *fc.ArchivePages
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
		if u.Scheme == "" || u.Host == "" {
			return invalid(fmt.Errorf("proxy.url 缺少 scheme 或 host：%q", proxyURL))
		}
	}

	sqlitePath := ""
	if cli.SQLitePathSet {
		if strings.TrimSpace(cli.SQLitePath) != "" {
			sqlitePath = absCleanFrom(cwd, cli.SQLitePath)
		}
	} else if strings.TrimSpace(fc.SQLitePath) != "" {
		sqlitePath = absCleanFrom(fileBase, fc.SQLitePath)
	}

	return EffectiveConfig{
		ConfigPath:    cfgPath,
		Chart:         chart,
		OutDir:        outDir,
		BaseURL:       baseURL,
		Delay:         delay,
		CaptureImages: captureImages,
		EmitConsole:   emitConsole,
		ProxyURL:      proxyURL,
		UserAgent:     strings.TrimSpace(fc.UserAgent),
		ArchivePages:  archivePages,
		SQLitePath:    sqlitePath,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
