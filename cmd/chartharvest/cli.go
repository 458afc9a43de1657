package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goflags "github.com/jessevdk/go-flags"

	"github.com/John-Robertt/chartharvest/internal/config"
)

// GlobalFlags 是所有子命令共享的覆盖项；未指定的字段回落到配置文件与内置默认。
type GlobalFlags struct {
	Config       string `long:"config" description:"配置文件路径（默认尝试 ./chartharvest.yaml）"`
	Chart        string `long:"chart" description:"榜单标识，例如 hot100"`
	OutDir       string `long:"out-dir" description:"输出根目录（默认 ./data）"`
	Delay        string `long:"delay" description:"两次单期抓取之间的间隔：2s / 1500ms / 整数秒"`
	Images       bool   `long:"images" description:"采集封面图与排名变化标记"`
	NoImages     bool   `long:"no-images" description:"不采集封面图与排名变化标记"`
	Console      bool   `long:"console" description:"逐条打印记录"`
	ArchivePages bool   `long:"archive-pages" description:"归档抓到的原始页面到 <out-dir>/cache/pages"`
	SQLite       string `long:"sqlite" description:"同时写入该 SQLite 数据库"`
}

// cliArgs 把命令行参数转换为 config 的覆盖项。空字符串视为未指定。
func (g *GlobalFlags) cliArgs() (config.CLIArgs, error) {
	if g.Images && g.NoImages {
		return config.CLIArgs{}, usageError{errors.New("--images 与 --no-images 不能同时使用")}
	}
	a := config.CLIArgs{ConfigPath: strings.TrimSpace(g.Config)}
	if s := strings.TrimSpace(g.Chart); s != "" {
		a.Chart, a.ChartSet = s, true
	}
	if s := strings.TrimSpace(g.OutDir); s != "" {
		a.OutDir, a.OutDirSet = s, true
	}
	if s := strings.TrimSpace(g.Delay); s != "" {
		a.Delay, a.DelaySet = s, true
	}
	if g.Images || g.NoImages {
		a.CaptureImages, a.CaptureImagesSet = g.Images, true
	}
	if g.Console {
		a.EmitConsole, a.EmitConsoleSet = true, true
	}
	if g.ArchivePages {
		a.ArchivePages, a.ArchivePagesSet = true, true
	}
	if s := strings.TrimSpace(g.SQLite); s != "" {
		a.SQLitePath, a.SQLitePathSet = s, true
	}
	return a, nil
}

// env 是命令执行时的外部环境；测试用 bytes.Buffer 与临时目录替换。
type env struct {
	ctx    context.Context
	cwd    string
	stdout io.Writer
	stderr io.Writer
}

func (e *env) load(g *GlobalFlags) (config.EffectiveConfig, error) {
	args, err := g.cliArgs()
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	return config.LoadEffective(e.cwd, args)
}

type commands struct {
	Harvest *HarvestCommand
	Fetch   *FetchCommand
	Extract *ExtractCommand
	Combine *CombineCommand
	Query   *QueryCommand
}

func buildParser(e *env) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	// 不用 goflags.Default：它会直接写 os.Stdout/os.Stderr，这里统一由 runMain 输出。
	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "chartharvest"
	parser.LongDescription = "抓取 Billboard JAPAN 周榜：按月份区间逐期抓取、提取记录并合并为 CSV。"

	cmds := &commands{
		Harvest: &HarvestCommand{globals: &globals, env: e},
		Fetch:   &FetchCommand{globals: &globals, env: e},
		Extract: &ExtractCommand{globals: &globals, env: e},
		Combine: &CombineCommand{globals: &globals, env: e},
		Query:   &QueryCommand{globals: &globals, env: e},
	}

	_, _ = parser.AddCommand("harvest", "按月份区间抓取", "按月份区间逐期抓取，写出每期 CSV、combined_charts.csv 与 report.json。", cmds.Harvest)
	_, _ = parser.AddCommand("fetch", "抓取单期榜单", "抓取一期榜单（不指定 --date 时抓最新一期）并写出一个 CSV。", cmds.Fetch)
	_, _ = parser.AddCommand("extract", "离线重新提取", "从本地 HTML（--file 或已归档页面）重新提取记录，不发起网络请求。", cmds.Extract)
	_, _ = parser.AddCommand("combine", "合并每期 CSV", "把目录下的每期 CSV 按日期合并为 combined_charts.csv。", cmds.Combine)
	_, _ = parser.AddCommand("query", "查询 SQLite", "从 --sqlite 数据库读回某期条目（CSV）或某次 harvest 的汇总（JSON）。", cmds.Query)

	return parser, &globals, cmds
}

// exitCode 让子命令在不打印额外信息的情况下指定退出码。
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

// usageError 表示参数错误（退出码 2）。
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// runMain 解析参数并执行子命令，返回进程退出码：0 成功，1 运行失败，2 参数错误。
func runMain(ctx context.Context, cwd string, args []string, stdout, stderr io.Writer) int {
	e := &env{ctx: ctx, cwd: cwd, stdout: stdout, stderr: stderr}
	parser, _, _ := buildParser(e)

	_, err := parser.ParseArgs(args)
	if err == nil {
		return 0
	}

	var fe *goflags.Error
	if errors.As(err, &fe) {
		if fe.Type == goflags.ErrHelp {
			fmt.Fprintln(stdout, fe.Message)
			return 0
		}
		fmt.Fprintf(stderr, "参数错误：%s\n\n使用 \"chartharvest --help\" 查看用法。\n", fe.Message)
		return 2
	}

	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "参数错误：%v\n", ue.err)
		return 2
	}
	fmt.Fprintf(stderr, "错误：%v\n", err)
	return 1
}
