package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(1)
	}

	// Ctrl-C：harvest 在下一个期/日期边界停下，已完成的期照常合并与落盘。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, cwd, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
