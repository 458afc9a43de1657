package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/chartharvest/internal/domain"
	"github.com/John-Robertt/chartharvest/internal/provider"
)

func fillProviderError(res *DateResult, err error) {
	res.Status = domain.StatusFailed

	if errors.Is(err, context.Canceled) {
		res.ErrorCode = domain.ErrCodeCanceled
		res.ErrorMsg = "已取消"
		return
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case provider.StageParse:
			res.ErrorCode = domain.ErrCodeParseFailed
			res.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			res.ErrorCode = domain.ErrCodeFetchFailed
			res.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		}
		return
	}

	res.ErrorCode = domain.ErrCodeFetchFailed
	res.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	// HTTP 非 2xx：尽量给出可操作提示（限流与下线的页面是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发限流）。建议调大 delay 或配置 proxy.url。", providerName, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（该期榜单不存在或已下线）。", providerName)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理后重试。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", providerName)
	}

	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非榜单页面）：%v", providerName, err)
}
