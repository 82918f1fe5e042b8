package music

import (
	"fmt"
	"strings"
	"time"

	"lyrics-sync/pkg/lrclib"
	"lyrics-sync/pkg/netease"
)

// Options 创建提供商所需的参数
type Options struct {
	LrclibURL     string
	Retries       int
	Timeout       time.Duration
	NeteaseURL    string
	NeteaseCookie string
}

// CreateProvider 创建音乐提供商客户端
func CreateProvider(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lrclib":
		return lrclib.NewClient(opts.LrclibURL, opts.Retries, opts.Timeout), nil
	case "netease", "网易云", "163":
		return netease.NewClient(opts.NeteaseURL, opts.NeteaseCookie), nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", name)
	}
}

// CreateManager 按 names 的顺序创建提供商，无法识别的名称会被跳过
func CreateManager(names []string, opts Options) (*Manager, error) {
	var providers []Provider
	for _, name := range names {
		provider, err := CreateProvider(name, opts)
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return NewManager(providers), nil
}
