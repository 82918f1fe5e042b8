package music

import (
	"context"
)

// Provider 歌词提供商通用接口
type Provider interface {
	// Name 获取提供商名称
	Name() string

	// Lyrics 根据歌曲信息获取 LRC 歌词，duration 为 0 表示未知
	Lyrics(ctx context.Context, title, artist string, duration float64) (string, error)
}

// Result 一次成功的歌词下载
type Result struct {
	Provider string
	Text     string
	Lines    int
}
