package music

import (
	"context"
	"errors"
	"fmt"

	"lyrics-sync/internal/logging"
	"lyrics-sync/pkg/lrc"
)

var logger = logging.Component("music-manager")

// ErrNoProviders is returned when a manager has nothing to ask.
var ErrNoProviders = errors.New("no music providers available")

// Manager 歌词提供商管理器，按顺序回退
type Manager struct {
	providers []Provider
}

// NewManager 创建新的歌词提供商管理器
func NewManager(providers []Provider) *Manager {
	if len(providers) == 0 {
		logger.Warn().Msg("No music providers configured")
		return &Manager{}
	}

	logger.Debug().
		Int("provider_count", len(providers)).
		Str("primary_provider", providers[0].Name()).
		Msg("Music manager initialized")

	return &Manager{providers: providers}
}

// Lyrics asks each provider in turn and returns the first answer that
// contains at least one timed line.
func (m *Manager) Lyrics(ctx context.Context, title, artist string, duration float64) (*Result, error) {
	if len(m.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, provider := range m.providers {
		logger.Info().
			Str("title", title).
			Str("artist", artist).
			Str("provider", provider.Name()).
			Int("attempt", i+1).
			Int("total_providers", len(m.providers)).
			Msg("Trying to get lyrics")

		text, err := provider.Lyrics(ctx, title, artist, duration)
		if err != nil {
			logger.Warn().Str("provider", provider.Name()).Err(err).Msg("Provider failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		// 纯文本歌词没有时间标签，对同步没有意义
		n := len(lrc.Parse(text))
		if n == 0 {
			logger.Warn().Str("provider", provider.Name()).Msg("Provider returned no timed lines")
			lastErr = fmt.Errorf("%s: no timed lines", provider.Name())
			continue
		}

		logger.Info().
			Str("provider", provider.Name()).
			Int("lines", n).
			Msg("Successfully got lyrics")
		return &Result{Provider: provider.Name(), Text: text, Lines: n}, nil
	}

	return nil, fmt.Errorf("all providers failed to get lyrics for '%s - %s', last error: %w", artist, title, lastErr)
}

// ProviderNames 获取所有提供商名称
func (m *Manager) ProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.Name()
	}
	return names
}
