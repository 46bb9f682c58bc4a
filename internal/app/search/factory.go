package search

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voxbox/internal/infra/catalog"
	"github.com/osa030/voxbox/internal/infra/config"
	"github.com/osa030/voxbox/internal/infra/lastfm"
	"github.com/osa030/voxbox/internal/infra/spotify"
	"github.com/osa030/voxbox/internal/infra/youtube"
)

// ProxyProviderConfig configures a remote search proxy provider.
type ProxyProviderConfig struct {
	BaseURL   string `mapstructure:"base_url" validate:"required,url"`
	TimeoutMs int    `mapstructure:"timeout_ms" default:"10000" validate:"gte=100"`
}

// YouTubeProviderConfig configures the scraping YouTube providers.
type YouTubeProviderConfig struct {
	Limit int `mapstructure:"limit" default:"5" validate:"gte=1,lte=50"`
}

// YouTubeAPIProviderConfig configures the YouTube Data API provider.
type YouTubeAPIProviderConfig struct {
	APIKey    string `mapstructure:"api_key" validate:"required"`
	SearchURL string `mapstructure:"search_url" default:"https://www.googleapis.com/youtube/v3/search" validate:"url"`
	Limit     int    `mapstructure:"limit" default:"5" validate:"gte=1,lte=25"`
}

// SpotifyProviderConfig configures the Spotify provider.
// Spotify hits are resolved to playable YouTube videos.
type SpotifyProviderConfig struct {
	Limit int `mapstructure:"limit" default:"5" validate:"gte=1,lte=50"`
}

// LastFmProviderConfig configures the Last.fm provider.
// Last.fm hits are resolved to playable YouTube videos.
type LastFmProviderConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
	Limit  int    `mapstructure:"limit" default:"5" validate:"gte=1,lte=50"`
}

// NewChainFromConfig creates a provider chain from configuration.
func NewChainFromConfig(ctx context.Context, providers []config.ProviderConfig, spotifyCfg config.SpotifyConfig) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	var chain []ProviderWithMetadata
	for i, pcfg := range providers {
		zlog.Debug().Msgf("search: creating provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, redact(pcfg.Settings))

		provider, err := newProvider(ctx, pcfg, spotifyCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		chain = append(chain, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("search: registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(chain), nil
}

func newProvider(ctx context.Context, pcfg config.ProviderConfig, spotifyCfg config.SpotifyConfig) (Provider, error) {
	switch pcfg.Type {
	case config.ProviderProxy:
		var s ProxyProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		client, err := catalog.New(s.BaseURL, catalog.WithTimeout(time.Duration(s.TimeoutMs)*time.Millisecond))
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderYTMusic:
		var s YouTubeProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		return youtube.NewMusicProvider(s.Limit), nil

	case config.ProviderYouTube:
		var s YouTubeProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		return youtube.NewVideoProvider(s.Limit), nil

	case config.ProviderYouTubeAPI:
		var s YouTubeAPIProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		return youtube.NewAPIProvider(s.APIKey, s.SearchURL, s.Limit), nil

	case config.ProviderSpotify:
		var s SpotifyProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     spotifyCfg.ClientID,
			ClientSecret: spotifyCfg.ClientSecret,
			RefreshToken: spotifyCfg.RefreshToken,
			Market:       spotifyCfg.Market,
		})
		if err != nil {
			return nil, err
		}
		return NewResolver(client, youtube.NewVideoProvider(1), s.Limit), nil

	case config.ProviderLastFM:
		var s LastFmProviderConfig
		if err := decodeSettings(pcfg.Settings, &s); err != nil {
			return nil, err
		}
		client, err := lastfm.New(lastfm.Config{APIKey: s.APIKey})
		if err != nil {
			return nil, err
		}
		return NewResolver(client, youtube.NewVideoProvider(1), s.Limit), nil

	default:
		return nil, errors.Newf("unsupported provider type: %s", pcfg.Type)
	}
}

// decodeSettings decodes, defaults and validates a provider settings map.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

func redact(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if k == "api_key" {
			v = "***"
		}
		out[k] = v
	}
	return out
}
