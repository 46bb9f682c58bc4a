// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the search provider factory.
const (
	ProviderProxy      = "proxy"
	ProviderYTMusic    = "ytmusic"
	ProviderYouTube    = "youtube"
	ProviderSpotify    = "spotify"
	ProviderYouTubeAPI = "youtube_api"
	ProviderLastFM     = "lastfm"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Search   SearchConfig            `yaml:"search"`
	Proxy    ProxyConfig             `yaml:"proxy"`
	Queue    QueueConfig             `yaml:"queue"`
	Playback PlaybackConfig          `yaml:"playback"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Filters  map[string]FilterConfig `yaml:"filters"`
}

// FilterConfig represents a search result filter configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr           string      `yaml:"addr" default:":8080"`
	AllowedOrigins []string    `yaml:"allowed_origins"`
	ControlToken   string      `yaml:"control_token"` // required in X-Control-Token for control endpoints when set
	Hooks          HooksConfig `yaml:"hooks"`
}

// HooksConfig represents shell commands run on server lifecycle events.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// SearchConfig configures the search orchestrator used by the radio.
type SearchConfig struct {
	Providers       []ProviderConfig `yaml:"providers" validate:"dive"`
	FallbackDelayMs int              `yaml:"fallback_delay_ms" default:"500" validate:"gte=0,lte=10000"`
	TimeoutMs       int              `yaml:"timeout_ms" default:"10000" validate:"gte=100,lte=120000"`
	RatePerSec      float64          `yaml:"rate_per_sec" default:"4" validate:"gte=0"`
	Burst           int              `yaml:"burst" default:"10" validate:"gte=1"`
	Cache           CacheConfig      `yaml:"cache"`
}

// CacheConfig configures the search result cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url" validate:"required_if=Enabled true"`
	TTLSec   int    `yaml:"ttl_sec" default:"3600" validate:"gte=1"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=proxy ytmusic youtube youtube_api spotify lastfm"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// ProxyConfig configures the bundled GET /search endpoint.
type ProxyConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Providers   []ProviderConfig `yaml:"providers" validate:"dive"`
	ResultLimit int              `yaml:"result_limit" default:"3" validate:"gte=1,lte=50"`
	QuerySuffix string           `yaml:"query_suffix" default:" music"`
}

// QueueConfig configures the queue controller.
type QueueConfig struct {
	ExtensionRetryDelayMs int      `yaml:"extension_retry_delay_ms" default:"2000" validate:"gte=0"`
	ExtensionErrorDelayMs int      `yaml:"extension_error_delay_ms" default:"5000" validate:"gte=0"`
	MaxExtensionRetries   int      `yaml:"max_extension_retries" validate:"gte=0"`
	MaxQueueSize          int      `yaml:"max_queue_size" validate:"gte=0"`
	AlternativesDelayMs   int      `yaml:"alternatives_delay_ms" default:"1000" validate:"gte=0"`
	FreshnessTerms        []string `yaml:"freshness_terms" validate:"dive,required"`
}

// PlaybackConfig represents playback session timing.
type PlaybackConfig struct {
	WatchdogTimeoutMs  int `yaml:"watchdog_timeout_ms" default:"10000" validate:"gte=100,lte=120000"`
	StuckGraceMs       int `yaml:"stuck_grace_ms" default:"1000" validate:"gte=0,lte=30000"`
	EndedDelayMs       int `yaml:"ended_delay_ms" default:"1000" validate:"gte=0,lte=30000"`
	ErrorDelayMs       int `yaml:"error_delay_ms" default:"2000" validate:"gte=0,lte=30000"`
	ProgressIntervalMs int `yaml:"progress_interval_ms" default:"500" validate:"gte=50,lte=10000"`
}

// MessagesConfig represents user-facing messages.
// Messages containing %s receive the track title or query.
type MessagesConfig struct {
	Searching       string `yaml:"searching" default:"Searching for music..."`
	PlayingBest     string `yaml:"playing_best" default:"Playing the best match..."`
	NowPlaying      string `yaml:"now_playing" default:"Now playing: %s"`
	Loading         string `yaml:"loading" default:"Loading music..."`
	SearchingMore   string `yaml:"searching_more" default:"Searching for more similar music..."`
	NoResults       string `yaml:"no_results" default:"No music found for \"%s\". Try again."`
	SearchFailed    string `yaml:"search_failed" default:"Search failed. Try again."`
	FallbackInUse   string `yaml:"fallback_in_use" default:"Using demo data (music server unavailable)"`
	NoMoreMusic     string `yaml:"no_more_music" default:"No more music to play."`
	EmptyCommand    string `yaml:"empty_command" default:"Please say what music you want to hear."`
	StuckLoad       string `yaml:"stuck_load" default:"The song did not load. Finding another..."`
	ErrNotFound     string `yaml:"err_not_found" default:"Video not found. Finding another..."`
	ErrCannotPlay   string `yaml:"err_cannot_play" default:"Video cannot be played. Finding another..."`
	ErrUnavailable  string `yaml:"err_unavailable" default:"Video is unavailable. Finding another..."`
	ErrNotEmbedable string `yaml:"err_not_embedable" default:"Video cannot be played on this device. Finding another..."`
	ErrPlayback     string `yaml:"err_playback" default:"Playback error. Finding another..."`
	SpeechNoSpeech  string `yaml:"speech_no_speech" default:"I didn't hear anything. Try again."`
	SpeechNetwork   string `yaml:"speech_network" default:"Network error. Check your connection."`
	SpeechDenied    string `yaml:"speech_denied" default:"Please allow microphone access to use voice search."`
	SpeechGeneric   string `yaml:"speech_generic" default:"Could not recognize speech. Try again."`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are only required when a spotify search provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration built only from defaults and environment.
func Default() (*Config, error) {
	return Parse(nil)
}

func (c *Config) setDefaults() error {
	if err := defaults.Set(c); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if len(c.Search.Providers) == 0 {
		c.Search.Providers = defaultProviders()
	}
	if len(c.Proxy.Providers) == 0 {
		c.Proxy.Providers = defaultProviders()
	}
	return nil
}

// defaultProviders searches YouTube Music first and plain YouTube videos second.
func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Type: ProviderYTMusic, DisplayName: "YouTube Music"},
		{Type: ProviderYouTube, DisplayName: "YouTube"},
	}
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Search.Cache.RedisURL = v
	}
	if v := os.Getenv("SEARCH_PROXY_URL"); v != "" {
		setProviderSetting(c.Search.Providers, ProviderProxy, "base_url", v)
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		setProviderSetting(c.Search.Providers, ProviderYouTubeAPI, "api_key", v)
		setProviderSetting(c.Proxy.Providers, ProviderYouTubeAPI, "api_key", v)
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		setProviderSetting(c.Search.Providers, ProviderLastFM, "api_key", v)
		setProviderSetting(c.Proxy.Providers, ProviderLastFM, "api_key", v)
	}
}

func setProviderSetting(providers []ProviderConfig, typ, key string, value any) {
	for i := range providers {
		if providers[i].Type != typ {
			continue
		}
		if providers[i].Settings == nil {
			providers[i].Settings = make(map[string]any)
		}
		providers[i].Settings[key] = value
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.usesProvider(ProviderSpotify) {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify provider requires client_id, client_secret and refresh_token")
		}
	}
	return nil
}

func (c *Config) usesProvider(typ string) bool {
	for _, list := range [][]ProviderConfig{c.Search.Providers, c.Proxy.Providers} {
		for _, p := range list {
			if p.Type == typ {
				return true
			}
		}
	}
	return false
}

// Ms converts a millisecond setting to a time.Duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Timeout returns the per-call search timeout.
func (s SearchConfig) Timeout() time.Duration { return Ms(s.TimeoutMs) }

// FallbackDelay returns the simulated fallback latency.
func (s SearchConfig) FallbackDelay() time.Duration { return Ms(s.FallbackDelayMs) }

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }
