package goSession

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/gymkit/goSession/internal/api"
	"github.com/gymkit/goSession/internal/refresh"
	"github.com/gymkit/goSession/jwt"
	"github.com/gymkit/goSession/store"
)

// Builder assembles a [Controller]. Configure with the With methods and call
// Build once; a builder cannot be reused.
type Builder struct {
	config     Config
	httpClient *http.Client
	redis      *redis.Client
	store      store.Store
	sink       EventSink

	built bool
}

// New creates a builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend base URL without replacing the rest of the
// configuration.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.API.BaseURL = url
	return b
}

// WithHTTPClient injects the transport used for every backend call. Without
// one, Build creates a client bounded by API.Timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithRedis selects the Redis-backed token store, which propagates logout
// between processes sharing the same prefix.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStore injects a token store. The caller keeps ownership; Close will not
// close an injected store. Takes precedence over WithRedis and
// Storage.FilePath.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithEventSink installs a lifecycle event sink and enables event dispatch.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	b.config.Events.Enabled = true
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the controller. The second
// call on the same builder returns [ErrBuilderUsed].
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(cfg.Token.ExpirySkew)
	if err != nil {
		return nil, err
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	apiClient, err := api.NewClient(httpClient, cfg.API.BaseURL, cfg.API.LoginPath, cfg.API.RefreshPath, cfg.API.UserAgent)
	if err != nil {
		return nil, err
	}

	tokenStore, owns, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)

	ctrl := &Controller{
		cfg:        cfg,
		store:      tokenStore,
		ownsStore:  owns,
		codec:      codec,
		api:        apiClient,
		metrics:    metrics,
		dispatcher: newEventDispatcher(cfg.Events, b.sink),
	}

	coord, err := refresh.NewCoordinator(ctrl.doRefresh)
	if err != nil {
		if owns {
			_ = tokenStore.Close()
		}
		return nil, err
	}
	coord.SetJoinHook(func() { metrics.Inc(MetricRefreshCoalesced) })
	ctrl.coord = coord

	ctrl.client = newAuthenticatedClient(httpClient, ctrl, metrics)
	ctrl.cancelWatch = tokenStore.Watch(ctrl.onStoreCleared)

	return ctrl, nil
}

// buildStore picks the token store backend. Injection wins, then Redis, then
// the file store, then process-local memory.
func (b *Builder) buildStore(cfg Config) (store.Store, bool, error) {
	if b.store != nil {
		return b.store, false, nil
	}
	if b.redis != nil {
		s, err := store.NewRedisStore(b.redis, cfg.Storage.RedisPrefix)
		if err != nil {
			return nil, false, fmt.Errorf("redis token store: %w", err)
		}
		return s, true, nil
	}
	if cfg.Storage.FilePath != "" {
		s, err := store.NewFileStore(cfg.Storage.FilePath)
		if err != nil {
			return nil, false, fmt.Errorf("file token store: %w", err)
		}
		return s, true, nil
	}
	return store.NewMemoryStore(), true, nil
}
