package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/cardshuffler/internal/cache"
	"github.com/dgnsrekt/cardshuffler/internal/collection"
	"github.com/dgnsrekt/cardshuffler/internal/compress"
	"github.com/dgnsrekt/cardshuffler/internal/remote"
)

// Maps nested config keys such as cache.ttl to CARDSHUFFLER_CACHE_TTL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// session holds the components shared by every command invocation.
type session struct {
	store    *cache.Store
	client   *remote.Client
	ctrl     *collection.Controller
	backend  cache.Backend
	cacheDir string
}

func cacheConfigFromViper() *cache.CacheConfig {
	cfg := cache.DefaultCacheConfig()
	cfg.Backend = cache.Backend(viper.GetString("cache.backend"))

	dir := viper.GetString("cache.dir")
	if dir == "" {
		dir = defaultCacheDir()
	}
	cfg.DiskPath = expandPath(dir)
	if cfg.Backend == cache.BackendSQLite {
		cfg.SQLitePath = filepath.Join(cfg.DiskPath, "cache.db")
	}

	if mb := viper.GetInt64("cache.max_size"); mb > 0 {
		cfg.DiskCapacity = mb * 1024 * 1024
		cfg.MemoryCapacity = cfg.DiskCapacity
	}
	return cfg
}

func validateAPIURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("api.url must not be empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return fmt.Errorf("api.url must start with http:// or https://, got %q", raw)
	}
	return nil
}

func openSession() (*session, error) {
	cfg := cacheConfigFromViper()
	medium, err := cache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s cache: %w", cfg.Backend, err)
	}
	logger := log.Default()
	store := cache.NewStore(medium, cache.WithLogger(logger))

	client, err := remote.New(remote.Config{
		BaseURL:           viper.GetString("api.url"),
		Timeout:           viper.GetDuration("api.timeout"),
		RequestsPerSecond: viper.GetFloat64("api.rate"),
		Logger:            logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ctrl := collection.New(collection.Options{
		Remote:     client,
		Store:      store,
		Compressor: compress.New(),
		Policy: compress.Policy{
			Quality:  viper.GetInt("compress.quality"),
			MaxWidth: viper.GetInt("compress.max_width"),
		},
		TTL:    viper.GetDuration("cache.ttl"),
		Logger: logger,
	})

	log.Debug("session opened", "api", client.BaseURL(), "backend", cfg.Backend, "dir", cfg.DiskPath)
	return &session{
		store:    store,
		client:   client,
		ctrl:     ctrl,
		backend:  cfg.Backend,
		cacheDir: cfg.DiskPath,
	}, nil
}

// Close stops background refreshes before closing the medium they write to.
func (s *session) Close() error {
	if err := s.ctrl.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
