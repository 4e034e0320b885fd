// Package chatext adapts a chat backend to the interfaces the composer consumes.
package chatext

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/motoki317/sc"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
)

// Backend is the remote side of a chat app.
type Backend interface {
	EnrichURL(ctx context.Context, url string) (chat.EnrichedURL, error)
	GetAppSettings(ctx context.Context) (chat.AppSettings, error)
}

// Context caches backend reads shared by every composer of a client.
type Context struct {
	backend Backend

	Enrichments *sc.Cache[string, chat.EnrichedURL]
	AppSettings *sc.Cache[struct{}, chat.AppSettings]
}

func NewContext(backend Backend, cfg config.LinkPreviewsConfig) (*Context, error) {
	c := &Context{backend: backend}

	var err error
	c.Enrichments, err = newEnrichmentsStore(backend, cfg.CacheFreshFor, cfg.CacheTTL)
	if err != nil {
		return nil, errors.Wrap(err, "create enrichments store")
	}

	c.AppSettings, err = newAppSettingsStore(backend)
	if err != nil {
		return nil, errors.Wrap(err, "create app settings store")
	}

	return c, nil
}

// EnrichURL returns the cached enrichment of url.
func (c *Context) EnrichURL(ctx context.Context, url string) (chat.EnrichedURL, error) {
	return c.Enrichments.Get(ctx, url)
}

// UploadPolicy checks files against the cached app settings.
func (c *Context) UploadPolicy() *UploadPolicy {
	return NewUploadPolicy(func(ctx context.Context) (chat.AppSettings, error) {
		return c.AppSettings.Get(ctx, struct{}{})
	})
}

// RefreshAppSettings makes the next read hit the backend.
func (c *Context) RefreshAppSettings() {
	c.AppSettings.Forget(struct{}{})
}

func wrapf(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = errors.Wrapf(*errp, format, args...)
	}
}

func newEnrichmentsStore(backend Backend, freshFor, ttl time.Duration) (*sc.Cache[string, chat.EnrichedURL], error) {
	if ttl <= 0 {
		ttl = time.Minute * 10
	}
	if freshFor <= 0 || freshFor > ttl {
		freshFor = ttl / 2
	}

	return sc.New(func(ctx context.Context, url string) (enriched chat.EnrichedURL, err error) {
		defer wrapf(&err, "enrich url %s", url)

		return backend.EnrichURL(ctx, url)
	}, freshFor, ttl)
}

func newAppSettingsStore(backend Backend) (*sc.Cache[struct{}, chat.AppSettings], error) {
	freshFor := time.Minute * 5
	ttl := time.Minute * 10

	return sc.New(func(ctx context.Context, _ struct{}) (settings chat.AppSettings, err error) {
		defer wrapf(&err, "get app settings")

		return backend.GetAppSettings(ctx)
	}, freshFor, ttl)
}
