package chatext

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/go-faster/errors"

	"github.com/ras0q/lazycompose/internal/chat"
)

// StaticBackend serves fixed app settings and builds previews from the URL alone.
type StaticBackend struct {
	Settings chat.AppSettings
}

func (b StaticBackend) GetAppSettings(ctx context.Context) (chat.AppSettings, error) {
	if err := ctx.Err(); err != nil {
		return chat.AppSettings{}, err
	}

	return b.Settings, nil
}

func (b StaticBackend) EnrichURL(ctx context.Context, rawURL string) (chat.EnrichedURL, error) {
	if err := ctx.Err(); err != nil {
		return chat.EnrichedURL{}, err
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return chat.EnrichedURL{}, errors.Wrap(err, "parse url")
	}
	if u.Host == "" {
		return chat.EnrichedURL{}, errors.Errorf("no host in %q", rawURL)
	}

	title := u.Host
	if base := path.Base(u.Path); base != "/" && base != "." {
		title += " - " + base
	}

	return chat.EnrichedURL{
		Type:      "article",
		Title:     title,
		TitleLink: u.String(),
		Text:      u.String(),
	}, nil
}
