// Package linkpreview finds URLs in the composed text and enriches them into preview attachments.
package linkpreview

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/xurls/v2"

	"github.com/ras0q/lazycompose/internal/cancelscope"
	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/state"
)

type Status string

const (
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusFailed    Status = "failed"
	StatusDismissed Status = "dismissed"
)

const maxParallelEnrichments = 4

// Enricher scrapes metadata for a URL.
type Enricher interface {
	EnrichURL(ctx context.Context, url string) (chat.EnrichedURL, error)
}

type Preview struct {
	URL    string
	Status Status
	Data   chat.EnrichedURL

	// generation is the scan generation the enrichment was requested in.
	generation uint64
}

// ToAttachment converts a loaded preview to a scraped-link attachment.
func (p Preview) ToAttachment() chat.Attachment {
	scrapeURL := p.Data.OGScrapeURL
	if scrapeURL == "" {
		scrapeURL = p.URL
	}

	return chat.Attachment{
		Type:        chat.AttachmentType(p.Data.Type),
		Title:       p.Data.Title,
		TitleLink:   p.Data.TitleLink,
		Text:        p.Data.Text,
		ImageURL:    p.Data.ImageURL,
		ThumbURL:    p.Data.ThumbURL,
		AssetURL:    p.Data.AssetURL,
		AuthorName:  p.Data.AuthorName,
		OGScrapeURL: scrapeURL,
	}
}

type State struct {
	Previews []Preview
}

func (s State) Get(url string) (Preview, bool) {
	i := s.index(url)
	if i < 0 {
		return Preview{}, false
	}

	return s.Previews[i], true
}

func (s State) index(url string) int {
	return slices.IndexFunc(s.Previews, func(p Preview) bool { return p.URL == url })
}

type Options struct {
	Config   config.LinkPreviewsConfig
	Enricher Enricher
	Notifier chat.Notifier
	Logger   *zap.Logger
	// FindURLs overrides URL detection.
	FindURLs func(text string) []string
	// OnDismissed is called after a preview is dismissed.
	OnDismissed func(p Preview)
}

type Manager struct {
	config      config.LinkPreviewsConfig
	enricher    Enricher
	notifier    chat.Notifier
	logger      *zap.Logger
	findURLs    func(string) []string
	onDismissed func(Preview)

	state *state.Store[State]
	gen   cancelscope.Generation

	mu    sync.Mutex
	timer *time.Timer
}

func New(opts Options) *Manager {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = chat.NopNotifier{}
	}

	findURLs := opts.FindURLs
	if findURLs == nil {
		findURLs = FindURLs
	}

	return &Manager{
		config:      opts.Config,
		enricher:    opts.Enricher,
		notifier:    notifier,
		logger:      logging.OrNop(opts.Logger).Named("link_previews_manager"),
		findURLs:    findURLs,
		onDismissed: opts.OnDismissed,
		state:       state.New(State{}),
	}
}

var urlPattern = xurls.Relaxed()

// FindURLs returns the distinct URLs in text in order of appearance.
func FindURLs(text string) []string {
	var urls []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		if !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}

	return urls
}

func (m *Manager) State() *state.Store[State] {
	return m.state
}

func (m *Manager) Enabled() bool {
	return m.config.Enabled && m.enricher != nil
}

func (m *Manager) Previews() []Preview {
	return m.state.LatestValue().Previews
}

// LoadedPreviews returns the previews that go into a composition.
func (m *Manager) LoadedPreviews() []Preview {
	var res []Preview
	for _, p := range m.Previews() {
		if p.Status == StatusLoaded {
			res = append(res, p)
		}
	}

	return res
}

func (m *Manager) SomeLoading() bool {
	return slices.ContainsFunc(m.Previews(), func(p Preview) bool { return p.Status == StatusLoading })
}

func (m *Manager) SomeDismissed() bool {
	return slices.ContainsFunc(m.Previews(), func(p Preview) bool { return p.Status == StatusDismissed })
}

// InitState seeds loaded previews from the scraped-link attachments of message.
func (m *Manager) InitState(message *chat.LocalMessage) {
	m.CancelURLEnrichment()

	var previews []Preview
	if message != nil {
		for _, a := range message.Attachments {
			if !a.IsScrapedLink() {
				continue
			}
			previews = append(previews, Preview{
				URL:    a.OGScrapeURL,
				Status: StatusLoaded,
				Data: chat.EnrichedURL{
					Type:        string(a.Type),
					Title:       a.Title,
					TitleLink:   a.TitleLink,
					Text:        a.Text,
					ImageURL:    a.ImageURL,
					ThumbURL:    a.ThumbURL,
					AssetURL:    a.AssetURL,
					AuthorName:  a.AuthorName,
					OGScrapeURL: a.OGScrapeURL,
				},
			})
		}
	}

	m.state.Next(State{Previews: previews})
}

// FindAndEnrichURLs schedules a scan of text after the debounce delay. A newer call replaces a
// scheduled one.
func (m *Manager) FindAndEnrichURLs(text string) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.config.Debounce, func() {
		if err := m.EnrichURLs(context.Background(), text); err != nil {
			m.logger.Debug("enrich urls", zap.Error(err))
		}
	})
}

// CancelURLEnrichment drops a scheduled scan and makes results of enrichments in flight stale.
func (m *Manager) CancelURLEnrichment() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.gen.Advance()
}

// EnrichURLs scans text and enriches every new URL. Previews of URLs no longer present are
// dropped unless dismissed, and failed URLs are not retried while they stay in the text.
func (m *Manager) EnrichURLs(ctx context.Context, text string) error {
	if !m.Enabled() {
		return nil
	}

	urls := m.findURLs(text)
	if len(urls) == 0 {
		m.gen.Advance()
	}
	gen := m.gen.Load()

	var toEnrich []string
	m.state.PartialNext(func(s *State) {
		previews := slices.DeleteFunc(slices.Clone(s.Previews), func(p Preview) bool {
			return p.Status != StatusDismissed && !slices.Contains(urls, p.URL)
		})

		for _, url := range urls {
			i := slices.IndexFunc(previews, func(p Preview) bool { return p.URL == url })
			switch {
			case i < 0:
				previews = append(previews, Preview{URL: url, Status: StatusLoading, generation: gen})
			case previews[i].Status == StatusLoading && previews[i].generation != gen:
				previews[i].generation = gen
			default:
				continue
			}
			toEnrich = append(toEnrich, url)
		}

		s.Previews = previews
	})

	if len(toEnrich) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelEnrichments)
	for _, url := range toEnrich {
		eg.Go(func() error {
			data, err := m.enricher.EnrichURL(ctx, url)
			m.settle(url, gen, data, err)
			return nil
		})
	}

	return eg.Wait()
}

// settle applies an enrichment result if the scan it belongs to is still current.
func (m *Manager) settle(url string, gen uint64, data chat.EnrichedURL, err error) {
	if !m.gen.IsCurrent(gen) {
		m.logger.Debug("stale enrichment ignored", zap.String("url", url))
		return
	}

	applied := false
	m.state.PartialNext(func(s *State) {
		i := s.index(url)
		if i < 0 || s.Previews[i].Status != StatusLoading || s.Previews[i].generation != gen {
			return
		}

		previews := slices.Clone(s.Previews)
		if err != nil {
			previews[i].Status = StatusFailed
		} else {
			data.Duration = 0
			previews[i].Status = StatusLoaded
			previews[i].Data = data
		}
		s.Previews = previews
		applied = true
	})

	if applied && err != nil {
		m.notifier.AddError(chat.Notification{
			Severity: chat.SeverityError,
			Message:  "Failed to load the link preview",
			Origin: chat.NotificationOrigin{
				Emitter: "linkPreviewsManager",
				Context: map[string]any{"url": url},
			},
			Type:   "api:link-preview:enrich:failed",
			Reason: err.Error(),
			Err:    err,
		})
	}
}

// Dismiss excludes the preview of url from compositions for the lifetime of the composer.
func (m *Manager) Dismiss(url string) {
	var dismissed *Preview
	m.state.PartialNext(func(s *State) {
		i := s.index(url)
		if i < 0 || s.Previews[i].Status == StatusDismissed {
			return
		}

		previews := slices.Clone(s.Previews)
		previews[i].Status = StatusDismissed
		s.Previews = previews
		dismissed = &previews[i]
	})

	if dismissed != nil && m.onDismissed != nil {
		m.onDismissed(*dismissed)
	}
}

// ClearPreviews drops every preview that was not dismissed.
func (m *Manager) ClearPreviews() {
	m.state.PartialNext(func(s *State) {
		s.Previews = slices.DeleteFunc(slices.Clone(s.Previews), func(p Preview) bool {
			return p.Status != StatusDismissed
		})
	})
}
