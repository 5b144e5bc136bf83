package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketdash/pkg/models"
)

const (
	DefaultQuotesTTL = 60 * time.Second
	DefaultIndexTTL  = 300 * time.Second

	listenerTimeout = 5 * time.Second
)

// Source generates fresh market data on a cache miss.
type Source interface {
	Quotes() []models.Quote
	IndexWalk() models.IndexPair
}

// QuotesListener is told about every quote regeneration. Listener errors are
// logged and never fail the request that caused the refresh.
type QuotesListener interface {
	QuotesRefreshed(ctx context.Context, quotes []models.Quote, at time.Time) error
}

type QuotesListenerFunc func(ctx context.Context, quotes []models.Quote, at time.Time) error

func (f QuotesListenerFunc) QuotesRefreshed(ctx context.Context, quotes []models.Quote, at time.Time) error {
	return f(ctx, quotes, at)
}

// Market caches the quote snapshot and the NIFTY/SENSEX pair. Both index
// series come from the same entry, so they are always from one walk.
type Market struct {
	source    Source
	quotes    *Entry[[]models.Quote]
	index     *Entry[models.IndexPair]
	quotesTTL time.Duration
	indexTTL  time.Duration
	logger    *zap.Logger

	mu        sync.RWMutex
	listeners []QuotesListener
}

func NewMarket(source Source, quotesTTL, indexTTL time.Duration, clock Clock, logger *zap.Logger) *Market {
	if quotesTTL <= 0 {
		quotesTTL = DefaultQuotesTTL
	}
	if indexTTL <= 0 {
		indexTTL = DefaultIndexTTL
	}
	return &Market{
		source:    source,
		quotes:    NewEntry[[]models.Quote](clock),
		index:     NewEntry[models.IndexPair](clock),
		quotesTTL: quotesTTL,
		indexTTL:  indexTTL,
		logger:    logger,
	}
}

func (m *Market) Subscribe(l QuotesListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Market) QuotesTTL() time.Duration { return m.quotesTTL }

func (m *Market) Quotes() ([]models.Quote, time.Time) {
	quotes, at, refreshed := m.quotes.Get(m.quotesTTL, m.source.Quotes)
	if refreshed {
		m.logger.Debug("Regenerated quotes", zap.Int("count", len(quotes)), zap.Time("at", at))
		m.notify(quotes, at)
	}
	return quotes, at
}

func (m *Market) Index() (models.IndexPair, time.Time) {
	pair, at, refreshed := m.index.Get(m.indexTTL, m.source.IndexWalk)
	if refreshed {
		m.logger.Debug("Regenerated index series", zap.Int("points", len(pair.Nifty.Prices)), zap.Time("at", at))
	}
	return pair, at
}

func (m *Market) Nifty() models.IndexSeries {
	pair, _ := m.Index()
	return pair.Nifty
}

func (m *Market) Sensex() models.IndexSeries {
	pair, _ := m.Index()
	return pair.Sensex
}

// RefreshInterval is the tick Run uses for interval. Zero or less means half
// the quotes TTL, so no snapshot outlives its TTL by more than half of it.
func (m *Market) RefreshInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return m.quotesTTL / 2
	}
	return interval
}

// Run keeps the quote snapshot warm so stream subscribers get pushes without
// any client polling.
func (m *Market) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(m.RefreshInterval(interval))
	defer ticker.Stop()

	m.Quotes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Quotes()
		}
	}
}

func (m *Market) notify(quotes []models.Quote, at time.Time) {
	m.mu.RLock()
	listeners := make([]QuotesListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, l := range listeners {
		go func(l QuotesListener) {
			ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
			defer cancel()
			if err := l.QuotesRefreshed(ctx, quotes, at); err != nil {
				m.logger.Warn("Quotes listener failed", zap.Error(err))
			}
		}(l)
	}
}
