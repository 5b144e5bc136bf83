package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"marketdash/internal/alerts"
	"marketdash/pkg/models"
)

const DefaultPollInterval = 60 * time.Second

// ErrStaleResponse is returned by Refresh when a newer fetch has already been
// applied.
var ErrStaleResponse = errors.New("stale quotes response discarded")

type QuoteFetcher interface {
	Quotes(ctx context.Context, token string) ([]models.Quote, error)
}

type TokenSource interface {
	Token() string
}

// View is a read-only copy of AppState for rendering.
type View struct {
	Quotes    []models.Quote
	UpdatedAt time.Time
	Err       error
}

// AppState is the client's shared state: the last good quote snapshot, the
// last fetch error and the alert book.
type AppState struct {
	Alerts *alerts.Book

	// Sequence numbers are shared by every poller on this state, so a
	// response is stale relative to any fetch started after it.
	seq atomic.Uint64

	mu         sync.Mutex
	quotes     []models.Quote
	updatedAt  time.Time
	err        error
	appliedSeq uint64
}

func NewAppState(book *alerts.Book) *AppState {
	return &AppState{Alerts: book}
}

func (s *AppState) Quotes() []models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Quote(nil), s.quotes...)
}

func (s *AppState) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *AppState) viewLocked() View {
	return View{
		Quotes:    append([]models.Quote(nil), s.quotes...),
		UpdatedAt: s.updatedAt,
		Err:       s.err,
	}
}

// RenderFunc receives the state after every applied fetch along with the
// notifications that fetch raised. It runs while the state is locked and must
// not call back into AppState.
type RenderFunc func(view View, notifications []*models.Notification)

// Poller refreshes quotes on a fixed interval and evaluates alerts against
// every successful snapshot.
type Poller struct {
	fetcher  QuoteFetcher
	tokens   TokenSource
	state    *AppState
	engine   *alerts.Engine
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	renderMu sync.RWMutex
	render   RenderFunc

	wg sync.WaitGroup
}

func NewPoller(fetcher QuoteFetcher, tokens TokenSource, state *AppState, engine *alerts.Engine, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		tokens:   tokens,
		state:    state,
		engine:   engine,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Poller) OnRender(fn RenderFunc) {
	p.renderMu.Lock()
	p.render = fn
	p.renderMu.Unlock()
}

// Run fetches once immediately and then on every tick until ctx is done. Each
// fetch runs on its own goroutine so a slow response never delays the next
// tick; ordering is restored by sequence number in apply.
func (p *Poller) Run(ctx context.Context) error {
	p.launch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			p.launch(ctx)
		}
	}
}

func (p *Poller) launch(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) && ctx.Err() == nil {
			p.logger.Warn("Quote refresh failed", zap.Error(err))
		}
	}()
}

// Refresh performs one fetch and applies it to the shared state.
func (p *Poller) Refresh(ctx context.Context) error {
	seq := p.state.seq.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	quotes, err := p.fetcher.Quotes(fetchCtx, p.tokens.Token())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return p.apply(seq, quotes, err)
}

func (p *Poller) apply(seq uint64, quotes []models.Quote, fetchErr error) error {
	s := p.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.appliedSeq {
		p.logger.Debug("Discarding stale quotes response",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", s.appliedSeq))
		return ErrStaleResponse
	}
	s.appliedSeq = seq

	var notifications []*models.Notification
	if fetchErr != nil {
		s.err = fetchErr
	} else {
		s.quotes = quotes
		s.updatedAt = p.now()
		s.err = nil
		if p.engine != nil {
			notifications = p.engine.Evaluate(quotes)
		}
	}

	p.renderMu.RLock()
	render := p.render
	p.renderMu.RUnlock()
	if render != nil {
		render(s.viewLocked(), notifications)
	}

	return fetchErr
}
