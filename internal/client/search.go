package client

import (
	"strings"
	"sync"
	"time"

	"marketdash/pkg/models"
)

const DefaultSearchDebounce = 300 * time.Millisecond

// Debouncer runs only the last function triggered within a quiet period.
type Debouncer struct {
	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.gen == gen
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Filter keeps quotes whose symbol or name contains query, ignoring case. An
// empty query keeps everything.
func Filter(quotes []models.Quote, query string) []models.Quote {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if strings.Contains(strings.ToLower(q.Symbol), query) || strings.Contains(strings.ToLower(q.Name), query) {
			out = append(out, q)
		}
	}
	return out
}

// Searcher filters the last known snapshot after the user stops typing. It
// never touches the network.
type Searcher struct {
	state     *AppState
	debouncer *Debouncer
	onResult  func(query string, matches []models.Quote)
}

func NewSearcher(state *AppState, delay time.Duration, onResult func(query string, matches []models.Quote)) *Searcher {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Searcher{
		state:     state,
		debouncer: NewDebouncer(delay),
		onResult:  onResult,
	}
}

func (s *Searcher) Search(query string) {
	s.debouncer.Trigger(func() {
		s.onResult(query, Filter(s.state.Quotes(), query))
	})
}

func (s *Searcher) Stop() {
	s.debouncer.Stop()
}
