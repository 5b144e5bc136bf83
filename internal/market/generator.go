package market

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"marketdash/internal/config"
	"marketdash/pkg/models"
)

const (
	// maxMoveFraction is the full width of the daily move band around the
	// base price: deltas fall in [-1%, +1%).
	maxMoveFraction = 0.02
	minVolume       = 500_000
	volumeSpread    = 1_000_000

	DefaultIndexBase   = 19500.0
	DefaultIndexPoints = 50
	DefaultSensexRatio = 3.3
	indexStepRange     = 20.0
	indexSpacing       = time.Minute
)

// Rand is the randomness the generator consumes; Float64 returns [0,1).
type Rand interface {
	Float64() float64
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// lockedRand makes a *rand.Rand safe to share between the quote and index
// generators when both run from different request goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type IndexOptions struct {
	Base        float64
	Points      int
	SensexRatio float64
}

func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		Base:        DefaultIndexBase,
		Points:      DefaultIndexPoints,
		SensexRatio: DefaultSensexRatio,
	}
}

// Generator produces bounded random quotes around fixed base prices and a
// random-walk index series.
type Generator struct {
	symbols []config.Symbol
	index   IndexOptions
	rand    Rand
	clock   Clock
}

func NewGenerator(symbols []config.Symbol, index IndexOptions, rnd Rand, clock Clock) *Generator {
	if index.Points < 2 {
		index.Points = DefaultIndexPoints
	}
	return &Generator{
		symbols: symbols,
		index:   index,
		rand:    rnd,
		clock:   clock,
	}
}

func (g *Generator) Symbols() []config.Symbol {
	return g.symbols
}

// Quotes draws a fresh quote for every tracked symbol. The day range is set
// symmetrically around the price by the size of the move.
func (g *Generator) Quotes() []models.Quote {
	quotes := make([]models.Quote, 0, len(g.symbols))

	for _, s := range g.symbols {
		base := s.BasePrice
		delta := (g.rand.Float64() - 0.5) * (base * maxMoveFraction)
		price := base + delta
		spread := math.Abs(delta)

		quotes = append(quotes, models.Quote{
			Symbol:        s.Symbol,
			Name:          s.Name,
			Price:         price,
			Change:        delta,
			ChangePercent: delta / base * 100,
			Volume:        int64(math.Floor(g.rand.Float64()*volumeSpread)) + minVolume,
			PreviousClose: base,
			DayHigh:       price + spread,
			DayLow:        price - spread,
		})
	}

	return quotes
}

// IndexWalk runs one random walk ending at the current minute and derives
// SENSEX from it. The two series always share their timestamps.
func (g *Generator) IndexWalk() models.IndexPair {
	n := g.index.Points
	now := g.clock.Now().UTC().Truncate(time.Millisecond)

	timestamps := make([]time.Time, n)
	for i := 0; i < n; i++ {
		timestamps[i] = now.Add(-time.Duration(n-1-i) * indexSpacing)
	}

	nifty := make([]float64, n)
	last := g.index.Base
	nifty[0] = last
	for i := 1; i < n; i++ {
		last += (g.rand.Float64() - 0.5) * indexStepRange
		nifty[i] = last
	}

	sensex := make([]float64, n)
	for i, p := range nifty {
		sensex[i] = p * g.index.SensexRatio
	}

	return models.IndexPair{
		Nifty:  models.IndexSeries{Timestamps: timestamps, Prices: nifty},
		Sensex: models.IndexSeries{Timestamps: timestamps, Prices: sensex},
	}
}
