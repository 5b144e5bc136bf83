package benchmarks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketdash/internal/alerts"
	"marketdash/internal/auth"
	"marketdash/internal/cache"
	"marketdash/internal/client"
	"marketdash/internal/config"
	"marketdash/internal/market"
	"marketdash/internal/pubsub"
	"marketdash/pkg/models"
)

func newGenerator(tb testing.TB) (*market.Generator, map[string]bool) {
	tb.Helper()
	symbols, err := config.LoadSymbols("")
	if err != nil {
		tb.Fatalf("LoadSymbols() error: %v", err)
	}
	return market.NewGenerator(symbols, market.DefaultIndexOptions(), market.NewRand(42), market.RealClock{}), config.SymbolSet(symbols)
}

// newBook fills a book with alerts that never fire against generated prices.
func newBook(tb testing.TB, known map[string]bool, perSymbol int) *alerts.Book {
	tb.Helper()
	book := alerts.NewBook(known, nil, nil)
	for symbol := range known {
		for i := 0; i < perSymbol; i++ {
			if _, err := book.Add(symbol, "1", "below"); err != nil {
				tb.Fatalf("Add() error: %v", err)
			}
		}
	}
	return book
}

func BenchmarkGenerateQuotes(b *testing.B) {
	gen, _ := newGenerator(b)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = gen.Quotes()
	}
}

func BenchmarkGenerateIndexWalk(b *testing.B) {
	gen, _ := newGenerator(b)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = gen.IndexWalk()
	}
}

func BenchmarkCacheHit(b *testing.B) {
	gen, _ := newGenerator(b)
	m := cache.NewMarket(gen, time.Hour, time.Hour, nil, zap.NewNop())
	m.Quotes()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Quotes()
		}
	})
}

func BenchmarkAlertEngine(b *testing.B) {
	gen, known := newGenerator(b)
	book := newBook(b, known, 100)
	engine := alerts.NewEngine(book, nil, alerts.ThresholdStrict, zap.NewNop())
	quotes := gen.Quotes()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.Evaluate(quotes)
	}
}

func BenchmarkConcurrentAlertEvaluation(b *testing.B) {
	gen, known := newGenerator(b)
	book := newBook(b, known, 25)
	engine := alerts.NewEngine(book, nil, alerts.ThresholdInclusive, zap.NewNop())
	quotes := gen.Quotes()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			engine.Evaluate(quotes)
		}
	})
}

func BenchmarkPubSubBroker(b *testing.B) {
	gen, _ := newGenerator(b)
	broker := pubsub.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker.Start(ctx)
	defer broker.Stop()

	for i := 0; i < 100; i++ {
		broker.Subscribe(uuid.New().String(), []string{"TCS", "INFY"}, 1000)
	}

	quotes := gen.Quotes()
	start := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		broker.Publish(&pubsub.Snapshot{Quotes: quotes, UpdatedAt: start.Add(time.Duration(i))})
	}
}

func BenchmarkSearchFilter(b *testing.B) {
	gen, _ := newGenerator(b)
	quotes := gen.Quotes()
	queries := []string{"tcs", "bank", "infosys", "zzz", ""}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = client.Filter(quotes, queries[i%len(queries)])
	}
}

func BenchmarkGateAuthenticate(b *testing.B) {
	issuer := auth.NewIssuer("bench-secret", time.Hour)
	gate := auth.NewGate(issuer)
	token, err := issuer.Issue("bench@example.com")
	if err != nil {
		b.Fatalf("Issue() error: %v", err)
	}
	header := "Bearer " + token

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := gate.Authenticate(header); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLatency(b *testing.B) {
	notifier := alerts.NewNotifier(0)
	defer notifier.Close()

	listener := notifier.Listen(uuid.New().String(), 100)
	known := map[string]bool{"TCS": true}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		book := alerts.NewBook(known, nil, nil)
		if _, err := book.Add("TCS", "4000", "above"); err != nil {
			b.Fatal(err)
		}
		engine := alerts.NewEngine(book, notifier, alerts.ThresholdStrict, nil)
		b.StartTimer()

		start := time.Now()
		engine.Evaluate([]models.Quote{{Symbol: "TCS", Price: 4050}})

		select {
		case <-listener.C:
			b.ReportMetric(float64(time.Since(start).Nanoseconds()), "ns/trigger")
		default:
			b.Fatal("Expected the notification to be delivered by Evaluate")
		}
	}
}

func BenchmarkHighVolumeRefresh(b *testing.B) {
	gen, known := newGenerator(b)
	book := newBook(b, known, 50)
	engine := alerts.NewEngine(book, nil, alerts.ThresholdStrict, zap.NewNop())
	broker := pubsub.NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker.Start(ctx)
	defer broker.Stop()

	for i := 0; i < 50; i++ {
		broker.Subscribe(fmt.Sprintf("sub-%d", i), nil, 1000)
	}

	start := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	var wg sync.WaitGroup
	for i := 0; i < b.N; i++ {
		quotes := gen.Quotes()
		wg.Add(2)
		go func(at time.Time) {
			defer wg.Done()
			broker.QuotesRefreshed(ctx, quotes, at)
		}(start.Add(time.Duration(i)))
		go func() {
			defer wg.Done()
			engine.Evaluate(quotes)
		}()
		wg.Wait()
	}
}
