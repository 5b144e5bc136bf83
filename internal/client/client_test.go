package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketdash/internal/alerts"
	"marketdash/pkg/models"
)

func fakeServer(t *testing.T, quotes []models.Quote) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "p" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Invalid password"}`))
			return
		}
		w.Write([]byte(`{"token":"tok-1","name":"A","email":"a@x.com"}`))
	})
	mux.HandleFunc("GET /api/stocks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Access denied"}`))
			return
		}
		json.NewEncoder(w).Encode(quotes)
	})
	mux.HandleFunc("GET /api/nifty50", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timestamps":["2024-03-01T10:29:00.000Z","2024-03-01T10:30:00.000Z"],"prices":[19500,19504.2]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPI_Login(t *testing.T) {
	srv := fakeServer(t, nil)
	api := NewAPI(srv.URL+"/", nil)

	session, err := api.Login(context.Background(), "a@x.com", "p")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if session.Token != "tok-1" || session.User.Name != "A" || session.User.Email != "a@x.com" {
		t.Errorf("Unexpected session %+v", session)
	}

	_, err = api.Login(context.Background(), "a@x.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid password" {
		t.Errorf("Unexpected APIError %+v", apiErr)
	}
}

func TestAPI_Quotes(t *testing.T) {
	srv := fakeServer(t, []models.Quote{{Symbol: "TCS", Price: 3710}})
	api := NewAPI(srv.URL, nil)
	ctx := context.Background()

	quotes, err := api.Quotes(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Quotes() error: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "TCS" {
		t.Errorf("Unexpected quotes %+v", quotes)
	}

	if _, err := api.Quotes(ctx, ""); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Expected ErrNotLoggedIn, got %v", err)
	}

	_, err = api.Quotes(ctx, "bogus")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Access denied" {
		t.Errorf("Expected 401 Access denied, got %v", err)
	}
}

func TestAPI_EmptyQuotesIsAnError(t *testing.T) {
	srv := fakeServer(t, []models.Quote{})
	api := NewAPI(srv.URL, nil)

	if _, err := api.Quotes(context.Background(), "tok-1"); !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("Expected ErrEmptySnapshot, got %v", err)
	}
}

func TestAPI_Nifty(t *testing.T) {
	srv := fakeServer(t, nil)
	series, err := NewAPI(srv.URL, nil).Nifty(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Nifty() error: %v", err)
	}
	if len(series.Prices) != 2 || !series.Timestamps[1].Equal(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected series %+v", series)
	}
}

func TestStateFile_RoundTripAndLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dashboard.json")

	state, err := OpenState(path)
	if err != nil {
		t.Fatalf("OpenState() error: %v", err)
	}
	if state.Token() != "" {
		t.Errorf("Expected empty token for a new file")
	}

	state.SetSession(Session{Token: "tok-1", User: models.User{Name: "A", Email: "a@x.com"}})
	state.SaveAlerts([]models.Alert{{ID: 1, Symbol: "TCS", TargetPrice: 4000, Direction: models.DirectionAbove}})

	reopened, err := OpenState(path)
	if err != nil {
		t.Fatalf("OpenState() error: %v", err)
	}
	if reopened.Token() != "tok-1" {
		t.Errorf("Expected token tok-1, got %q", reopened.Token())
	}
	if user, ok := reopened.User(); !ok || user.Email != "a@x.com" {
		t.Errorf("Unexpected user %+v", user)
	}

	if err := reopened.Logout(); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	afterLogout, _ := OpenState(path)
	if afterLogout.Token() != "" {
		t.Error("Expected token cleared after logout")
	}
	if _, ok := afterLogout.User(); ok {
		t.Error("Expected user cleared after logout")
	}
	if got := afterLogout.Alerts(); len(got) != 1 || got[0].Symbol != "TCS" {
		t.Errorf("Expected alerts to survive logout, got %+v", got)
	}
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
}

type fetchResult struct {
	quotes []models.Quote
	err    error
}

func (f *scriptedFetcher) Quotes(ctx context.Context, token string) ([]models.Quote, error) {
	n := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[min(n, len(f.results)-1)]
	return r.quotes, r.err
}

func newTestPoller(t *testing.T, fetcher QuoteFetcher, interval time.Duration) (*Poller, *AppState) {
	t.Helper()
	book := alerts.NewBook(map[string]bool{"TCS": true}, nil, nil)
	if _, err := book.Add("TCS", "4000", "above"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	state := NewAppState(book)
	engine := alerts.NewEngine(book, nil, alerts.ThresholdStrict, nil)
	return NewPoller(fetcher, staticToken("tok-1"), state, engine, interval, nil), state
}

func TestPoller_RefreshAppliesAndEvaluates(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{quotes: []models.Quote{{Symbol: "TCS", Price: 4050}}}}}
	poller, state := newTestPoller(t, fetcher, time.Minute)

	var renders int
	var fired []*models.Notification
	poller.OnRender(func(view View, notifications []*models.Notification) {
		renders++
		fired = append(fired, notifications...)
	})

	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if renders != 2 {
		t.Errorf("Expected 2 renders, got %d", renders)
	}
	if len(fired) != 1 || fired[0].Symbol != "TCS" {
		t.Errorf("Expected exactly one TCS notification, got %+v", fired)
	}
	if len(state.Quotes()) != 1 {
		t.Errorf("Expected snapshot applied")
	}
}

func TestPoller_FailureKeepsSnapshot(t *testing.T) {
	boom := errors.New("network down")
	fetcher := &scriptedFetcher{results: []fetchResult{
		{quotes: []models.Quote{{Symbol: "TCS", Price: 3900}}},
		{err: boom},
	}}
	poller, state := newTestPoller(t, fetcher, time.Minute)

	poller.Refresh(context.Background())
	if err := poller.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected fetch error, got %v", err)
	}

	view := state.View()
	if !errors.Is(view.Err, boom) {
		t.Errorf("Expected error surfaced in state, got %v", view.Err)
	}
	if len(view.Quotes) != 1 || view.Quotes[0].Price != 3900 {
		t.Errorf("Expected prior snapshot kept, got %+v", view.Quotes)
	}
}

func TestPoller_DiscardsStaleResponse(t *testing.T) {
	poller, state := newTestPoller(t, &scriptedFetcher{results: []fetchResult{{}}}, time.Minute)

	newer := []models.Quote{{Symbol: "TCS", Price: 3800}}
	older := []models.Quote{{Symbol: "TCS", Price: 3700}}

	if err := poller.apply(2, newer, nil); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if err := poller.apply(1, older, nil); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("Expected ErrStaleResponse, got %v", err)
	}
	if got := state.Quotes()[0].Price; got != 3800 {
		t.Errorf("Expected newer snapshot to stay, got price %f", got)
	}
}

func TestPoller_RunKeepsTickingAfterFailure(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: errors.New("first tick fails")},
		{quotes: []models.Quote{{Symbol: "TCS", Price: 3900}}},
	}}
	poller, state := newTestPoller(t, fetcher, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	poller.Run(ctx)

	if fetcher.calls.Load() < 3 {
		t.Errorf("Expected the loop to keep firing, got %d fetches", fetcher.calls.Load())
	}
	if len(state.Quotes()) != 1 {
		t.Error("Expected a later tick to apply quotes")
	}
}

func TestFilter(t *testing.T) {
	quotes := []models.Quote{
		{Symbol: "TCS", Name: "Tata Consultancy Services Ltd."},
		{Symbol: "INFY", Name: "Infosys Ltd."},
		{Symbol: "HDFCBANK", Name: "HDFC Bank Ltd."},
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"tcs", 1},
		{"bank", 1},
		{"LTD", 3},
		{"zzz", 0},
	}

	for _, tt := range tests {
		if got := Filter(quotes, tt.query); len(got) != tt.want {
			t.Errorf("Filter(%q) returned %d, expected %d", tt.query, len(got), tt.want)
		}
	}
}

func TestSearcher_DebouncesToLastQuery(t *testing.T) {
	state := NewAppState(nil)
	state.quotes = []models.Quote{{Symbol: "TCS", Name: "Tata"}, {Symbol: "INFY", Name: "Infosys"}}

	results := make(chan string, 4)
	searcher := NewSearcher(state, 20*time.Millisecond, func(query string, matches []models.Quote) {
		results <- query
	})
	defer searcher.Stop()

	searcher.Search("t")
	searcher.Search("tc")
	searcher.Search("tcs")

	select {
	case q := <-results:
		if q != "tcs" {
			t.Errorf("Expected only the last query to run, got %q", q)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a debounced search result")
	}

	select {
	case q := <-results:
		t.Errorf("Expected a single result, got extra %q", q)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name  string
		quote models.Quote
		want  int
	}{
		// position 1 -> 90, +0.5% -> +1
		{"top of range rising", models.Quote{Price: 3737, DayLow: 3700, DayHigh: 3737, ChangePercent: 0.5}, 91},
		// position 0 -> 60, -1% -> -2
		{"bottom of range falling", models.Quote{Price: 100, DayLow: 100, DayHigh: 102, ChangePercent: -1}, 58},
		{"flat range", models.Quote{Price: 100, DayLow: 100, DayHigh: 100}, 75},
		{"adjustment capped", models.Quote{Price: 102, DayLow: 98, DayHigh: 102, ChangePercent: 8}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuccessRate(tt.quote); got != tt.want {
				t.Errorf("SuccessRate() = %d, expected %d", got, tt.want)
			}
		})
	}
}

func TestNewCard(t *testing.T) {
	card := NewCard(models.Quote{
		Symbol: "TCS", Price: 3681.5, Change: -18.5, ChangePercent: -0.5,
		Volume: 1_234_567, DayLow: 3663, DayHigh: 3700,
	})

	if card.Price != "₹3681.50" {
		t.Errorf("Unexpected price %q", card.Price)
	}
	if card.Change != "-18.50 (-0.50%)" {
		t.Errorf("Unexpected change %q", card.Change)
	}
	if card.Volume != "Vol: 1.23M" {
		t.Errorf("Unexpected volume %q", card.Volume)
	}
	if card.Range != "L: ₹3663.00  H: ₹3700.00" {
		t.Errorf("Unexpected range %q", card.Range)
	}
	if card.Positive {
		t.Error("Expected negative card")
	}
}
