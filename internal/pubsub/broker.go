package pubsub

import (
	"context"
	"sync"
	"time"

	"marketdash/pkg/models"
)

// Snapshot is one regenerated quote list, as pushed to stream subscribers.
type Snapshot struct {
	Quotes    []models.Quote `json:"quotes"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type Subscriber struct {
	ID           string
	Symbols      map[string]bool
	SnapshotChan chan *Snapshot
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewSubscriber(id string, symbols []string, bufferSize int) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())

	symbolSet := make(map[string]bool)
	for _, symbol := range symbols {
		symbolSet[symbol] = true
	}

	return &Subscriber{
		ID:           id,
		Symbols:      symbolSet,
		SnapshotChan: make(chan *Snapshot, bufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Subscriber) Close() {
	s.cancel()
	close(s.SnapshotChan)
}

// Filter narrows a snapshot to the subscriber's symbols. An empty symbol set
// means everything.
func (s *Subscriber) Filter(snap *Snapshot) *Snapshot {
	if len(s.Symbols) == 0 {
		return snap
	}

	quotes := make([]models.Quote, 0, len(s.Symbols))
	for _, q := range snap.Quotes {
		if s.Symbols[q.Symbol] {
			quotes = append(quotes, q)
		}
	}
	return &Snapshot{Quotes: quotes, UpdatedAt: snap.UpdatedAt}
}

type Broker struct {
	subscribers  map[string]*Subscriber
	mu           sync.RWMutex
	snapshotChan chan *Snapshot
	stopChan     chan struct{}
	running      bool
	last         *Snapshot
}

func NewBroker() *Broker {
	return &Broker{
		subscribers:  make(map[string]*Subscriber),
		snapshotChan: make(chan *Snapshot, 64),
		stopChan:     make(chan struct{}),
	}
}

func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	go b.distributeSnapshots(ctx)
	return nil
}

func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopChan)

	for id, subscriber := range b.subscribers {
		subscriber.Close()
		delete(b.subscribers, id)
	}
}

// Subscribe registers a subscriber and primes it with the latest snapshot, if
// one has been published.
func (b *Broker) Subscribe(subscriberID string, symbols []string, bufferSize int) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, exists := b.subscribers[subscriberID]; exists {
		existing.Close()
	}

	subscriber := NewSubscriber(subscriberID, symbols, bufferSize)
	b.subscribers[subscriberID] = subscriber

	if b.last != nil {
		select {
		case subscriber.SnapshotChan <- subscriber.Filter(b.last):
		default:
		}
	}

	return subscriber
}

func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscriber, exists := b.subscribers[subscriberID]; exists {
		subscriber.Close()
		delete(b.subscribers, subscriberID)
	}
}

func (b *Broker) Publish(snap *Snapshot) {
	select {
	case b.snapshotChan <- snap:
	default:
	}
}

// QuotesRefreshed lets the broker listen on the market cache.
func (b *Broker) QuotesRefreshed(ctx context.Context, quotes []models.Quote, at time.Time) error {
	b.Publish(&Snapshot{Quotes: quotes, UpdatedAt: at})
	return nil
}

func (b *Broker) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) distributeSnapshots(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case snap := <-b.snapshotChan:
			b.fanOut(snap)
		}
	}
}

func (b *Broker) fanOut(snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last != nil && snap.UpdatedAt.Before(b.last.UpdatedAt) {
		return
	}
	b.last = snap

	for _, subscriber := range b.subscribers {
		select {
		case subscriber.SnapshotChan <- subscriber.Filter(snap):
		case <-subscriber.ctx.Done():
		default:
		}
	}
}
