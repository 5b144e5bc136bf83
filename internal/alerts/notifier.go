package alerts

import (
	"strings"
	"sync"

	"marketdash/pkg/models"
)

const DefaultNotifierHistory = 20

// Listener receives notifications raised after it joined, optionally limited
// to a set of symbols.
type Listener struct {
	ID      string
	C       <-chan *models.Notification
	ch      chan *models.Notification
	symbols map[string]bool
}

func (l *Listener) wants(symbol string) bool {
	return len(l.symbols) == 0 || l.symbols[symbol]
}

// Notifier hands each Evaluate batch to its listeners and remembers the most
// recent notifications so a view opened later can show what it missed.
// Delivery never blocks: a full listener loses the notification and the drop
// is counted.
type Notifier struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	recent    []*models.Notification
	history   int
	delivered int
	dropped   int
}

func NewNotifier(history int) *Notifier {
	if history <= 0 {
		history = DefaultNotifierHistory
	}
	return &Notifier{
		listeners: make(map[string]*Listener),
		history:   history,
	}
}

// Listen registers id, replacing any listener already using it. An empty
// symbol list means every symbol.
func (n *Notifier) Listen(id string, buffer int, symbols ...string) *Listener {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			set[s] = true
		}
	}

	ch := make(chan *models.Notification, buffer)
	l := &Listener{ID: id, C: ch, ch: ch, symbols: set}

	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.listeners[id]; ok {
		close(old.ch)
	}
	n.listeners[id] = l
	return l
}

// Unlisten closes the listener's channel. Unknown ids are ignored.
func (n *Notifier) Unlisten(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l, ok := n.listeners[id]; ok {
		close(l.ch)
		delete(n.listeners, id)
	}
}

// Notify records a batch and delivers it in order.
func (n *Notifier) Notify(batch []*models.Notification) {
	if len(batch) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.recent = append(n.recent, batch...)
	if over := len(n.recent) - n.history; over > 0 {
		n.recent = append([]*models.Notification(nil), n.recent[over:]...)
	}

	for _, l := range n.listeners {
		for _, note := range batch {
			if !l.wants(note.Symbol) {
				continue
			}
			select {
			case l.ch <- note:
				n.delivered++
			default:
				n.dropped++
			}
		}
	}
}

// Recent returns the remembered notifications, newest first.
func (n *Notifier) Recent() []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*models.Notification, len(n.recent))
	for i, note := range n.recent {
		out[len(n.recent)-1-i] = note
	}
	return out
}

// Close drops every listener.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, l := range n.listeners {
		close(l.ch)
		delete(n.listeners, id)
	}
}

func (n *Notifier) Stats() NotifierStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NotifierStats{
		Listeners: len(n.listeners),
		Recent:    len(n.recent),
		Delivered: n.delivered,
		Dropped:   n.dropped,
	}
}

type NotifierStats struct {
	Listeners int `json:"listeners"`
	Recent    int `json:"recent"`
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
}
