package alerts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketdash/pkg/models"
)

var ErrAlertNotFound = errors.New("alert not found")

// ValidationError reports user input that cannot become an alert.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Persister stores the full alert list after every change.
type Persister interface {
	SaveAlerts(alerts []models.Alert) error
}

// Book is the client's list of price alerts, in creation order.
type Book struct {
	alerts    []*models.Alert
	symbols   map[string]bool
	persister Persister
	now       func() time.Time
	mu        sync.RWMutex
}

// NewBook restores a book from previously persisted alerts. Alerts for symbols
// outside the tracked set are kept; they simply never match a quote.
func NewBook(symbols map[string]bool, initial []models.Alert, persister Persister) *Book {
	b := &Book{
		alerts:    make([]*models.Alert, 0, len(initial)),
		symbols:   symbols,
		persister: persister,
		now:       time.Now,
	}
	for i := range initial {
		alert := initial[i]
		b.alerts = append(b.alerts, &alert)
	}
	return b
}

// Add validates the raw form input and appends a fresh, untriggered alert.
func (b *Book) Add(symbol, priceText, direction string) (models.Alert, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Alert{}, &ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	if !b.symbols[symbol] {
		return models.Alert{}, &ValidationError{Field: "symbol", Message: fmt.Sprintf("%s is not a tracked symbol", symbol)}
	}

	priceText = strings.TrimSpace(priceText)
	if priceText == "" {
		return models.Alert{}, &ValidationError{Field: "price", Message: "price is required"}
	}
	price, err := strconv.ParseFloat(priceText, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.Alert{}, &ValidationError{Field: "price", Message: fmt.Sprintf("%q is not a number", priceText)}
	}
	if price <= 0 {
		return models.Alert{}, &ValidationError{Field: "price", Message: "price must be greater than zero"}
	}

	dir, ok := models.ParseDirection(direction)
	if !ok {
		return models.Alert{}, &ValidationError{Field: "direction", Message: "direction must be above or below"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	alert := models.NewAlert(symbol, price, dir, b.now())
	// Two alerts created within the same millisecond still need distinct ids.
	if n := len(b.alerts); n > 0 && alert.ID <= b.alerts[n-1].ID {
		alert.ID = b.alerts[n-1].ID + 1
	}
	b.alerts = append(b.alerts, alert)

	if err := b.persistLocked(); err != nil {
		return *alert, err
	}
	return *alert, nil
}

// Delete removes the alert with id. Deleting an unknown id is not an error.
func (b *Book) Delete(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, alert := range b.alerts {
		if alert.ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			break
		}
	}

	return b.persistLocked()
}

func (b *Book) Get(id int64) (models.Alert, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, alert := range b.alerts {
		if alert.ID == id {
			return *alert, nil
		}
	}
	return models.Alert{}, ErrAlertNotFound
}

// List returns a copy of every alert.
func (b *Book) List() []models.Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.alerts)
}

func (b *Book) CountTriggered() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, alert := range b.alerts {
		if alert.Triggered {
			n++
		}
	}
	return n
}

func (b *Book) snapshotLocked() []models.Alert {
	out := make([]models.Alert, len(b.alerts))
	for i, alert := range b.alerts {
		out[i] = *alert
	}
	return out
}

func (b *Book) persistLocked() error {
	if b.persister == nil {
		return nil
	}
	if err := b.persister.SaveAlerts(b.snapshotLocked()); err != nil {
		return fmt.Errorf("persist alerts: %w", err)
	}
	return nil
}
