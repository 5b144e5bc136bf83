package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketdash/pkg/models"
)

// ThresholdMode selects whether a quote exactly at the target crosses it.
type ThresholdMode string

const (
	ThresholdStrict    ThresholdMode = "strict"
	ThresholdInclusive ThresholdMode = "inclusive"
)

func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch ThresholdMode(strings.ToLower(strings.TrimSpace(s))) {
	case ThresholdStrict, "":
		return ThresholdStrict, nil
	case ThresholdInclusive:
		return ThresholdInclusive, nil
	default:
		return "", fmt.Errorf("unknown threshold mode %q", s)
	}
}

func (m ThresholdMode) Inclusive() bool {
	return m == ThresholdInclusive
}

// Engine checks the book against each fresh quote snapshot.
type Engine struct {
	book        *Book
	notifier    *Notifier
	mode        ThresholdMode
	logger      *zap.Logger
	now         func() time.Time
	mu          sync.Mutex
	evaluations int
	fired       int
}

func NewEngine(book *Book, notifier *Notifier, mode ThresholdMode, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		book:     book,
		notifier: notifier,
		mode:     mode,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Engine) Mode() ThresholdMode {
	return e.mode
}

// Evaluate marks every untriggered alert whose quote has crossed its target
// and returns one notification per newly triggered alert. Alerts whose symbol
// is absent from quotes are skipped. The book is persisted only when at least
// one alert changed.
func (e *Engine) Evaluate(quotes []models.Quote) []*models.Notification {
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		prices[q.Symbol] = q.Price
	}

	at := e.now()
	inclusive := e.mode.Inclusive()

	e.book.mu.Lock()
	var notifications []*models.Notification
	for _, alert := range e.book.alerts {
		price, ok := prices[alert.Symbol]
		if !ok {
			continue
		}
		if !alert.ShouldTrigger(price, inclusive) {
			continue
		}
		alert.MarkTriggered()
		notifications = append(notifications, models.NewNotification(alert, price, at))
	}

	var persistErr error
	if len(notifications) > 0 {
		persistErr = e.book.persistLocked()
	}
	e.book.mu.Unlock()

	if persistErr != nil {
		e.logger.Warn("Failed to persist triggered alerts", zap.Error(persistErr))
	}

	e.mu.Lock()
	e.evaluations++
	e.fired += len(notifications)
	e.mu.Unlock()

	for _, n := range notifications {
		e.logger.Info("Alert triggered",
			zap.Int64("alert_id", n.AlertID),
			zap.String("symbol", n.Symbol),
			zap.String("direction", string(n.Direction)),
			zap.Float64("target", n.Target),
			zap.Float64("price", n.Price))
	}
	if e.notifier != nil {
		e.notifier.Notify(notifications)
	}

	return notifications
}

func (e *Engine) GetStats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return EngineStats{
		Mode:        e.mode,
		Alerts:      e.book.Count(),
		Triggered:   e.book.CountTriggered(),
		Evaluations: e.evaluations,
		Fired:       e.fired,
	}
}

type EngineStats struct {
	Mode        ThresholdMode `json:"mode"`
	Alerts      int           `json:"alerts"`
	Triggered   int           `json:"triggered"`
	Evaluations int           `json:"evaluations"`
	Fired       int           `json:"fired"`
}
