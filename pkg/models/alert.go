package models

import (
	"fmt"
	"strings"
	"time"
)

type Comparator int

const (
	ComparatorUnspecified Comparator = iota
	ComparatorGT
	ComparatorGTE
	ComparatorLT
	ComparatorLTE
)

func (c Comparator) String() string {
	switch c {
	case ComparatorGT:
		return ">"
	case ComparatorGTE:
		return ">="
	case ComparatorLT:
		return "<"
	case ComparatorLTE:
		return "<="
	default:
		return "unknown"
	}
}

// Compare reports whether value satisfies the comparator against threshold.
func (c Comparator) Compare(value, threshold float64) bool {
	switch c {
	case ComparatorGT:
		return value > threshold
	case ComparatorGTE:
		return value >= threshold
	case ComparatorLT:
		return value < threshold
	case ComparatorLTE:
		return value <= threshold
	default:
		return false
	}
}

type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionAbove:
		return DirectionAbove, true
	case DirectionBelow:
		return DirectionBelow, true
	default:
		return "", false
	}
}

// Comparator maps a direction to its price comparison. Inclusive turns the
// strict > and < into >= and <=.
func (d Direction) Comparator(inclusive bool) Comparator {
	switch d {
	case DirectionAbove:
		if inclusive {
			return ComparatorGTE
		}
		return ComparatorGT
	case DirectionBelow:
		if inclusive {
			return ComparatorLTE
		}
		return ComparatorLT
	default:
		return ComparatorUnspecified
	}
}

// Alert is a one-shot price threshold rule. ID is the creation time in unix
// milliseconds.
type Alert struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	TargetPrice float64   `json:"targetPrice"`
	Direction   Direction `json:"direction"`
	Triggered   bool      `json:"triggered"`
}

func NewAlert(symbol string, targetPrice float64, direction Direction, createdAt time.Time) *Alert {
	return &Alert{
		ID:          createdAt.UnixMilli(),
		Symbol:      symbol,
		TargetPrice: targetPrice,
		Direction:   direction,
	}
}

func (a *Alert) ShouldTrigger(price float64, inclusive bool) bool {
	if a.Triggered {
		return false
	}
	return a.Direction.Comparator(inclusive).Compare(price, a.TargetPrice)
}

func (a *Alert) MarkTriggered() {
	a.Triggered = true
}

func (a *Alert) String() string {
	return fmt.Sprintf("%s %s ₹%.2f", a.Symbol, a.Direction, a.TargetPrice)
}

type Notification struct {
	AlertID   int64     `json:"alertId"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Target    float64   `json:"target"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotification(alert *Alert, price float64, at time.Time) *Notification {
	return &Notification{
		AlertID:   alert.ID,
		Symbol:    alert.Symbol,
		Direction: alert.Direction,
		Target:    alert.TargetPrice,
		Price:     price,
		Timestamp: at,
	}
}

func (n *Notification) Message() string {
	return fmt.Sprintf("%s is %s ₹%.2f! Current price: ₹%.2f", n.Symbol, n.Direction, n.Target, n.Price)
}
