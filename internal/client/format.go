package client

import (
	"math"

	"github.com/shopspring/decimal"

	"marketdash/pkg/models"
)

var million = decimal.NewFromInt(1_000_000)

// Card is a quote formatted for display.
type Card struct {
	Symbol      string
	Name        string
	Price       string
	Change      string
	Volume      string
	Range       string
	SuccessRate int
	Positive    bool
}

func NewCard(q models.Quote) Card {
	positive := q.Change >= 0
	sign := ""
	if positive {
		sign = "+"
	}

	return Card{
		Symbol:      q.Symbol,
		Name:        q.Name,
		Price:       Rupees(q.Price),
		Change:      sign + fixed2(q.Change) + " (" + sign + fixed2(q.ChangePercent) + "%)",
		Volume:      "Vol: " + decimal.NewFromInt(q.Volume).Div(million).StringFixed(2) + "M",
		Range:       "L: " + Rupees(q.DayLow) + "  H: " + Rupees(q.DayHigh),
		SuccessRate: SuccessRate(q),
		Positive:    positive,
	}
}

func Rupees(v float64) string {
	return "₹" + fixed2(v)
}

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// SuccessRate is a display heuristic in [0, 100]: 60 to 90 by where the price
// sits in the day's range, nudged by up to 10 points in the direction of the
// day's change.
func SuccessRate(q models.Quote) int {
	position := 0.5
	if span := q.DayHigh - q.DayLow; span > 0 {
		position = (q.Price - q.DayLow) / span
	}

	impact := -1.0
	if q.ChangePercent > 0 {
		impact = 1
	}

	base := 60 + position*30
	adjustment := math.Min(math.Abs(q.ChangePercent)*2, 10) * impact

	rate := decimal.NewFromFloat(base + adjustment).Round(0).IntPart()
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return int(rate)
}
