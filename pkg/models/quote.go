package models

import "time"

// Quote is one symbol's simulated price snapshot.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	PreviousClose float64 `json:"previousClose"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
}

// FindQuote returns the quote for symbol, if present in the snapshot.
func FindQuote(quotes []Quote, symbol string) (Quote, bool) {
	for _, q := range quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}

// IndexSeries is a time-ordered sequence of index values.
type IndexSeries struct {
	Timestamps []time.Time `json:"timestamps"`
	Prices     []float64   `json:"prices"`
}

// IndexPair holds NIFTY and SENSEX from one generation event. Both series share
// the same timestamps.
type IndexPair struct {
	Nifty  IndexSeries `json:"nifty"`
	Sensex IndexSeries `json:"sensex"`
}

// User is the public profile returned on signup and login.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
