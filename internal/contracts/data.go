package contracts

import "time"

// Frequency is the width of a price bar
type Frequency string

const (
	FrequencyMinute Frequency = "1m"
	FrequencyHour4  Frequency = "4h"
	FrequencyDaily  Frequency = "1d"
)

// Bar is one closing price observation
// ⭐ SSOT: MarketData → Strategy
type Bar struct {
	Time   time.Time `json:"time"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Closes extracts the closing prices of bars, oldest first
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
