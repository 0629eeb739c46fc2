package models

import "time"

// ContributingCounts is the number of rows that qualified for each model.
type ContributingCounts struct {
	VolumeCalls       int `json:"volumeCalls"`
	VolumePuts        int `json:"volumePuts"`
	OpenInterestCalls int `json:"openInterestCalls"`
	OpenInterestPuts  int `json:"openInterestPuts"`
}

// SentimentResult holds the weighted-breakeven price targets and ratio
// metrics for one chain. A nil field means "not enough qualifying data";
// it marshals to JSON null and is never conflated with zero.
type SentimentResult struct {
	BullsWant                *float64           `json:"bullsWant"`
	BearsWant                *float64           `json:"bearsWant"`
	VolumePrediction         *float64           `json:"volumePrediction"`
	OpenInterestPrediction   *float64           `json:"openInterestPrediction"`
	AveragePrediction        *float64           `json:"averagePrediction"`
	PutCallVolumeRatio       *float64           `json:"putCallVolumeRatio"`
	PutCallOpenInterestRatio *float64           `json:"putCallOpenInterestRatio"`
	Contributing             ContributingCounts `json:"contributing"`
}

// SentimentReport is the caller-facing result: the sentiment metrics plus the
// chain metadata needed for transparency.
type SentimentReport struct {
	Symbol         string          `json:"symbol"`
	ExpirationDate string          `json:"date"`
	Mode           ChainMode       `json:"mode"`
	Result         SentimentResult `json:"result"`
	CurrentPrice   *float64        `json:"currentPrice"`
	PriceSource    string          `json:"priceSource,omitempty"`
	PctChange      *float64        `json:"pctChange"`
	CallCount      int             `json:"callCount"`
	PutCount       int             `json:"putCount"`
	ActiveCalls    int             `json:"activeCalls"`
	ActivePuts     int             `json:"activePuts"`
	InvalidRecords int             `json:"invalidRecords"`
	Backfilled     BackfillCount   `json:"backfilled"`
	TotalCallVol   int64           `json:"totalCallVolume"`
	TotalPutVol    int64           `json:"totalPutVolume"`
	TotalCallOI    int64           `json:"totalCallOI"`
	TotalPutOI     int64           `json:"totalPutOI"`
}

// SentimentSnapshot is the persisted/published form of one computed report.
type SentimentSnapshot struct {
	Symbol         string    `json:"symbol"`
	ExpirationDate string    `json:"date"`
	ComputedAt     time.Time `json:"computedAt"`
	Mode           ChainMode `json:"mode"`
	BullsWant      float64   `json:"bullsWant"`
	BearsWant      float64   `json:"bearsWant"`
	Consensus      float64   `json:"consensus"`
	CurrentPrice   float64   `json:"currentPrice"`
}

// ForecastEntry is one symbol's bulls/bears targets in a multi-symbol forecast.
type ForecastEntry struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
	BullsWant    float64 `json:"bulls_want"`
	BearsWant    float64 `json:"bears_want"`
	AvgConsensus float64 `json:"avg_consensus"`
	Error        string  `json:"error,omitempty"`
}
