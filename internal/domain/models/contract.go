package models

// Side distinguishes call and put contracts.
type Side string

const (
	SideCall Side = "call"
	SidePut  Side = "put"
)

// MarketPhase is the state of the regular trading session.
type MarketPhase string

const (
	PhaseLive     MarketPhase = "live"
	PhaseEndOfDay MarketPhase = "eod"
)

// ChainMode is the mode an options chain was assembled under. It is the
// market phase, or a caller-requested end-of-day override.
type ChainMode string

const (
	ModeLive      ChainMode = "live"
	ModeEndOfDay  ChainMode = "eod"
	ModeForcedEOD ChainMode = "forced-eod"
)

// EndOfDay reports whether end-of-day rules apply under this mode.
func (m ChainMode) EndOfDay() bool {
	return m == ModeEndOfDay || m == ModeForcedEOD
}

// NormalizedContract is one option contract's canonical market snapshot.
// Constructed once by the normalizer and immutable thereafter; a zero in any
// trade field means "nothing reported", never an error.
type NormalizedContract struct {
	Identifier   string  `json:"contractSymbol"`
	Side         Side    `json:"side"`
	Strike       float64 `json:"strike"`
	LastPrice    float64 `json:"lastPrice"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"openInterest"`
}

// PrevSession is a contract's previous-session aggregate.
type PrevSession struct {
	Close     float64
	Volume    int64
	HasVolume bool
}

// BackfillCount tracks how many contracts per side had zero fields repaired.
type BackfillCount struct {
	Calls int `json:"calls"`
	Puts  int `json:"puts"`
}

// OptionsChain is the full contract set for one (symbol, expiration) pair.
type OptionsChain struct {
	Symbol         string               `json:"symbol"`
	ExpirationDate string               `json:"date"`
	Calls          []NormalizedContract `json:"calls"`
	Puts           []NormalizedContract `json:"puts"`
	Mode           ChainMode            `json:"mode"`
	Source         string               `json:"dataSource"`
	Backfilled     BackfillCount        `json:"backfilled"`
	Invalid        int                  `json:"invalidRecords"`
}

// TotalVolume sums session volume over one side, unfiltered.
func TotalVolume(side []NormalizedContract) int64 {
	var n int64
	for _, c := range side {
		n += c.Volume
	}
	return n
}

// TotalOpenInterest sums open interest over one side, unfiltered.
func TotalOpenInterest(side []NormalizedContract) int64 {
	var n int64
	for _, c := range side {
		n += c.OpenInterest
	}
	return n
}

// ActiveContracts counts one side's contracts showing any activity, meaning
// positive volume or positive open interest.
func ActiveContracts(side []NormalizedContract) int {
	n := 0
	for _, c := range side {
		if c.Volume > 0 || c.OpenInterest > 0 {
			n++
		}
	}
	return n
}
