package chain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
)

// AliasTable lists, per logical field, the provider keys that may carry it,
// in priority order. The first present, non-null key wins.
type AliasTable struct {
	Identifier   []string
	Side         []string
	Strike       []string
	LastPrice    []string
	Volume       []string
	OpenInterest []string
}

// DefaultAliases covers the provider response shapes seen across the
// snapshot, reference-contracts, and aggregate endpoints.
var DefaultAliases = AliasTable{
	Identifier:   []string{"ticker", "contractSymbol", "contract_ticker", "symbol"},
	Side:         []string{"contract_type", "type", "putCall", "side"},
	Strike:       []string{"strike_price", "strike", "strikePrice"},
	LastPrice:    []string{"lastPrice", "last", "close", "c", "last_price"},
	Volume:       []string{"volume", "totalVolume", "v", "session_volume"},
	OpenInterest: []string{"open_interest", "openInterest", "oi"},
}

// Normalizer converts raw provider records to canonical contracts. Pure; no
// I/O, no shared state.
type Normalizer struct {
	aliases AliasTable
}

// NormalizerOption configures Normalizer.
type NormalizerOption func(*Normalizer)

// WithAliases overrides the alias table.
func WithAliases(t AliasTable) NormalizerOption {
	return func(n *Normalizer) { n.aliases = t }
}

// NewNormalizer creates a Normalizer with the default alias table.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{aliases: DefaultAliases}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record into a NormalizedContract. The second
// return is false when the record is invalid: strike missing or not a finite
// positive number, or a side that cannot be assigned to the calls or puts
// list. All other fields coerce to 0 on absence or garbage, never to an
// error.
func (n *Normalizer) Normalize(raw repository.RawRecord) (models.NormalizedContract, bool) {
	strike := coerceFloat(lookup(raw, n.aliases.Strike))
	if strike <= 0 || math.IsInf(strike, 0) {
		return models.NormalizedContract{}, false
	}
	side, ok := parseSide(lookup(raw, n.aliases.Side))
	if !ok {
		return models.NormalizedContract{}, false
	}

	c := models.NormalizedContract{
		Identifier:   coerceString(lookup(raw, n.aliases.Identifier)),
		Side:         side,
		Strike:       strike,
		LastPrice:    coerceFloat(lookup(raw, n.aliases.LastPrice)),
		Volume:       coerceInt(lookup(raw, n.aliases.Volume)),
		OpenInterest: coerceInt(lookup(raw, n.aliases.OpenInterest)),
	}
	if c.LastPrice < 0 {
		c.LastPrice = 0
	}
	if c.Volume < 0 {
		c.Volume = 0
	}
	if c.OpenInterest < 0 {
		c.OpenInterest = 0
	}
	return c, true
}

func lookup(raw repository.RawRecord, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// coerceFloat converts heterogeneous numeric input to a float64. Strings may
// carry thousands separators and surrounding whitespace. Absence, parse
// failure, and NaN all yield 0.
func coerceFloat(v interface{}) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case float32:
		return coerceFloat(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		return coerceFloat(string(x))
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceInt(v interface{}) int64 {
	f := coerceFloat(v)
	return int64(f)
}

func coerceString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func parseSide(v interface{}) (models.Side, bool) {
	s := strings.ToLower(strings.TrimSpace(coerceStringAny(v)))
	switch {
	case s == "c" || strings.HasPrefix(s, "call"):
		return models.SideCall, true
	case s == "p" || strings.HasPrefix(s, "put"):
		return models.SidePut, true
	default:
		return "", false
	}
}

func coerceStringAny(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return string(x)
	default:
		return ""
	}
}
