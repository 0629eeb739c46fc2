package sentiment

import (
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
)

// Engine computes weighted-breakeven price targets and put/call ratios from
// a normalized options chain. Pure and deterministic: same chain in, same
// result out, no I/O.
//
// Two models run over the chain. The volume model admits contracts with a
// positive last price and positive session volume, weighting each contract's
// breakeven by lastPrice * volume. The open-interest model admits contracts
// with a positive last price and positive open interest, weighting by
// lastPrice * openInterest. Each model produces one weighted breakeven mean
// per side; the two side means combine by unweighted average into the
// model's prediction. A side with no qualifying contracts is undefined, and
// an undefined side makes the combined prediction undefined rather than
// averaging against zero.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// sideStats is one side's accumulated weighted-mean state for one model.
type sideStats struct {
	weightedSum float64
	weightTotal float64
	count       int
}

func (s *sideStats) add(breakeven, weight float64) {
	s.weightedSum += breakeven * weight
	s.weightTotal += weight
	s.count++
}

// mean returns the weighted breakeven mean, or nil when no contract
// qualified.
func (s *sideStats) mean() *float64 {
	if s.weightTotal <= 0 {
		return nil
	}
	m := s.weightedSum / s.weightTotal
	return &m
}

// breakeven is the underlying price at which the contract buyer breaks even
// at expiration: strike plus premium for calls, strike minus premium for
// puts.
func breakeven(c models.NormalizedContract) float64 {
	if c.Side == models.SidePut {
		return c.Strike - c.LastPrice
	}
	return c.Strike + c.LastPrice
}

// Compute returns the sentiment metrics for the chain. It never fails: a
// sparse or empty chain yields a structurally complete result whose
// prediction and ratio fields are nil where not enough data qualified.
func (e *Engine) Compute(chain *models.OptionsChain) models.SentimentResult {
	var volCalls, volPuts, oiCalls, oiPuts sideStats

	accumulate := func(side []models.NormalizedContract, vol, oi *sideStats) {
		for _, c := range side {
			if c.LastPrice <= 0 {
				continue
			}
			be := breakeven(c)
			if c.Volume > 0 {
				vol.add(be, c.LastPrice*float64(c.Volume))
			}
			if c.OpenInterest > 0 {
				oi.add(be, c.LastPrice*float64(c.OpenInterest))
			}
		}
	}
	accumulate(chain.Calls, &volCalls, &oiCalls)
	accumulate(chain.Puts, &volPuts, &oiPuts)

	volCallMean := volCalls.mean()
	volPutMean := volPuts.mean()
	oiCallMean := oiCalls.mean()
	oiPutMean := oiPuts.mean()

	res := models.SentimentResult{
		VolumePrediction:       combineSides(volCallMean, volPutMean),
		OpenInterestPrediction: combineSides(oiCallMean, oiPutMean),
		Contributing: models.ContributingCounts{
			VolumeCalls:       volCalls.count,
			VolumePuts:        volPuts.count,
			OpenInterestCalls: oiCalls.count,
			OpenInterestPuts:  oiPuts.count,
		},
	}
	res.AveragePrediction = combineSides(res.VolumePrediction, res.OpenInterestPrediction)

	// The bulls/bears targets are single-side means: what the call side and
	// the put side each price in. The volume model speaks first; when it has
	// no qualifying contracts on a side, the open-interest model stands in.
	res.BullsWant = firstDefined(volCallMean, oiCallMean)
	res.BearsWant = firstDefined(volPutMean, oiPutMean)

	// Ratios run over raw unfiltered totals; the liquidity filters above do
	// not apply here.
	res.PutCallVolumeRatio = ratio(
		models.TotalVolume(chain.Puts), models.TotalVolume(chain.Calls))
	res.PutCallOpenInterestRatio = ratio(
		models.TotalOpenInterest(chain.Puts), models.TotalOpenInterest(chain.Calls))

	return res
}

// combineSides averages two per-side means. Either side undefined makes the
// combination undefined; averaging a real mean against a missing side would
// fabricate a target.
func combineSides(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	m := (*a + *b) / 2
	return &m
}

func firstDefined(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// ratio returns num/den, nil on a zero denominator. A zero numerator over a
// positive denominator is a defined zero.
func ratio(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}
