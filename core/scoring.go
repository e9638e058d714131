package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const scorePrecision int32 = 4 // scores are compared at 0.0001 resolution

// Scorer maps a bid's inputs to its ranking score.
type Scorer interface {
	Score(price, weight float64, reactionTime int64, c Coefficients) (float64, error)
}

// LinearScorer computes alpha*price + beta*weight - gamma*reactionTime.
type LinearScorer struct{}

func (LinearScorer) Score(price, weight float64, reactionTime int64, c Coefficients) (float64, error) {
	if err := checkScoreInputs(price, weight, reactionTime, c); err != nil {
		return 0, err
	}

	// Use decimal arithmetic so equal inputs always produce equal scores
	priceTerm := decimal.NewFromFloat(c.Alpha).Mul(decimal.NewFromFloat(price))
	weightTerm := decimal.NewFromFloat(c.Beta).Mul(decimal.NewFromFloat(weight))
	latencyTerm := decimal.NewFromFloat(c.Gamma).Mul(decimal.NewFromInt(reactionTime))

	score, _ := priceTerm.Add(weightTerm).Sub(latencyTerm).Round(scorePrecision).Float64()
	return score, nil
}

// DecayScorer computes alpha*price + beta/(reactionTime+1) + gamma*weight, rewarding early bids
// with a bonus that decays towards zero.
type DecayScorer struct{}

func (DecayScorer) Score(price, weight float64, reactionTime int64, c Coefficients) (float64, error) {
	if err := checkScoreInputs(price, weight, reactionTime, c); err != nil {
		return 0, err
	}

	priceTerm := decimal.NewFromFloat(c.Alpha).Mul(decimal.NewFromFloat(price))
	decayTerm := decimal.NewFromFloat(c.Beta).Div(decimal.NewFromInt(reactionTime + 1))
	weightTerm := decimal.NewFromFloat(c.Gamma).Mul(decimal.NewFromFloat(weight))

	score, _ := priceTerm.Add(decayTerm).Add(weightTerm).Round(scorePrecision).Float64()
	return score, nil
}

// ScorerFor returns the scorer registered under mode. An empty mode selects the linear scorer.
func ScorerFor(mode string) (Scorer, error) {
	switch mode {
	case "", "linear":
		return LinearScorer{}, nil
	case "decay":
		return DecayScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring mode %q", mode)
	}
}

// decimal.NewFromFloat panics on NaN and Inf, so inputs are checked first.
func checkScoreInputs(price, weight float64, reactionTime int64, c Coefficients) error {
	switch {
	case !finite(price):
		return fmt.Errorf("%w: price %v", ErrInvalidScoreInput, price)
	case !finite(weight) || weight <= 0:
		return fmt.Errorf("%w: weight %v", ErrInvalidScoreInput, weight)
	case reactionTime < 0:
		return fmt.Errorf("%w: reaction time %d", ErrInvalidScoreInput, reactionTime)
	case !finite(c.Alpha) || !finite(c.Beta) || !finite(c.Gamma):
		return fmt.Errorf("%w: coefficients %+v", ErrInvalidScoreInput, c)
	}
	return nil
}
