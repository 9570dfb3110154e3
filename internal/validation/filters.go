// Package validation filters provider quotes before they are combined.
package validation

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/model"
)

// Options holds configuration for the validation process
type Options struct {
	// MaxAge defines how recent quotes must be to be considered valid
	MaxAge time.Duration `yaml:"max_age"`

	// MinLiquidityUSD drops quotes from thinner pools. Quotes without
	// liquidity data are kept unless RequireLiquidity is set.
	MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`

	RequireLiquidity bool `yaml:"require_liquidity"`

	// EnableOutlierDetection enables IQR outlier detection on the price
	EnableOutlierDetection bool `yaml:"outlier_detection"`

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64 `yaml:"outlier_iqr_multiplier"`
}

// DefaultOptions drops quotes older than a day and IQR outliers at 1.5
func DefaultOptions() Options {
	return Options{
		MaxAge:                 24 * time.Hour,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   1.5,
	}
}

// Filter removes implausible quotes and price outliers using DefaultOptions
func Filter(quotes []model.Quote) []model.Quote {
	return FilterWithOptions(quotes, DefaultOptions())
}

// FilterWithOptions keeps quotes that pass ValidateQuote and opts. Outlier
// detection only runs on more than three survivors.
func FilterWithOptions(quotes []model.Quote, opts Options) []model.Quote {
	valid := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if reason := invalid(q, opts); reason != "" {
			logrus.WithFields(logrus.Fields{
				"source": q.Source,
				"price":  q.PriceUSD,
				"reason": reason,
			}).Debug("Filtered invalid quote")
			continue
		}
		valid = append(valid, q)
	}

	if opts.EnableOutlierDetection && len(valid) > 3 {
		return filterOutliers(valid, opts.OutlierIQRMultiplier)
	}
	return valid
}

func invalid(q model.Quote, opts Options) string {
	if err := aggregate.ValidateQuote(q); err != nil {
		return err.Error()
	}
	if q.Token.IsZero() {
		return "zero token"
	}
	if opts.MaxAge > 0 && time.Since(time.Unix(q.CollectedAt, 0)) > opts.MaxAge {
		return "stale"
	}
	if q.LiquidityUSD == 0 {
		if opts.RequireLiquidity {
			return "no liquidity data"
		}
		return ""
	}
	if q.LiquidityUSD < opts.MinLiquidityUSD {
		return "thin liquidity"
	}
	return ""
}

// filterOutliers removes quotes outside [q1 - k*iqr, q3 + k*iqr]. When all
// prices sit in one quartile band it keeps quotes within half to double the median.
func filterOutliers(quotes []model.Quote, k float64) []model.Quote {
	if k <= 0 {
		k = 1.5
	}

	prices := make([]float64, len(quotes))
	for i, q := range quotes {
		prices[i] = q.PriceUSD
	}
	sort.Float64s(prices)
	n := len(prices)
	q1, q3 := prices[n/4], prices[n*3/4]
	iqr := q3 - q1

	lower, upper := q1-k*iqr, q3+k*iqr
	if iqr == 0 {
		median := aggregate.Median(quotes, aggregate.Price)
		lower, upper = median*0.5, median*2
	}

	valid := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.PriceUSD >= lower && q.PriceUSD <= upper {
			valid = append(valid, q)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"source": q.Source,
			"price":  q.PriceUSD,
			"bounds": []float64{lower, upper},
		}).Info("Filtered outlier quote")
	}
	return valid
}

// Confidence scores each quote from 0 to 1 by its distance to the combined
// price of all quotes. A single quote scores 1.
func Confidence(quotes []model.Quote) []float64 {
	scores := make([]float64, len(quotes))
	if len(quotes) == 0 {
		return scores
	}

	ref := aggregate.Weighted(quotes).PriceUSD
	for i, q := range quotes {
		dist := math.Abs(q.PriceUSD - ref)
		if ref > 0 {
			dist /= ref
		}
		scores[i] = 1.0 / (1.0 + dist*5)
	}
	return scores
}
