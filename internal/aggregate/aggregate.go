package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yourorg/extools/internal/model"
)

// Source name carried by every combined quote
const Source = "aggregated"

// Method selects how provider quotes are combined into one price
type Method string

const (
	MethodAuto     Method = "auto"
	MethodWeighted Method = "weighted"
	MethodMedian   Method = "median"
	MethodMean     Method = "mean"
	MethodTrimmed  Method = "trimmed"
)

// share of prices dropped at each end by MethodTrimmed
const trimShare = 0.2

var ErrUnknownMethod = errors.New("unknown aggregation method")

// ParseMethod accepts a method name in any case; empty means auto.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return MethodAuto, nil
	case MethodAuto, MethodWeighted, MethodMedian, MethodMean, MethodTrimmed:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Combine applies m to quotes. Auto weights by liquidity when any quote
// carries liquidity data and takes the median otherwise.
func Combine(m Method, quotes []model.Quote) model.Quote {
	switch m {
	case MethodWeighted:
		return Weighted(quotes)
	case MethodMedian:
		return MedianQuote(quotes)
	case MethodMean:
		return Average(quotes)
	case MethodTrimmed:
		return TrimmedMean(quotes, trimShare)
	}
	for _, q := range quotes {
		if q.LiquidityUSD > 0 {
			return Weighted(quotes)
		}
	}
	return MedianQuote(quotes)
}

func empty(quotes []model.Quote) model.Quote {
	q := model.Quote{Source: Source}
	if len(quotes) > 0 {
		q.Chain = quotes[0].Chain
		q.Token = quotes[0].Token
	}
	return q
}

// Weighted returns the liquidity weighted price. Quotes without liquidity are
// ignored; when none has any it falls back to Average.
func Weighted(quotes []model.Quote) model.Quote {
	if len(quotes) == 0 {
		return empty(quotes)
	}

	var totalLiquidity, weightedPrice, volume float64
	latest := int64(0)
	valid := 0

	for _, q := range quotes {
		if q.PriceUSD > 0 && q.LiquidityUSD > 0 {
			totalLiquidity += q.LiquidityUSD
			weightedPrice += q.PriceUSD * q.LiquidityUSD
			volume += q.Volume24hUSD
			valid++

			if q.CollectedAt > latest {
				latest = q.CollectedAt
			}
		}
	}

	if valid == 0 || totalLiquidity <= 0 || math.IsNaN(weightedPrice) {
		return Average(quotes)
	}

	out := empty(quotes)
	out.PriceUSD = weightedPrice / totalLiquidity
	out.LiquidityUSD = totalLiquidity
	out.Volume24hUSD = volume
	out.CollectedAt = latest
	return out
}

// Median of selector over all quotes with a positive price
func Median(quotes []model.Quote, selector func(model.Quote) float64) float64 {
	values := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if q.PriceUSD > 0 {
			values = append(values, selector(q))
		}
	}

	if len(values) == 0 {
		return 0
	}

	sort.Float64s(values)
	n := len(values)

	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// Price selects the USD price of a quote
func Price(q model.Quote) float64 { return q.PriceUSD }

// MedianQuote combines quotes by median price, so one bad provider cannot move it
func MedianQuote(quotes []model.Quote) model.Quote {
	out := empty(quotes)
	if len(quotes) == 0 {
		return out
	}

	out.PriceUSD = Median(quotes, Price)
	out.LiquidityUSD = Median(quotes, func(q model.Quote) float64 { return q.LiquidityUSD })
	out.Volume24hUSD = Median(quotes, func(q model.Quote) float64 { return q.Volume24hUSD })
	for _, q := range quotes {
		if q.CollectedAt > out.CollectedAt {
			out.CollectedAt = q.CollectedAt
		}
	}
	return out
}

func Average(quotes []model.Quote) model.Quote {
	out := empty(quotes)

	var total, liquidity, volume float64
	valid := 0
	for _, q := range quotes {
		if q.PriceUSD > 0 {
			total += q.PriceUSD
			liquidity += q.LiquidityUSD
			volume += q.Volume24hUSD
			valid++
			if q.CollectedAt > out.CollectedAt {
				out.CollectedAt = q.CollectedAt
			}
		}
	}

	if valid == 0 {
		return out
	}

	out.PriceUSD = total / float64(valid)
	out.LiquidityUSD = liquidity
	out.Volume24hUSD = volume
	return out
}

// ValidateQuote rejects quotes that cannot be priced at all. Age and
// liquidity policy live in the validation package.
func ValidateQuote(q model.Quote) error {
	if q.PriceUSD <= 0 || math.IsNaN(q.PriceUSD) || math.IsInf(q.PriceUSD, 0) {
		return fmt.Errorf("invalid price: %f", q.PriceUSD)
	}

	if q.LiquidityUSD < 0 {
		return fmt.Errorf("negative liquidity: %f", q.LiquidityUSD)
	}

	if q.Source == "" {
		return fmt.Errorf("quote without source")
	}

	if q.CollectedAt <= 0 {
		return fmt.Errorf("invalid timestamp: %d", q.CollectedAt)
	}

	return nil
}

// TrimmedMean drops trimPercent of the highest and lowest prices before
// averaging. Fewer than three prices, or a share outside (0, 0.5), average everything.
func TrimmedMean(quotes []model.Quote, trimPercent float64) model.Quote {
	if len(quotes) < 3 || trimPercent <= 0 || trimPercent >= 0.5 {
		return Average(quotes)
	}

	valid := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.PriceUSD > 0 {
			valid = append(valid, q)
		}
	}

	if len(valid) < 3 {
		return Average(quotes)
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].PriceUSD < valid[j].PriceUSD
	})

	trimCount := int(float64(len(valid)) * trimPercent)
	return Average(valid[trimCount : len(valid)-trimCount])
}
