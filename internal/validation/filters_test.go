package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

const token = types.Address("0xCb3e9919C56efF1004E54175a01e39163a352129")

func quote(source string, price, liquidity float64, age time.Duration) model.Quote {
	return model.Quote{
		Source:       source,
		Chain:        types.ChainAlvey,
		Token:        token,
		PriceUSD:     price,
		LiquidityUSD: liquidity,
		CollectedAt:  time.Now().Add(-age).Unix(),
	}
}

func TestFilter_BasicCriteria(t *testing.T) {
	tests := []struct {
		name   string
		quotes []model.Quote
		want   int
	}{
		{
			name: "all valid quotes",
			quotes: []model.Quote{
				quote("dexscreener", 1.00, 5000, 0),
				quote("geckoterminal", 1.01, 0, 0),
				quote("coingecko", 0.99, 0, 23*time.Hour),
			},
			want: 3,
		},
		{
			name: "some invalid quotes",
			quotes: []model.Quote{
				quote("dexscreener", 1.00, 5000, 0),
				quote("geckoterminal", -1, 0, 0),
				quote("coingecko", 1.0, -5, 0),
				quote("dextools", 1.0, 0, 48*time.Hour),
				quote("", 1.0, 0, 0),
				{Source: "nobody", PriceUSD: 1, CollectedAt: time.Now().Unix()},
			},
			want: 1,
		},
		{
			name:   "empty input",
			quotes: []model.Quote{},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Filter(tt.quotes), tt.want)
		})
	}
}

func TestFilterWithOptions_Liquidity(t *testing.T) {
	quotes := []model.Quote{
		quote("thick", 1.0, 100_000, 0),
		quote("thin", 1.0, 50, 0),
		quote("unknown", 1.0, 0, 0),
	}

	opts := DefaultOptions()
	opts.MinLiquidityUSD = 1000
	got := FilterWithOptions(quotes, opts)
	require.Len(t, got, 2)
	assert.Equal(t, "thick", got[0].Source)
	assert.Equal(t, "unknown", got[1].Source)

	opts.RequireLiquidity = true
	got = FilterWithOptions(quotes, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "thick", got[0].Source)
}

func TestFilterWithOptions_MaxAge(t *testing.T) {
	quotes := []model.Quote{
		quote("fresh", 1.0, 0, time.Minute),
		quote("older", 1.0, 0, 2*time.Hour),
	}

	opts := DefaultOptions()
	opts.MaxAge = time.Hour
	got := FilterWithOptions(quotes, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Source)
}

func TestFilter_Outliers(t *testing.T) {
	quotes := []model.Quote{
		quote("a", 1.00, 0, 0),
		quote("b", 1.02, 0, 0),
		quote("c", 0.98, 0, 0),
		quote("d", 1.01, 0, 0),
		quote("e", 9.00, 0, 0),
	}

	got := Filter(quotes)
	assert.Len(t, got, 4)
	for _, q := range got {
		assert.NotEqual(t, "e", q.Source)
	}

	opts := DefaultOptions()
	opts.EnableOutlierDetection = false
	assert.Len(t, FilterWithOptions(quotes, opts), 5)
}

func TestFilter_OutliersIdenticalPrices(t *testing.T) {
	var quotes []model.Quote
	for _, src := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		quotes = append(quotes, quote(src, 2.0, 0, 0))
	}
	quotes = append(quotes, quote("near", 3.5, 0, 0), quote("far", 5.0, 0, 0))

	got := Filter(quotes)
	require.Len(t, got, 8, "prices within twice the median survive a zero IQR")
	for _, q := range got {
		assert.NotEqual(t, "far", q.Source)
	}
}

func TestFilter_TooFewForOutliers(t *testing.T) {
	quotes := []model.Quote{
		quote("a", 1.0, 0, 0),
		quote("b", 1.0, 0, 0),
		quote("c", 50.0, 0, 0),
	}
	assert.Len(t, Filter(quotes), 3)
}

func TestConfidence(t *testing.T) {
	quotes := []model.Quote{
		quote("a", 1.0, 1000, 0),
		quote("b", 1.0, 1000, 0),
		quote("c", 2.0, 0, 0),
	}

	scores := Confidence(quotes)
	require.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 1.0, scores[1], 1e-9)
	assert.InDelta(t, 1.0/6.0, scores[2], 1e-9)

	assert.Empty(t, Confidence(nil))
	assert.Equal(t, []float64{1}, Confidence(quotes[:1]))
}
