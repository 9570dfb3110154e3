package sqldb

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

const quotesSchema = `CREATE TABLE IF NOT EXISTS quotes (
	id            BIGSERIAL PRIMARY KEY,
	source        TEXT NOT NULL,
	chain         TEXT NOT NULL,
	token         TEXT NOT NULL,
	pair          TEXT NOT NULL DEFAULT '',
	price_usd     DOUBLE PRECISION NOT NULL,
	liquidity_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	volume_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
	collected_at  BIGINT NOT NULL
)`

type quoteRow struct {
	Source       string  `db:"source"`
	Chain        string  `db:"chain"`
	Token        string  `db:"token"`
	Pair         string  `db:"pair"`
	PriceUSD     float64 `db:"price_usd"`
	LiquidityUSD float64 `db:"liquidity_usd"`
	VolumeUSD    float64 `db:"volume_usd"`
	CollectedAt  int64   `db:"collected_at"`
}

func (r quoteRow) quote() model.Quote {
	return model.Quote{
		Source:       r.Source,
		Chain:        types.SupportedChain(r.Chain),
		Token:        types.Address(r.Token),
		Pair:         types.Address(r.Pair),
		PriceUSD:     r.PriceUSD,
		LiquidityUSD: r.LiquidityUSD,
		Volume24hUSD: r.VolumeUSD,
		CollectedAt:  r.CollectedAt,
	}
}

// Quotes keeps a price history per chain and token
type Quotes struct {
	db *DB
}

func NewQuotes(db *DB) *Quotes {
	return &Quotes{db: db}
}

// EnsureSchema creates the quotes table if needed
func (q *Quotes) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Execute(ctx, quotesSchema); err != nil {
		return err
	}
	_, err := q.db.Execute(ctx, "CREATE INDEX IF NOT EXISTS quotes_token_idx ON quotes (chain, token, collected_at)")
	return err
}

// Save stores quotes; tokens are kept lowercase so lookups ignore checksum casing.
// Quotes that fail model.Quote.IsValid are skipped.
func (q *Quotes) Save(ctx context.Context, quotes ...model.Quote) (int64, error) {
	var saved int64
	for _, quote := range quotes {
		if !quote.IsValid() {
			logrus.Debugf("Not storing invalid %s quote for %s", quote.Source, quote.Token)
			continue
		}
		n, err := q.db.ExecuteNamed(ctx, `INSERT INTO quotes
			(source, chain, token, pair, price_usd, liquidity_usd, volume_usd, collected_at)
			VALUES (:source, :chain, :token, :pair, :price_usd, :liquidity_usd, :volume_usd, :collected_at)`,
			quoteRow{
				Source:       quote.Source,
				Chain:        string(quote.Chain),
				Token:        strings.ToLower(quote.Token.Hex()),
				Pair:         strings.ToLower(quote.Pair.Hex()),
				PriceUSD:     quote.PriceUSD,
				LiquidityUSD: quote.LiquidityUSD,
				VolumeUSD:    quote.Volume24hUSD,
				CollectedAt:  quote.CollectedAt,
			})
		if err != nil {
			return saved, err
		}
		saved += n
	}
	return saved, nil
}

const quoteColumns = "source, chain, token, pair, price_usd, liquidity_usd, volume_usd, collected_at"

// Latest returns the newest stored quote for token
func (q *Quotes) Latest(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, bool, error) {
	row, ok, err := One[quoteRow](ctx, q.db,
		"SELECT "+quoteColumns+" FROM quotes WHERE chain = ? AND token = ? ORDER BY collected_at DESC, id DESC LIMIT 1",
		string(chain), strings.ToLower(token.Hex()))
	if err != nil || !ok {
		return model.Quote{}, ok, err
	}
	return row.quote(), true, nil
}

// History returns up to limit quotes for token, newest first
func (q *Quotes) History(ctx context.Context, chain types.SupportedChain, token types.Address, limit int) ([]model.Quote, error) {
	rows, err := All[quoteRow](ctx, q.db,
		"SELECT "+quoteColumns+" FROM quotes WHERE chain = ? AND token = ? ORDER BY collected_at DESC, id DESC LIMIT ?",
		string(chain), strings.ToLower(token.Hex()), limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Quote, len(rows))
	for i, r := range rows {
		out[i] = r.quote()
	}
	return out, nil
}

// Count returns how many quotes are stored for token
func (q *Quotes) Count(ctx context.Context, chain types.SupportedChain, token types.Address) (int64, error) {
	return q.db.Count(ctx, "SELECT id FROM quotes WHERE chain = ? AND token = ?", string(chain), strings.ToLower(token.Hex()))
}
