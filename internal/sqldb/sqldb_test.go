package sqldb

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

func TestCountQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM pairs", "SELECT COUNT(*) FROM (SELECT * FROM pairs) AS sub"},
		{"  SELECT id FROM pairs WHERE chain = ?;  ", "SELECT COUNT(*) FROM (SELECT id FROM pairs WHERE chain = ?) AS sub"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countQuery(tt.in))
	}
}

func TestRebind(t *testing.T) {
	// lib/pq opens lazily, nothing is dialed here
	db, err := sqlx.Open(driver, "postgres://user@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()

	d := New(db)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM pairs WHERE chain = $1 AND dex = $2) AS sub",
		d.db.Rebind(countQuery("SELECT * FROM pairs WHERE chain = ? AND dex = ?")))
}

type pairRow struct {
	Address string `db:"address"`
	Chain   string `db:"chain"`
}

// Runs against a real server when DATABASE_URL is set
func TestDB_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	d, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Execute(ctx, "CREATE TABLE IF NOT EXISTS extools_pairs (address TEXT PRIMARY KEY, chain TEXT NOT NULL)")
	require.NoError(t, err)
	defer d.Execute(ctx, "DROP TABLE extools_pairs")
	_, err = d.Execute(ctx, "DELETE FROM extools_pairs")
	require.NoError(t, err)

	n, err := d.Execute(ctx, "INSERT INTO extools_pairs (address, chain) VALUES (?, ?), (?, ?)", "0x1", "alvey", "0x2", "bsc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = d.ExecuteNamed(ctx, "INSERT INTO extools_pairs (address, chain) VALUES (:address, :chain)", pairRow{"0x3", "alvey"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, ok, err := One[pairRow](ctx, d, "SELECT address, chain FROM extools_pairs WHERE address = ?", "0x2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bsc", row.Chain)

	_, ok, err = One[pairRow](ctx, d, "SELECT address, chain FROM extools_pairs WHERE address = ?", "0x9")
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := All[pairRow](ctx, d, "SELECT address, chain FROM extools_pairs WHERE chain = ? ORDER BY address", "alvey")
	require.NoError(t, err)
	assert.Equal(t, []pairRow{{"0x1", "alvey"}, {"0x3", "alvey"}}, rows)

	count, err := d.Count(ctx, "SELECT address FROM extools_pairs WHERE chain = ?", "alvey")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var seen []string
	err = d.Select(ctx, "SELECT address FROM extools_pairs ORDER BY address", nil, func(r map[string]any) error {
		seen = append(seen, r["address"].(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1", "0x2", "0x3"}, seen)

	// a failing statement leaves the table untouched
	_, err = d.Execute(ctx, "INSERT INTO extools_pairs (address, chain) VALUES (?, ?)", "0x1", "dup")
	assert.Error(t, err)
	count, err = d.Count(ctx, "SELECT * FROM extools_pairs")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestQuoteRow(t *testing.T) {
	r := quoteRow{Source: "aggregated", Chain: "alvey", Token: "0xcb3e", PriceUSD: 0.5, VolumeUSD: 10, CollectedAt: 42}
	q := r.quote()
	assert.Equal(t, "aggregated", q.Source)
	assert.Equal(t, types.ChainAlvey, q.Chain)
	assert.Equal(t, types.Address("0xcb3e"), q.Token)
	assert.Equal(t, 10.0, q.Volume24hUSD)
	assert.Equal(t, int64(42), q.CollectedAt)
}

func TestQuotes_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	d, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer d.Close()

	repo := NewQuotes(d)
	require.NoError(t, repo.EnsureSchema(ctx))

	token := types.Address("0xCb3e9919C56efF1004E54175a01e39163a352129")
	defer d.Execute(ctx, "DELETE FROM quotes WHERE token = ?", "0xcb3e9919c56eff1004e54175a01e39163a352129")

	older := model.NewQuote("aggregated", types.ChainAlvey, token, 0.01)
	older.CollectedAt -= 60
	newer := model.NewQuote("aggregated", types.ChainAlvey, token, 0.02)

	invalid := model.NewQuote("aggregated", types.ChainAlvey, token, 0)

	n, err := repo.Save(ctx, older, newer, invalid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	latest, ok, err := repo.Latest(ctx, types.ChainAlvey, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.02, latest.PriceUSD)

	history, err := repo.History(ctx, types.ChainAlvey, token, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0.01, history[1].PriceUSD)

	count, err := repo.Count(ctx, types.ChainAlvey, token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, ok, err = repo.Latest(ctx, types.ChainBSC, token)
	require.NoError(t, err)
	assert.False(t, ok)
}
