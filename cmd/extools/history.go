package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/extools/internal/fetch"
	"github.com/yourorg/extools/internal/sqldb"
	"github.com/yourorg/extools/internal/types"
)

func historyCmd(a *app) *cobra.Command {
	var (
		chainName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history TOKEN",
		Short: "Show quotes stored by api price --save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			chain, _, ok := types.LookupChain(chainName)
			if !ok {
				return fmt.Errorf("%w: %s", fetch.ErrUnsupportedChain, chainName)
			}
			token, err := types.ParseAddress(args[0])
			if err != nil {
				return err
			}

			db, err := sqldb.Open(cmd.Context(), a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			repo := sqldb.NewQuotes(db)

			quotes, err := repo.History(cmd.Context(), chain, token, limit)
			if err != nil {
				return err
			}
			total, err := repo.Count(cmd.Context(), chain, token)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(map[string]any{"total": total, "quotes": quotes})
			}
			tbl := newTable("Collected", "Source", "Price", "Liquidity")
			for _, q := range quotes {
				tbl.AddRow(time.Unix(q.CollectedAt, 0).UTC().Format(time.RFC3339), q.Source, formatUSD(q.PriceUSD), formatUSD(q.LiquidityUSD))
			}
			tbl.Print()
			fmt.Printf("%d of %d stored quotes\n", len(quotes), total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&chainName, "chain", "c", string(types.ChainEthereum), "Chain the token lives on")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of quotes to show")
	return cmd
}
