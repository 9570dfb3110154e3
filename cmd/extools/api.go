package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/cache"
	"github.com/yourorg/extools/internal/circuitbreaker"
	"github.com/yourorg/extools/internal/config"
	"github.com/yourorg/extools/internal/fetch"
	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/sqldb"
	"github.com/yourorg/extools/internal/types"
	"github.com/yourorg/extools/internal/validation"
)

func apiCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Query the token price APIs",
		Long: `Providers: ` + strings.Join(config.ProviderNames, ", ") + `

Examples:
  extools api get dexscreener /tokens/0xCb3e9919C56efF1004E54175a01e39163a352129
  extools api get coingecko /simple/token_price/alvey-chain contract_addresses=0xCb3e9919C56efF1004E54175a01e39163a352129 vs_currencies=usd
  extools api price --chain alvey 0xCb3e9919C56efF1004E54175a01e39163a352129
  extools api chain 1`,
	}
	cmd.AddCommand(apiGetCmd(a), apiPriceCmd(a), apiChainCmd(a))
	return cmd
}

// parseParams turns key=value arguments into query parameters
func parseParams(args []string) (url.Values, error) {
	params := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", arg)
		}
		params.Add(k, v)
	}
	return params, nil
}

func apiGetCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "get PROVIDER ENDPOINT [KEY=VALUE...]",
		Short: "GET a raw endpoint of a provider and print the JSON",
		Long: `GET a raw endpoint of a provider and print the JSON reply. --path selects
part of the reply with GJSON syntax, e.g. pairs.0.priceUsd or pairs.#.dexId.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients := fetch.NewClients(a.cfg, a.metrics)
			client, ok := clients.Client(strings.ToLower(args[0]))
			if !ok {
				return fmt.Errorf("unknown provider %q, expected one of %s", args[0], strings.Join(config.ProviderNames, ", "))
			}
			params, err := parseParams(args[2:])
			if err != nil {
				return err
			}

			raw, err := client.Raw(cmd.Context(), args[1], params)
			if err != nil {
				return err
			}
			if path == "" {
				return printJSON(raw)
			}
			selected, err := selectPath(raw, path)
			if err != nil {
				return err
			}
			return printJSON(selected)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "GJSON path selecting part of the reply")
	return cmd
}

// selectPath extracts path from a JSON document
func selectPath(raw json.RawMessage, path string) (json.RawMessage, error) {
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return nil, fmt.Errorf("path %q not found in reply", path)
	}
	return json.RawMessage(res.Raw), nil
}

func apiChainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chain ID",
		Short: "Look up chain metadata by network id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid network id %q: %w", args[0], err)
			}
			raw, err := fetch.NewClients(a.cfg, a.metrics).CryptoAPI.Chain(cmd.Context(), types.NetworkID(id))
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

type priceOptions struct {
	chain      string
	interval   time.Duration
	count      int
	save       bool
	method     string
	filter     validation.Options
	thresholds circuitbreaker.Thresholds
}

func apiPriceCmd(a *app) *cobra.Command {
	opts := priceOptions{filter: validation.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "price TOKEN...",
		Short: "Combine quotes from every price provider",
		Long: `Ask every provider for each TOKEN concurrently, drop implausible quotes and
outliers, and combine the rest with --method: auto (liquidity weighted, or the
median without liquidity data), weighted, median, mean or trimmed.

With --interval the prices are polled until --count rounds are done (0 runs
until interrupted). A per-token circuit breaker refuses prices that jump by
more than --max-change between rounds or come from fewer than --min-sources.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrice(cmd.Context(), a, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.chain, "chain", "c", string(types.ChainEthereum), "Chain the tokens live on")
	f.DurationVar(&opts.interval, "interval", 0, "Poll every interval instead of once")
	f.IntVar(&opts.count, "count", 1, "Polling rounds; 0 polls until interrupted")
	f.BoolVar(&opts.save, "save", false, "Store quotes in DATABASE_URL")
	f.StringVar(&opts.method, "method", string(aggregate.MethodAuto), "How quotes are combined")
	f.Float64Var(&opts.filter.MinLiquidityUSD, "min-liquidity", 0, "Drop quotes from pools with less USD liquidity")
	f.BoolVar(&opts.filter.RequireLiquidity, "require-liquidity", false, "Drop quotes without liquidity data")
	f.IntVar(&opts.thresholds.MinSources, "min-sources", 0, "Refuse prices backed by fewer quotes")
	f.Float64Var(&opts.thresholds.MaxPriceChange, "max-change", 0, "Refuse prices moving more than this ratio between rounds")
	f.Float64Var(&opts.thresholds.MaxStdDevMultiple, "max-dispersion", 0, "Refuse prices whose quotes deviate more than this multiple of the mean")
	return cmd
}

func runPrice(ctx context.Context, a *app, opts priceOptions, args []string) error {
	chain, _, ok := types.LookupChain(opts.chain)
	if !ok {
		return fmt.Errorf("%w: %s", fetch.ErrUnsupportedChain, opts.chain)
	}
	method, err := aggregate.ParseMethod(opts.method)
	if err != nil {
		return err
	}
	tokens := make([]types.Address, len(args))
	for i, arg := range args {
		addr, err := types.ParseAddress(arg)
		if err != nil {
			return err
		}
		tokens[i] = addr
	}

	clients := fetch.NewClients(a.cfg, a.metrics)
	breaker := circuitbreaker.New(opts.thresholds).
		WithResetDelay(5 * opts.interval).
		WithTripCallback(func(key, _ string, _ []model.Quote) {
			chain, _ := cache.Extract(key, "chain")
			a.metrics.BreakerTrip(chain)
		})
	ms := fetch.NewMultiSource(clients.QuoteSources()...).
		WithProviderTimeout(a.cfg.RequestTimeout).
		WithValidation(opts.filter).
		WithMethod(method).
		WithBreaker(breaker)
	if opts.interval > 0 {
		ms.WithCacheTTL(opts.interval / 2)
	}

	if a.cfg.Redis.Addr != "" {
		store := cache.New(a.cfg.Redis)
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			logrus.Warnf("Redis unavailable, using in-process cache only: %v", err)
		} else {
			ms.WithStore(store)
		}
	}

	var repo *sqldb.Quotes
	if opts.save {
		if a.cfg.DatabaseURL == "" {
			return errors.New("--save needs DATABASE_URL")
		}
		db, err := sqldb.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = sqldb.NewQuotes(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	round := func() error {
		for _, token := range tokens {
			if err := priceToken(ctx, a, ms, breaker, repo, chain, token); err != nil {
				return err
			}
		}
		return nil
	}

	if opts.interval <= 0 {
		return round()
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for n := 0; opts.count <= 0 || n < opts.count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		if err := round(); err != nil {
			return err
		}
	}
	return nil
}

func priceToken(ctx context.Context, a *app, ms *fetch.MultiSource, breaker *circuitbreaker.CircuitBreaker,
	repo *sqldb.Quotes, chain types.SupportedChain, token types.Address) error {

	quotes, failed := ms.Quotes(ctx, chain, token)
	combined, err := ms.Price(ctx, chain, token)
	if err != nil && !errors.Is(err, circuitbreaker.ErrOpen) && !errors.Is(err, circuitbreaker.ErrTripped) {
		return err
	}
	refused := err

	if repo != nil && refused == nil {
		if _, err := repo.Save(ctx, append(quotes, combined)...); err != nil {
			return fmt.Errorf("saving quotes: %w", err)
		}
	}

	if a.output == "json" {
		out := map[string]any{"token": token, "chain": chain, "quotes": quotes}
		if refused != nil {
			out["error"] = refused.Error()
		} else {
			out["price"] = combined
		}
		return printJSON(out)
	}

	fmt.Printf("%s %s on %s\n", bold("Token"), token, chain)
	tbl := newTable("Source", "Price", "Liquidity", "Volume 24h", "Confidence", "Error")
	scores := validation.Confidence(quotes)
	for i, q := range quotes {
		tbl.AddRow(q.Source, formatUSD(q.PriceUSD), formatUSD(q.LiquidityUSD), formatUSD(q.Volume24hUSD), formatConfidence(scores[i]), "")
	}
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tbl.AddRow(name, "", "", "", "", errText(failed[name]))
	}
	if refused == nil {
		tbl.AddRow(bold(combined.Source), bold(formatUSD(combined.PriceUSD)), formatUSD(combined.LiquidityUSD), formatUSD(combined.Volume24hUSD), "", "")
	}
	tbl.Print()

	if refused != nil {
		fmt.Println(red(refused.Error()))
		if last, ok := breaker.LastGoodPrice(fetch.QuoteKey(chain, token)); ok {
			fmt.Printf("last accepted price %s\n", yellow(formatUSD(last)))
		}
	}
	fmt.Println()
	return nil
}
