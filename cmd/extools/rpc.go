package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/extools/internal/jsonrpc"
	"github.com/yourorg/extools/internal/types"
)

// a null result, e.g. an unknown hash
var errNotFound = errors.New("not found")

func rpcCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Batched JSON-RPC queries against the configured node",
		Long: `Every subcommand sends its calls as one JSON-RPC batch to NODE_URL.

Examples:
  extools rpc token 0xCb3e9919C56efF1004E54175a01e39163a352129
  extools rpc balance 0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045
  extools rpc blocks latest 0x10d4f`,
	}

	cmd.AddCommand(rpcTokenCmd(a), rpcPairCmd(a), rpcBalanceCmd(a), rpcBlocksCmd(a), rpcReceiptsCmd(a))
	return cmd
}

func rpcTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token ADDRESS...",
		Short: "Read ERC-20 name, symbol, decimals and total supply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.engine()

			var tokens []*jsonrpc.Token
			for _, addr := range args {
				t, err := engine.TokenInfo(cmd.Context(), addr)
				if err != nil {
					return err
				}
				tokens = append(tokens, t)
			}

			if a.output == "json" {
				return printJSON(tokens)
			}
			tbl := newTable("Address", "Name", "Symbol", "Decimals", "Total Supply")
			for _, t := range tokens {
				tbl.AddRow(t.Address, t.Name, bold(t.Symbol), t.Decimals, formatUnits(t.TotalSupply, t.Decimals))
			}
			tbl.Print()
			return nil
		},
	}
}

func rpcPairCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pair ADDRESS",
		Short: "Read a Uniswap V2 style pair: tokens and reserves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.engine()
			pair, err := engine.PairInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(pair)
			}
			tbl := newTable("Pair", "Token0", "Reserve0", "Token1", "Reserve1")
			tbl.AddRow(pair.Address, pair.Token0, pair.Reserves.Reserve0, pair.Token1, pair.Reserves.Reserve1)
			tbl.Print()
			return nil
		},
	}
}

func rpcBalanceCmd(a *app) *cobra.Command {
	var native bool

	cmd := &cobra.Command{
		Use:   "balance TOKEN WALLET...",
		Short: "Read token balances of several wallets in one batch",
		Long: `Read ERC-20 balances of every WALLET. With --native the first argument is
treated as a wallet too and native balances are read at the latest block.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.engine()
			if native {
				return nativeBalances(cmd, a, engine, args)
			}
			if len(args) < 2 {
				return fmt.Errorf("need a token and at least one wallet")
			}

			token, err := engine.TokenInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			balances, errs, err := engine.Balances(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}

			if a.output == "json" {
				out := make(map[string]string, len(balances))
				for i, w := range args[1:] {
					if errs[i] == nil {
						out[w] = balances[i].String()
					}
				}
				return printJSON(out)
			}
			tbl := newTable("Wallet", "Balance "+token.Symbol, "Error")
			for i, w := range args[1:] {
				tbl.AddRow(w, formatUnits(balances[i], token.Decimals), errText(errs[i]))
			}
			tbl.Print()
			return nil
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "Read native balances instead of a token")
	return cmd
}

func nativeBalances(cmd *cobra.Command, a *app, engine *jsonrpc.Engine, wallets []string) error {
	var b jsonrpc.Batch
	for _, w := range wallets {
		b.Add(jsonrpc.GetBalance(w, types.BlockLatest))
	}
	results, err := engine.ExecuteBatch(cmd.Context(), &b)
	if err != nil {
		return err
	}

	out := make(map[string]string, len(results))
	tbl := newTable("Wallet", "Balance", "Error")
	for i, r := range results {
		v, err := r.Int()
		if err == nil {
			out[wallets[i]] = v.String()
		}
		tbl.AddRow(wallets[i], formatUnits(v, 18), errText(err))
	}

	if a.output == "json" {
		return printJSON(out)
	}
	tbl.Print()
	return nil
}

func rpcBlocksCmd(a *app) *cobra.Command {
	var fullTx bool

	cmd := &cobra.Command{
		Use:   "blocks BLOCK...",
		Short: "Fetch blocks by hash, hex number or tag in one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b jsonrpc.Batch
			for _, id := range args {
				if len(id) == 66 && strings.HasPrefix(id, "0x") {
					b.Add(jsonrpc.BlockByHash(id, fullTx))
				} else {
					b.Add(jsonrpc.BlockByNumber(id, fullTx))
				}
			}

			results, err := a.engine().ExecuteBatch(cmd.Context(), &b)
			if err != nil {
				return err
			}

			blocks := make([]*jsonrpc.Block, len(results))
			errs := make([]error, len(results))
			for i, r := range results {
				var blk jsonrpc.Block
				switch errs[i] = r.Into(&blk); {
				case errs[i] != nil:
				case blk.Hash == "":
					errs[i] = errNotFound
				default:
					blocks[i] = &blk
				}
			}

			if a.output == "json" {
				return printJSON(blocks)
			}
			tbl := newTable("Block", "Number", "Hash", "Time", "Txs", "Gas Used", "Error")
			for i, blk := range blocks {
				if blk == nil {
					tbl.AddRow(args[i], "", "", "", "", "", errText(errs[i]))
					continue
				}
				ts := time.Unix(int64(blk.Timestamp), 0).UTC().Format(time.RFC3339)
				tbl.AddRow(args[i], uint64(blk.Number), blk.Hash, ts, len(blk.Transactions), uint64(blk.GasUsed), "")
			}
			tbl.Print()
			return nil
		},
	}
	cmd.Flags().BoolVar(&fullTx, "full", false, "Include full transaction objects")
	return cmd
}

func rpcReceiptsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipts TXHASH...",
		Short: "Fetch transaction receipts in one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b jsonrpc.Batch
			for _, h := range args {
				b.Add(jsonrpc.TransactionReceipt(h))
			}

			results, err := a.engine().ExecuteBatch(cmd.Context(), &b)
			if err != nil {
				return err
			}

			receipts := make([]*jsonrpc.Receipt, len(results))
			tbl := newTable("Tx", "Block", "Status", "Gas Used", "Logs", "Error")
			for i, r := range results {
				var rc jsonrpc.Receipt
				if err := r.Into(&rc); err != nil || rc.TxHash == "" {
					if err == nil {
						err = errNotFound
					}
					tbl.AddRow(args[i], "", "", "", "", errText(err))
					continue
				}
				receipts[i] = &rc
				status := green("success")
				if !rc.Succeeded() {
					status = red("reverted")
				}
				tbl.AddRow(rc.TxHash, uint64(rc.BlockNumber), status, uint64(rc.GasUsed), len(rc.Logs), "")
			}

			if a.output == "json" {
				return printJSON(receipts)
			}
			tbl.Print()
			return nil
		},
	}
}
