package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/extools/internal/cache"
)

func cacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the Redis quote cache",
		Long: `Keys look like quote:chain:alvey:token:0xcb3e...: and are matched by field.

Examples:
  extools cache find chain=alvey
  extools cache find chain=ethereum token=0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48
  extools cache clear`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if a.cfg.Redis.Addr == "" {
				return errors.New("REDIS_ADDR is not set")
			}
			return nil
		},
	}
	cmd.AddCommand(cacheFindCmd(a), cacheClearCmd(a))
	return cmd
}

func parseFields(args []string) ([]cache.Field, error) {
	fields := make([]cache.Field, len(args))
	for i, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("field %q is not name=value", arg)
		}
		fields[i] = cache.F(k, v)
	}
	return fields, nil
}

func cacheFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find NAME=VALUE...",
		Short: "List cached entries whose keys contain every field",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args)
			if err != nil {
				return err
			}

			store := cache.New(a.cfg.Redis)
			defer store.Close()

			docs, err := store.FindAll(cmd.Context(), fields...)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(docs)
			}
			keys := make([]string, 0, len(docs))
			for k := range docs {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			tbl := newTable("Key", "Chain", "Token", "Bytes")
			for _, k := range keys {
				chain, _ := cache.Extract(k, "chain")
				token, _ := cache.Extract(k, "token")
				tbl.AddRow(k, chain, token, len(docs[k]))
			}
			tbl.Print()
			return nil
		},
	}
}

func cacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every key under REDIS_PREFIX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := cache.New(a.cfg.Redis)
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(green("cache cleared"))
			return nil
		},
	}
}
