package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newTable(columns ...interface{}) table.Table {
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	return table.New(columns...).WithHeaderFormatter(headerFmt).WithWriter(os.Stdout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatUnits renders an integer token amount with decimals, trimming trailing zeros
func formatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "-"
	}
	if decimals == 0 {
		return v.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(v, scale).FloatString(int(decimals))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func formatUSD(v float64) string {
	switch {
	case v == 0:
		return "-"
	case v < 0.01:
		return fmt.Sprintf("$%.8g", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

func formatConfidence(score float64) string {
	s := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 0.8:
		return green(s)
	case score >= 0.5:
		return yellow(s)
	default:
		return red(s)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return red(err.Error())
}
