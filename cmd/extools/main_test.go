package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/jsonrpc"
	"github.com/yourorg/extools/internal/types"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	return execute(context.Background(), &app{}, envArgs(t, args...))
}

func envArgs(t *testing.T, args ...string) []string {
	return append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
}

func newNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqs []jsonrpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))

		out := make([]jsonrpc.Response, len(reqs))
		for i, req := range reqs {
			out[i] = jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID}
			switch req.Method {
			case "eth_getBlockByNumber":
				out[i].Result = json.RawMessage(fmt.Sprintf(
					`{"number":"0x10","hash":"0x%064x","parentHash":"0x%064x","timestamp":"0x6553f100","gasUsed":"0x5208","gasLimit":"0x1c9c380","transactions":[]}`, 16, 15))
			case "eth_getBalance":
				out[i].Result = json.RawMessage(`"0xde0b6b3a7640000"`)
			default:
				out[i].Error = &jsonrpc.RPCError{Code: -32601, Message: "method not found"}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("NODE_URL", srv.URL)
	return srv
}

func TestRPCBlocks(t *testing.T) {
	newNode(t)
	assert.NoError(t, run(t, "rpc", "blocks", "latest", "0x10"))
	assert.NoError(t, run(t, "-o", "json", "rpc", "blocks", "latest"))
}

func TestRPCBlocks_InvalidIdentifier(t *testing.T) {
	newNode(t)
	err := run(t, "rpc", "blocks", "yesterday")
	assert.ErrorContains(t, err, "invalid block identifier")
}

func TestRPCNativeBalance(t *testing.T) {
	newNode(t)
	assert.NoError(t, run(t, "rpc", "balance", "--native", "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"))
}

func TestRPCToken_InvalidAddress(t *testing.T) {
	newNode(t)
	err := run(t, "rpc", "token", "0x1234")
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestExecute_ClosesOnFailure(t *testing.T) {
	newNode(t)
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "extools.log"))

	closed := 0
	a := &app{closers: []func(){func() { closed++ }}}
	err := execute(context.Background(), a, envArgs(t, "rpc", "blocks", "yesterday"))
	require.Error(t, err)
	assert.Equal(t, 1, closed)
	assert.Empty(t, a.closers)

	a.close()
	assert.Equal(t, 1, closed)
}

func TestExecute_ClosesOnSuccess(t *testing.T) {
	newNode(t)

	closed := 0
	a := &app{closers: []func(){func() { closed++ }}}
	require.NoError(t, execute(context.Background(), a, envArgs(t, "rpc", "blocks", "latest")))
	assert.Equal(t, 1, closed)
}

func TestInvalidNodeURL(t *testing.T) {
	t.Setenv("NODE_URL", "ftp://node")
	assert.Error(t, run(t, "rpc", "blocks", "latest"))
}

func TestAPIGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/tokens/0xabc"), r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()
	t.Setenv("DEXSCREENER_BASE_URL", srv.URL)

	assert.NoError(t, run(t, "api", "get", "dexscreener", "/tokens/0xabc", "page=1"))
	assert.ErrorContains(t, run(t, "api", "get", "nowhere", "/x"), "unknown provider")
	assert.ErrorContains(t, run(t, "api", "get", "dexscreener", "/x", "page"), "not key=value")
}

func TestAPIPrice_UnsupportedChain(t *testing.T) {
	err := run(t, "api", "price", "--chain", "solana", "0xCb3e9919C56efF1004E54175a01e39163a352129")
	assert.ErrorContains(t, err, "solana")
}

func TestAPIPrice_UnknownMethod(t *testing.T) {
	err := run(t, "api", "price", "--method", "mode", "0xCb3e9919C56efF1004E54175a01e39163a352129")
	assert.ErrorIs(t, err, aggregate.ErrUnknownMethod)
}

func TestCache_NeedsRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	assert.ErrorContains(t, run(t, "cache", "clear"), "REDIS_ADDR")
}

func TestSelectPath(t *testing.T) {
	raw := json.RawMessage(`{"pairs":[{"dexId":"uniswap","priceUsd":"1.01"},{"dexId":"sushi","priceUsd":"0.99"}]}`)

	got, err := selectPath(raw, "pairs.0.priceUsd")
	require.NoError(t, err)
	assert.JSONEq(t, `"1.01"`, string(got))

	got, err = selectPath(raw, "pairs.#.dexId")
	require.NoError(t, err)
	assert.JSONEq(t, `["uniswap","sushi"]`, string(got))

	_, err = selectPath(raw, "pairs.5.priceUsd")
	assert.ErrorContains(t, err, "not found")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"vs_currencies=usd", "contract_addresses=0x1", "a=b=c"})
	require.NoError(t, err)
	assert.Equal(t, "usd", params.Get("vs_currencies"))
	assert.Equal(t, "b=c", params.Get("a"))

	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"chain=alvey", "token=0xabc"})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "alvey", fields[0].Value)
	assert.Equal(t, "token", fields[1].Name)

	_, err = parseFields([]string{"chain"})
	assert.Error(t, err)
}
