package jsonrpc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/yourorg/extools/internal/types"
)

// Canonical signatures of the contract methods with a builder
const (
	SigToken0      = "token0()"
	SigToken1      = "token1()"
	SigSymbol      = "symbol()"
	SigName        = "name()"
	SigDecimals    = "decimals()"
	SigTotalSupply = "totalSupply()"
	SigBalanceOf   = "balanceOf(address)"
	SigGetReserves = "getReserves()"
)

// ethCall builds an eth_call against the latest block. Each word is appended
// to the selector as an ABI-encoded argument.
func ethCall(contract, signature string, returns ReturnKind, words ...[]byte) (Call, error) {
	to, err := types.ParseAddress(contract)
	if err != nil {
		return Call{}, err
	}

	data := types.Selector(signature)
	for _, w := range words {
		data = append(data, w...)
	}

	return Call{
		Method:  "eth_call",
		Params:  []any{CallArgs{To: to, Data: hexutil.Encode(data)}, types.BlockLatest},
		Returns: returns,
	}, nil
}

// Token0 reads the first token of a pair
func Token0(pair string) (Call, error) {
	return ethCall(pair, SigToken0, ReturnAddress)
}

// Token1 reads the second token of a pair
func Token1(pair string) (Call, error) {
	return ethCall(pair, SigToken1, ReturnAddress)
}

// Symbol reads an ERC-20 symbol
func Symbol(contract string) (Call, error) {
	return ethCall(contract, SigSymbol, ReturnString)
}

// Name reads an ERC-20 name
func Name(contract string) (Call, error) {
	return ethCall(contract, SigName, ReturnString)
}

// Decimals reads an ERC-20 decimals value
func Decimals(contract string) (Call, error) {
	return ethCall(contract, SigDecimals, ReturnInt)
}

// TotalSupply reads an ERC-20 total supply
func TotalSupply(contract string) (Call, error) {
	return ethCall(contract, SigTotalSupply, ReturnInt)
}

// BalanceOf reads the token balance of wallet
func BalanceOf(contract, wallet string) (Call, error) {
	owner, err := types.ParseAddress(wallet)
	if err != nil {
		return Call{}, err
	}
	return ethCall(contract, SigBalanceOf, ReturnInt, owner.Word())
}

// GetReserves reads reserve0 and reserve1 of a pair
func GetReserves(pair string) (Call, error) {
	return ethCall(pair, SigGetReserves, ReturnReserves)
}

// GetBalance reads the native balance of wallet at block (a tag or hex number)
func GetBalance(wallet, block string) (Call, error) {
	addr, err := types.ParseAddress(wallet)
	if err != nil {
		return Call{}, err
	}
	if block == "" {
		block = types.BlockLatest
	}
	return Call{Method: "eth_getBalance", Params: []any{addr, block}, Returns: ReturnInt}, nil
}

// BlockNumber reads the height of the chain head
func BlockNumber() Call {
	return Call{Method: "eth_blockNumber", Params: []any{}, Returns: ReturnInt}
}

// TransactionReceipt fetches a receipt; decode it with Result.Into(&Receipt{})
func TransactionReceipt(txHash string) (Call, error) {
	h, err := types.ParseHash(txHash)
	if err != nil {
		return Call{}, err
	}
	return Call{Method: "eth_getTransactionReceipt", Params: []any{h}, Returns: ReturnRaw}, nil
}

// BlockByHash fetches a block; decode it with Result.Into(&Block{})
func BlockByHash(blockHash string, fullTx bool) (Call, error) {
	h, err := types.ParseHash(blockHash)
	if err != nil {
		return Call{}, err
	}
	return Call{Method: "eth_getBlockByHash", Params: []any{h, fullTx}, Returns: ReturnRaw}, nil
}

// BlockByNumber fetches a block by tag or hex number
func BlockByNumber(block string, fullTx bool) (Call, error) {
	if !types.IsBlockTag(block) {
		if _, err := hexutil.DecodeUint64(block); err != nil {
			return Call{}, fmt.Errorf("invalid block identifier %q: %w", block, err)
		}
	}
	return Call{Method: "eth_getBlockByNumber", Params: []any{block, fullTx}, Returns: ReturnRaw}, nil
}

// NewFilter installs a log filter; the result is the filter id as a JSON string
func NewFilter(q FilterQuery) (Call, error) {
	addrs := make([]types.Address, 0, len(q.Address))
	for _, a := range q.Address {
		parsed, err := types.ParseAddress(string(a))
		if err != nil {
			return Call{}, err
		}
		addrs = append(addrs, parsed)
	}
	q.Address = addrs
	return Call{Method: "eth_newFilter", Params: []any{q}, Returns: ReturnRaw}, nil
}

// FilterLogs returns every log matching an installed filter
func FilterLogs(filterID string) Call {
	return Call{Method: "eth_getFilterLogs", Params: []any{filterID}, Returns: ReturnRaw}
}

// FilterChanges returns logs matching an installed filter since the last poll
func FilterChanges(filterID string) Call {
	return Call{Method: "eth_getFilterChanges", Params: []any{filterID}, Returns: ReturnRaw}
}
