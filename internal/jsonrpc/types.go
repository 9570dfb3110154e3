// Package jsonrpc batches Ethereum JSON-RPC calls into a single HTTP request
// and decodes each result according to the return shape of the call.
package jsonrpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/yourorg/extools/internal/types"
)

// Version is the JSON-RPC protocol version sent with every request
const Version = "2.0"

// Request is a single JSON-RPC 2.0 request object
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Response is a single JSON-RPC 2.0 response object. Requests always carry
// string ids; an id of any other JSON type is kept in RawID and ID stays empty.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	RawID   json.RawMessage `json:"-"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (r *Response) UnmarshalJSON(b []byte) error {
	type plain Response
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Response(aux.plain)
	r.ID, r.RawID = "", nil
	if len(aux.ID) == 0 {
		return nil
	}
	if aux.ID[0] == '"' {
		return json.Unmarshal(aux.ID, &r.ID)
	}
	r.RawID = aux.ID
	return nil
}

// RPCError is the error member of a JSON-RPC response
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CallArgs is the transaction object passed to eth_call
type CallArgs struct {
	To   types.Address `json:"to"`
	Data string        `json:"data"`
}

// FilterQuery is the filter object passed to eth_newFilter
type FilterQuery struct {
	FromBlock string          `json:"fromBlock,omitempty"`
	ToBlock   string          `json:"toBlock,omitempty"`
	Address   []types.Address `json:"address,omitempty"`
	Topics    [][]types.Hash  `json:"topics,omitempty"`
}

// Log is an event log as returned by eth_getFilterLogs and receipts
type Log struct {
	Address     types.Address  `json:"address"`
	Topics      []types.Hash   `json:"topics"`
	Data        string         `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	BlockHash   types.Hash     `json:"blockHash"`
	TxHash      types.Hash     `json:"transactionHash"`
	TxIndex     hexutil.Uint   `json:"transactionIndex"`
	LogIndex    hexutil.Uint   `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

// Receipt is the subset of eth_getTransactionReceipt this package reads
type Receipt struct {
	TxHash            types.Hash     `json:"transactionHash"`
	BlockHash         types.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64 `json:"blockNumber"`
	From              types.Address  `json:"from"`
	To                *types.Address `json:"to"`
	ContractAddress   *types.Address `json:"contractAddress"`
	Status            hexutil.Uint64 `json:"status"`
	GasUsed           hexutil.Uint64 `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big   `json:"effectiveGasPrice"`
	Logs              []Log          `json:"logs"`
}

// Succeeded reports whether the transaction did not revert
func (r *Receipt) Succeeded() bool { return r.Status == 1 }

// Block is the header subset of eth_getBlockByHash / eth_getBlockByNumber.
// Transactions holds hashes or full objects depending on the fullTx flag.
type Block struct {
	Number        hexutil.Uint64    `json:"number"`
	Hash          types.Hash        `json:"hash"`
	ParentHash    types.Hash        `json:"parentHash"`
	Timestamp     hexutil.Uint64    `json:"timestamp"`
	GasUsed       hexutil.Uint64    `json:"gasUsed"`
	GasLimit      hexutil.Uint64    `json:"gasLimit"`
	BaseFeePerGas *hexutil.Big      `json:"baseFeePerGas,omitempty"`
	Transactions  []json.RawMessage `json:"transactions"`
}
