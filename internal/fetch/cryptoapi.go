package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourorg/extools/internal/types"
)

// CryptoAPI talks to the self-hosted metadata service. It is not rate limited.
type CryptoAPI struct {
	*Client
}

func NewCryptoAPI(opts ...ClientOption) *CryptoAPI {
	return &CryptoAPI{NewClient(CryptoAPIProvider, opts...)}
}

// Chain returns the service's record for a chain id
func (c *CryptoAPI) Chain(ctx context.Context, id types.NetworkID) (json.RawMessage, error) {
	return c.Raw(ctx, fmt.Sprintf("chain/%d", id), nil)
}
