package solana

import (
	"context"
	"fmt"
)

// CountHoldings returns how many assets of the given collection the wallet
// holds, via the DAS searchAssets index. Callers treat an error as zero
// holdings (fail closed). Concurrent queries for the same wallet and
// collection collapse into one RPC round trip; free-vote bursts hit this
// hard.
func (c *RPCClient) CountHoldings(ctx context.Context, wallet, collection string) (int, error) {
	key := wallet + "|" + collection

	v, err, _ := c.holderGroup.Do(key, func() (any, error) {
		var result struct {
			Total int `json:"total"`
		}
		params := map[string]any{
			"ownerAddress": wallet,
			"grouping":     []string{"collection", collection},
			"page":         1,
			"limit":        1,
		}
		if err := c.call(ctx, "searchAssets", params, &result); err != nil {
			return 0, err
		}
		return result.Total, nil
	})
	if err != nil {
		return 0, fmt.Errorf("solana: count holdings %s: %w", wallet, err)
	}
	return v.(int), nil
}
