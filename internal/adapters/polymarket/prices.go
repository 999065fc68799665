package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// midpointResponse es la respuesta de /midpoint del CLOB.
type midpointResponse struct {
	Mid json.Number `json:"mid"`
}

// FetchMidpoint devuelve el midpoint del CLOB para un token.
// ok=false cuando el CLOB no tiene libro para ese token.
func (c *Client) FetchMidpoint(ctx context.Context, tokenID string) (float64, bool, error) {
	if tokenID == "" {
		return 0, false, nil
	}
	endpoint := fmt.Sprintf("%s/midpoint?token_id=%s", c.clobBase, url.QueryEscape(tokenID))

	var resp midpointResponse
	if err := c.get(ctx, c.clobLimiter, endpoint, &resp); err != nil {
		return 0, false, fmt.Errorf("polymarket.FetchMidpoint: %w", err)
	}

	mid, err := resp.Mid.Float64()
	if err != nil || mid <= 0 || mid >= 1 {
		return 0, false, nil
	}
	return mid, true, nil
}
