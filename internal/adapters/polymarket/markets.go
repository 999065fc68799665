package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// gammaMarket es la parte de la respuesta de Gamma que nos interesa.
type gammaMarket struct {
	ConditionID string `json:"conditionId"`
	EndDate     string `json:"endDate"`
	Closed      bool   `json:"closed"`
}

// FetchEndDate consulta Gamma por el endDate de un mercado.
// ok=false cuando Gamma no conoce el mercado o no publica fecha.
func (c *Client) FetchEndDate(ctx context.Context, conditionID string) (int64, bool, error) {
	if conditionID == "" {
		return 0, false, nil
	}
	endpoint := fmt.Sprintf("%s/markets?condition_ids=%s", c.gammaBase, url.QueryEscape(conditionID))

	var markets []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, endpoint, &markets); err != nil {
		return 0, false, fmt.Errorf("polymarket.FetchEndDate: %w", err)
	}
	if len(markets) == 0 || markets[0].EndDate == "" {
		return 0, false, nil
	}

	end, err := time.Parse(time.RFC3339, markets[0].EndDate)
	if err != nil {
		return 0, false, nil
	}
	return end.Unix(), true, nil
}
