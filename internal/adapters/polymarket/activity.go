package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
)

const (
	activityPageSize = 100
	activityMaxPages = 5
)

// apiActivity es una entrada del feed /activity del Data API.
// Los campos numéricos llegan a veces como strings, por eso json.Number.
type apiActivity struct {
	TransactionHash string      `json:"transactionHash"`
	Timestamp       json.Number `json:"timestamp"`
	ConditionID     string      `json:"conditionId"`
	Type            string      `json:"type"`
	Size            json.Number `json:"size"`
	UsdcSize        json.Number `json:"usdcSize"`
	Price           json.Number `json:"price"`
	Asset           string      `json:"asset"`
	Side            string      `json:"side"`
	OutcomeIndex    *int        `json:"outcomeIndex"`
	Outcome         string      `json:"outcome"`
	Title           string      `json:"title"`
	Slug            string      `json:"slug"`
	EndDate         json.Number `json:"endDate"`
	ProxyWallet     string      `json:"proxyWallet"`
}

// FetchActivity trae la actividad reciente de una wallet, paginando
// hasta activityMaxPages. Solo devuelve entradas de tipo TRADE.
func (c *Client) FetchActivity(ctx context.Context, wallet string) ([]domain.WalletActivity, error) {
	var all []domain.WalletActivity
	for page := 0; page < activityMaxPages; page++ {
		endpoint := fmt.Sprintf("%s/activity?user=%s&limit=%d&offset=%d",
			c.dataBase, url.QueryEscape(wallet), activityPageSize, page*activityPageSize)

		var batch []apiActivity
		if err := c.get(ctx, c.dataLimiter, endpoint, &batch); err != nil {
			return nil, fmt.Errorf("polymarket.FetchActivity: %w", err)
		}

		for _, a := range batch {
			act, ok := toDomainActivity(a)
			if !ok {
				continue
			}
			all = append(all, act)
		}

		if len(batch) < activityPageSize {
			break
		}
	}
	return all, nil
}

// toDomainActivity convierte una entrada del API al modelo de dominio.
// Descarta entradas que no sean trades o con numéricos corruptos.
func toDomainActivity(a apiActivity) (domain.WalletActivity, bool) {
	if !strings.EqualFold(a.Type, "TRADE") {
		return domain.WalletActivity{}, false
	}

	ts, err := a.Timestamp.Int64()
	if err != nil {
		slog.Debug("activity: timestamp inválido", "tx", a.TransactionHash, "error", err)
		return domain.WalletActivity{}, false
	}
	size, err := a.Size.Float64()
	if err != nil {
		return domain.WalletActivity{}, false
	}
	price, err := a.Price.Float64()
	if err != nil {
		return domain.WalletActivity{}, false
	}
	usdc, err := a.UsdcSize.Float64()
	if err != nil {
		usdc = size * price
	}

	// endDate es opcional en el feed.
	var endDate time.Time
	if a.EndDate != "" {
		if v, err := a.EndDate.Int64(); err == nil && v > 0 {
			endDate = time.Unix(v, 0).UTC()
		}
	}

	idx := -1
	if a.OutcomeIndex != nil {
		idx = *a.OutcomeIndex
	}

	side := domain.SideBuy
	if strings.EqualFold(a.Side, "SELL") {
		side = domain.SideSell
	}

	return domain.WalletActivity{
		TransactionHash: a.TransactionHash,
		Timestamp:       time.Unix(ts, 0).UTC(),
		ConditionID:     a.ConditionID,
		Slug:            a.Slug,
		Title:           a.Title,
		OutcomeIndex:    idx,
		OutcomeText:     a.Outcome,
		Asset:           a.Asset,
		Size:            size,
		Price:           price,
		UsdcSize:        usdc,
		Side:            side,
		EndDate:         endDate,
		ProxyWallet:     a.ProxyWallet,
	}, true
}
