package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// settle finalizes a market whose end time has passed: determines the winner
// from terminal prices, lets the ledger compute payout and realized PnL, and
// tears down the transient build state for the key.
func (e *Engine) settle(rec registry.MarketRecord, now time.Time) {
	defer func() {
		delete(e.states, rec.Key)
		e.dropArbCycles(rec.ConditionID, rec.Key)
	}()

	if _, ok := e.book.Position(rec.Key); !ok {
		return
	}

	priceUp, priceDown := rec.Up.Price, rec.Down.Price
	if priceUp <= 0 && priceDown <= 0 {
		if st, ok := e.states[rec.Key]; ok {
			priceUp, priceDown = st.lastPriceUp, st.lastPriceDown
		}
	}
	if priceUp <= 0 && priceDown <= 0 {
		if _, err := e.book.VoidMarket(rec.Key, now); err != nil {
			slog.Warn("engine: void at settlement failed", "key", rec.Key, "err", err)
		}
		return
	}

	winner := decideWinner(priceUp, priceDown, e.cfg.SettleWinThreshold)
	resolved, err := e.book.ResolveMarket(rec.Key, winner, priceUp, priceDown, now)
	if err != nil {
		slog.Warn("engine: settlement failed", "key", rec.Key, "err", err)
		return
	}

	slog.Info("engine: market settled",
		"market", domain.TruncateTitle(resolved.Name, resolved.Key, 40),
		"winner", resolved.Winner,
		"payout", dollars(resolved.Payout),
		"pnl", dollars(resolved.RealizedPnL),
		"pnlPct", fmt.Sprintf("%+.1f%%", resolved.RealizedPnLPct),
		"settledAt", now.Format(time.RFC3339),
	)
}

// decideWinner applies the settlement rule: an outcome whose terminal price
// reaches the threshold wins outright; otherwise whichever side's price is
// strictly higher wins, with UP as the final tie-break.
func decideWinner(priceUp, priceDown, threshold float64) domain.Outcome {
	switch {
	case priceUp >= threshold && priceDown < threshold:
		return domain.OutcomeUp
	case priceDown >= threshold && priceUp < threshold:
		return domain.OutcomeDown
	case priceDown > priceUp:
		return domain.OutcomeDown
	default:
		return domain.OutcomeUp
	}
}

// dropArbCycles clears double-fire guard entries for a settled market so the
// guard set stays bounded. Guard keys use the condition id when the market
// had one and the canonical key otherwise, matching arbCycleKey.
func (e *Engine) dropArbCycles(conditionID string, key domain.MarketKey) {
	id := conditionID
	if id == "" {
		id = string(key)
	}
	prefix := id + "@"
	for k := range e.arbFired {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(e.arbFired, k)
		}
	}
}
