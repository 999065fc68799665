package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// enterArbitrageWindow handles a market inside the expiration window: the
// build phase is finalized (one-way) and the expiration arbitrage gets one
// shot per settlement cycle.
func (e *Engine) enterArbitrageWindow(rec registry.MarketRecord, end, now time.Time) {
	st, ok := e.states[rec.Key]
	if !ok {
		st = &buildState{
			key:           rec.Key,
			conditionID:   rec.ConditionID,
			phase:         phaseArbitrage,
			lastPriceUp:   rec.Up.Price,
			lastPriceDown: rec.Down.Price,
		}
		e.states[rec.Key] = st
	}
	if st.phase == phaseBuilding {
		st.phase = phaseArbitrage
		slog.Info("engine: build finalized, entering expiration window",
			"key", rec.Key,
			"investedUp", dollars(st.investedUp),
			"investedDown", dollars(st.investedDown),
			"trades", st.tradeCount,
			"expiresIn", end.Sub(now).Round(time.Second),
		)
	}

	e.executeArbitrageTrade(st, rec, end, now)
}

// executeArbitrageTrade buys the cheap losing side when one outcome is
// already clear near expiry. A composite market+expiry-minute key prevents
// firing twice for the same settlement cycle. When neither side clears the
// threshold the outcome is still contested and the engine does nothing:
// the accumulated position rides to settlement.
func (e *Engine) executeArbitrageTrade(st *buildState, rec registry.MarketRecord, end, now time.Time) {
	cycle := arbCycleKey(rec, end)
	if e.arbFired[cycle] {
		return
	}

	priceUp, priceDown := rec.Up.Price, rec.Down.Price
	if priceUp <= 0 || priceDown <= 0 {
		return
	}

	var cheapSide domain.Outcome
	var cheapPrice float64
	switch {
	case priceUp >= e.cfg.ArbClearThreshold:
		cheapSide, cheapPrice = domain.OutcomeDown, priceDown
	case priceDown >= e.cfg.ArbClearThreshold:
		cheapSide, cheapPrice = domain.OutcomeUp, priceUp
	default:
		// Outcome contested: do nothing, on purpose.
		return
	}

	if cheapPrice <= e.cfg.ArbMinLoserPrice || cheapPrice > e.cfg.ArbMaxLoserPrice {
		return
	}
	if e.book.AvailableCapital() < e.cfg.ArbMinCapital {
		return
	}

	notional := e.cfg.ArbMaxNotional
	if notional > e.book.AvailableCapital() {
		notional = e.book.AvailableCapital()
	}
	shares := notional / cheapPrice
	if shares < e.cfg.MinTradeShares {
		return
	}

	if allowed, reason := e.book.CanTrade(rec.Key, notional); !allowed {
		slog.Debug("engine: arbitrage blocked", "key", rec.Key, "reason", reason)
		return
	}

	trade := domain.PaperTrade{
		Key:        rec.Key,
		MarketName: rec.Name,
		Outcome:    cheapSide,
		Shares:     shares,
		Price:      cheapPrice,
		Notional:   notional,
		Phase:      domain.PhaseArbitrage,
		Timestamp:  now,
	}
	if err := e.book.RecordTrade(trade); err != nil {
		slog.Warn("engine: arbitrage trade rejected", "key", rec.Key, "err", err)
		return
	}

	e.arbFired[cycle] = true
	st.tradeCount++
	slog.Info("engine: expiration arbitrage",
		"market", domain.TruncateTitle(rec.Name, rec.Key, 40),
		"side", cheapSide,
		"price", fmt.Sprintf("%.3f", cheapPrice),
		"shares", fmt.Sprintf("%.0f", shares),
		"notional", dollars(notional),
		"clearSide", cheapSide.Other(),
	)
}

// arbCycleKey builds the double-fire guard key: market identity plus the
// expiry rounded to the minute.
func arbCycleKey(rec registry.MarketRecord, end time.Time) string {
	id := rec.ConditionID
	if id == "" {
		id = string(rec.Key)
	}
	return fmt.Sprintf("%s@%d", id, end.Truncate(time.Minute).Unix())
}
