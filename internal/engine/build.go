package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// buildStep executes one build-phase iteration for a market: discover it if
// new, respect the trade cadence, rebalance momentum, size and place the
// tick's trades, and grow the target once both sides are ~filled.
func (e *Engine) buildStep(rec registry.MarketRecord, now time.Time) {
	if rec.Up.TokenID == "" || rec.Down.TokenID == "" {
		return
	}
	if rec.Up.Price <= 0 || rec.Down.Price <= 0 {
		return
	}

	st, ok := e.states[rec.Key]
	if !ok {
		st = e.discover(rec, now)
		if st == nil {
			return
		}
	}
	if st.phase != phaseBuilding {
		return
	}

	st.lastPriceUp = rec.Up.Price
	st.lastPriceDown = rec.Down.Price

	e.rebalanceMomentum(st, now)

	if now.Before(st.nextTradeAt) {
		return
	}

	trades := e.sizeTrades(st, rec, now)
	if len(trades) == 0 {
		return
	}

	notional := 0.0
	for _, t := range trades {
		notional += t.Notional
	}
	if allowed, reason := e.book.CanTrade(rec.Key, notional); !allowed {
		slog.Debug("engine: capacity rejection", "key", rec.Key, "reason", reason)
		return
	}

	for _, t := range trades {
		if err := e.book.RecordTrade(t); err != nil {
			slog.Warn("engine: build trade rejected", "key", rec.Key, "err", err)
			continue
		}
		if t.Outcome == domain.OutcomeUp {
			st.investedUp += t.Notional
		} else {
			st.investedDown += t.Notional
		}
		st.tradeCount++
		slog.Debug("engine: build trade",
			"key", rec.Key,
			"side", t.Outcome,
			"shares", fmt.Sprintf("%.1f", t.Shares),
			"price", fmt.Sprintf("%.3f", t.Price),
			"notional", dollars(t.Notional),
			"momentum", fmt.Sprintf("%+.2f", st.momentum),
		)
	}

	st.nextTradeAt = now.Add(domain.PickTradeDelay(e.rng))
	e.growTarget(st)
}

// discover initializes the build state for a newly usable market: computes
// the target allocation and the UP/DOWN split. Markets whose target falls
// below the configured minimum are abandoned.
func (e *Engine) discover(rec registry.MarketRecord, now time.Time) *buildState {
	target := math.Min(e.cfg.PerAssetCap, e.book.AvailableCapital()*e.cfg.Aggressiveness)
	if target < e.cfg.MinPositionUSD {
		e.states[rec.Key] = &buildState{key: rec.Key, conditionID: rec.ConditionID, phase: phaseAbandoned}
		slog.Debug("engine: market below minimum position size",
			"key", rec.Key, "target", dollars(target), "min", dollars(e.cfg.MinPositionUSD))
		return nil
	}

	splitUp := clamp(0.5+e.splitOffset, 0.5-e.cfg.SplitVariance, 0.5+e.cfg.SplitVariance)

	st := &buildState{
		key:               rec.Key,
		conditionID:       rec.ConditionID,
		phase:             phaseBuilding,
		targetUp:          target * splitUp,
		targetDown:        target * (1 - splitUp),
		startPriceUp:      rec.Up.Price,
		startPriceDown:    rec.Down.Price,
		lastPriceUp:       rec.Up.Price,
		lastPriceDown:     rec.Down.Price,
		nextTradeAt:       now,
		lastMomentumCheck: now,
		startedAt:         now,
	}
	e.states[rec.Key] = st

	slog.Info("engine: building position",
		"market", domain.TruncateTitle(rec.Name, rec.Key, 40),
		"key", rec.Key,
		"target", dollars(target),
		"split", fmt.Sprintf("%.0f/%.0f", splitUp*100, (1-splitUp)*100),
		"priceUp", fmt.Sprintf("%.3f", rec.Up.Price),
		"priceDown", fmt.Sprintf("%.3f", rec.Down.Price),
	)
	return st
}

// rebalanceMomentum compares current prices to the prices recorded when the
// build started and sets a signed bias proportional to the move, clamped to
// ±1. Positive favors UP.
func (e *Engine) rebalanceMomentum(st *buildState, now time.Time) {
	if now.Sub(st.lastMomentumCheck) < e.cfg.MomentumInterval {
		return
	}
	st.lastMomentumCheck = now

	moveUp := st.lastPriceUp - st.startPriceUp
	moveDown := st.lastPriceDown - st.startPriceDown
	if math.Abs(moveUp) < e.cfg.MomentumThreshold && math.Abs(moveDown) < e.cfg.MomentumThreshold {
		return
	}

	bias := clamp((moveUp-moveDown)/2*e.cfg.MomentumGain, -1, 1)
	if bias != st.momentum {
		slog.Debug("engine: momentum rebalanced",
			"key", st.key,
			"moveUp", fmt.Sprintf("%+.3f", moveUp),
			"bias", fmt.Sprintf("%+.2f", bias),
		)
	}
	st.momentum = bias
}

// sizeTrades produces this tick's candidate trades. Sizes come from the
// weighted share table with the momentum bias applied multiplicatively;
// each candidate is capped to the remaining gap to its side's target, and a
// joint two-sided trade that would exceed available capital is scaled down
// proportionally. Sub-minimum candidates are discarded, not rounded up.
func (e *Engine) sizeTrades(st *buildState, rec registry.MarketRecord, now time.Time) []domain.PaperTrade {
	candidates := make(map[domain.Outcome]domain.PaperTrade)
	for _, side := range []domain.Outcome{domain.OutcomeUp, domain.OutcomeDown} {
		price := rec.Up.Price
		factor := 1 + 0.5*st.momentum
		if side == domain.OutcomeDown {
			price = rec.Down.Price
			factor = 1 - 0.5*st.momentum
		}

		gap := st.target(side) - st.invested(side)
		if gap <= 0 {
			continue
		}

		shares := domain.PickTradeShares(e.rng) * factor
		if shares*price > gap {
			shares = gap / price
		}
		if shares < e.cfg.MinTradeShares {
			continue
		}

		candidates[side] = domain.PaperTrade{
			Key:        st.key,
			MarketName: rec.Name,
			Outcome:    side,
			Shares:     shares,
			Price:      price,
			Notional:   shares * price,
			Phase:      domain.PhaseBuild,
			Timestamp:  now,
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var trades []domain.PaperTrade
	up, hasUp := candidates[domain.OutcomeUp]
	down, hasDown := candidates[domain.OutcomeDown]
	switch {
	case hasUp && hasDown:
		// Single-sided roughly half the time, with the side choice biased
		// by momentum; otherwise trade both legs together.
		if e.rng.Float64() < 0.5 {
			pUp := clamp(0.5+0.5*st.momentum, 0.05, 0.95)
			if e.rng.Float64() < pUp {
				trades = []domain.PaperTrade{up}
			} else {
				trades = []domain.PaperTrade{down}
			}
		} else {
			trades = []domain.PaperTrade{up, down}
		}
	case hasUp:
		trades = []domain.PaperTrade{up}
	default:
		trades = []domain.PaperTrade{down}
	}

	return e.capToCapital(trades)
}

// capToCapital scales candidate trades down proportionally when their joint
// notional exceeds available capital, re-applying the minimum share filter.
func (e *Engine) capToCapital(trades []domain.PaperTrade) []domain.PaperTrade {
	total := 0.0
	for _, t := range trades {
		total += t.Notional
	}
	available := e.book.AvailableCapital()
	if total <= available {
		return trades
	}
	if available <= 0 {
		return nil
	}

	scale := available / total
	out := trades[:0]
	for _, t := range trades {
		t.Shares *= scale
		t.Notional = t.Shares * t.Price
		if t.Shares < e.cfg.MinTradeShares {
			continue
		}
		out = append(out, t)
	}
	return out
}

// growTarget bumps both targets by the growth factor once each side has
// reached the hit fraction. The strategy keeps accumulating for as long as
// the market stays open.
func (e *Engine) growTarget(st *buildState) {
	if st.investedUp < st.targetUp*e.cfg.TargetHitFraction ||
		st.investedDown < st.targetDown*e.cfg.TargetHitFraction {
		return
	}
	st.targetUp *= e.cfg.TargetGrowth
	st.targetDown *= e.cfg.TargetGrowth
	slog.Debug("engine: target grown",
		"key", st.key,
		"targetUp", dollars(st.targetUp),
		"targetDown", dollars(st.targetDown),
	)
}
