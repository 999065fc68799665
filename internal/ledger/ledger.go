package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrUnknownMarket means resolve/void was called for a key with no open
	// position. This is a coordination bug between engine and ledger, not a
	// retryable condition.
	ErrUnknownMarket = errors.New("ledger: no open position for market")
	// ErrInvalidTrade means the trade failed validation (shares or price out
	// of range).
	ErrInvalidTrade = errors.New("ledger: invalid trade")
	// ErrInsufficientCapital means the trade's notional exceeds available
	// capital. The caller should have pre-checked via CanTrade.
	ErrInsufficientCapital = errors.New("ledger: insufficient capital")
)

// Config holds the capital limits enforced by CanTrade.
type Config struct {
	StartingCapital      float64
	PerMarketCap         float64 // ceiling on total invested in one market
	MaxConcurrentMarkets int     // enforced only when opening a new market
	MaxDeployedFraction  float64 // of starting capital, across all markets
}

// Ledger owns the simulated positions, the resolved-market archive, and the
// capital counter. All mutation happens on the bot's poll loop goroutine.
type Ledger struct {
	cfg        Config
	available  float64
	open       map[domain.MarketKey]*domain.PaperMarketPosition
	archive    []domain.ResolvedMarket
	tradesUp   int
	tradesDown int

	tradeListeners      []func(domain.PaperTrade)
	resolutionListeners []func(domain.ResolvedMarket)
}

// New creates a ledger with the full starting capital available.
func New(cfg Config) *Ledger {
	return &Ledger{
		cfg:       cfg,
		available: cfg.StartingCapital,
		open:      make(map[domain.MarketKey]*domain.PaperMarketPosition),
	}
}

// OnTrade registers a listener for every applied simulated trade.
func (l *Ledger) OnTrade(fn func(domain.PaperTrade)) {
	l.tradeListeners = append(l.tradeListeners, fn)
}

// OnResolution registers a listener for every settled market.
func (l *Ledger) OnResolution(fn func(domain.ResolvedMarket)) {
	l.resolutionListeners = append(l.resolutionListeners, fn)
}

// RecordTrade applies a simulated buy: appends it to the market's history,
// updates the side's running weighted-average price, and debits available
// capital by the notional. The debit is atomic: a rejected trade leaves
// capital untouched. The first trade for a key opens the position.
func (l *Ledger) RecordTrade(trade domain.PaperTrade) error {
	if trade.Shares <= 0 || trade.Price <= 0 || trade.Price > 1 {
		return fmt.Errorf("%w: shares=%.4f price=%.4f", ErrInvalidTrade, trade.Shares, trade.Price)
	}
	if trade.Notional <= 0 {
		trade.Notional = trade.Shares * trade.Price
	}
	if trade.Notional > l.available {
		return fmt.Errorf("%w: need $%.2f, have $%.2f", ErrInsufficientCapital, trade.Notional, l.available)
	}

	pos, ok := l.open[trade.Key]
	if !ok {
		pos = &domain.PaperMarketPosition{
			Key:      trade.Key,
			Name:     trade.MarketName,
			OpenedAt: trade.Timestamp,
		}
		l.open[trade.Key] = pos
	}

	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}

	side := pos.Side(trade.Outcome)
	side.TotalCost += trade.Notional
	side.Shares += trade.Shares
	side.TradeCount++
	if side.FirstTrade.IsZero() {
		side.FirstTrade = trade.Timestamp
	}
	side.LastTrade = trade.Timestamp

	trade.RunningAvg = side.AveragePrice()
	pos.Trades = append(pos.Trades, trade)
	l.available -= trade.Notional
	if trade.Outcome == domain.OutcomeUp {
		l.tradesUp++
	} else {
		l.tradesDown++
	}

	for _, fn := range l.tradeListeners {
		fn(trade)
	}
	return nil
}

// CanTrade is the composite guard the engine consults before sizing a trade.
// It returns whether a further investment of amount into key is allowed and
// a human-readable reason when it isn't. Checks run in order: available
// capital, per-market cap, max concurrent open markets (new markets only),
// and max deployed fraction of starting capital.
func (l *Ledger) CanTrade(key domain.MarketKey, amount float64) (bool, string) {
	if amount > l.available {
		return false, fmt.Sprintf("insufficient capital: need $%.2f, available $%.2f", amount, l.available)
	}

	var invested float64
	pos, exists := l.open[key]
	if exists {
		invested = pos.TotalInvested()
	}
	if l.cfg.PerMarketCap > 0 && invested+amount > l.cfg.PerMarketCap {
		return false, fmt.Sprintf("per-market cap: $%.2f invested + $%.2f > cap $%.2f", invested, amount, l.cfg.PerMarketCap)
	}

	if !exists && l.cfg.MaxConcurrentMarkets > 0 && len(l.open) >= l.cfg.MaxConcurrentMarkets {
		return false, fmt.Sprintf("max concurrent markets: %d open", len(l.open))
	}

	if l.cfg.MaxDeployedFraction > 0 {
		deployed := l.totalInvested()
		limit := l.cfg.StartingCapital * l.cfg.MaxDeployedFraction
		if deployed+amount > limit {
			return false, fmt.Sprintf("max deployment: $%.2f deployed + $%.2f > %.0f%% of $%.2f",
				deployed, amount, l.cfg.MaxDeployedFraction*100, l.cfg.StartingCapital)
		}
	}

	return true, ""
}

// ResolveMarket settles an open position: the winning side's shares pay
// $1.00 each, the losing side pays zero. The payout is credited back to
// available capital exactly once and the position moves to the immutable
// archive, stamped with the settlement time. A second call for the same key
// fails without touching capital.
func (l *Ledger) ResolveMarket(key domain.MarketKey, winner domain.Outcome, finalUp, finalDown float64, now time.Time) (*domain.ResolvedMarket, error) {
	pos, ok := l.open[key]
	if !ok {
		slog.Warn("ledger: resolve for unknown market", "key", key)
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, key)
	}

	payout := pos.Side(winner).Shares * 1.0
	invested := pos.TotalInvested()
	realized := payout - invested
	pct := 0.0
	if invested > 0 {
		pct = realized / invested * 100
	}

	resolved := domain.ResolvedMarket{
		Key:            key,
		Name:           pos.Name,
		InvestedUp:     pos.Up.TotalCost,
		InvestedDown:   pos.Down.TotalCost,
		SharesUp:       pos.Up.Shares,
		SharesDown:     pos.Down.Shares,
		FinalPriceUp:   finalUp,
		FinalPriceDown: finalDown,
		Winner:         winner,
		Payout:         payout,
		RealizedPnL:    realized,
		RealizedPnLPct: pct,
		ResolvedAt:     now,
	}

	l.available += payout
	l.archive = append(l.archive, resolved)
	delete(l.open, key)

	for _, fn := range l.resolutionListeners {
		fn(resolved)
	}
	return &resolved, nil
}

// VoidMarket reclaims capital for a market that vanished without terminal
// prices: the invested cost is refunded and the position is archived with
// zero PnL and the Voided flag set.
func (l *Ledger) VoidMarket(key domain.MarketKey, now time.Time) (*domain.ResolvedMarket, error) {
	pos, ok := l.open[key]
	if !ok {
		slog.Warn("ledger: void for unknown market", "key", key)
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, key)
	}

	invested := pos.TotalInvested()
	resolved := domain.ResolvedMarket{
		Key:          key,
		Name:         pos.Name,
		InvestedUp:   pos.Up.TotalCost,
		InvestedDown: pos.Down.TotalCost,
		SharesUp:     pos.Up.Shares,
		SharesDown:   pos.Down.Shares,
		Payout:       invested,
		Voided:       true,
		ResolvedAt:   now,
	}

	l.available += invested
	l.archive = append(l.archive, resolved)
	delete(l.open, key)

	for _, fn := range l.resolutionListeners {
		fn(resolved)
	}
	slog.Info("ledger: voided vanished market", "key", key, "refunded", fmt.Sprintf("$%.2f", invested))
	return &resolved, nil
}

// AvailableCapital returns the current free capital.
func (l *Ledger) AvailableCapital() float64 {
	return l.available
}

// Position returns a copy of the open position for key.
func (l *Ledger) Position(key domain.MarketKey) (domain.PaperMarketPosition, bool) {
	pos, ok := l.open[key]
	if !ok {
		return domain.PaperMarketPosition{}, false
	}
	return *pos, true
}

// ActivePositions returns copies of all open positions in stable key order.
func (l *Ledger) ActivePositions() []domain.PaperMarketPosition {
	out := make([]domain.PaperMarketPosition, 0, len(l.open))
	for _, pos := range l.open {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ResolvedMarkets returns the archive in settlement order.
func (l *Ledger) ResolvedMarkets() []domain.ResolvedMarket {
	out := make([]domain.ResolvedMarket, len(l.archive))
	copy(out, l.archive)
	return out
}

// Stats computes the aggregate view of the simulation.
func (l *Ledger) Stats() domain.LedgerStats {
	stats := domain.LedgerStats{
		StartingCapital:  l.cfg.StartingCapital,
		AvailableCapital: l.available,
		TotalInvested:    l.totalInvested(),
		TradesUp:         l.tradesUp,
		TradesDown:       l.tradesDown,
	}
	for _, r := range l.archive {
		if r.Voided {
			stats.VoidedMarkets++
			continue
		}
		stats.SettledMarkets++
		stats.RealizedPnL += r.RealizedPnL
		if r.Won() {
			stats.Wins++
		}
	}
	if stats.SettledMarkets > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.SettledMarkets)
	}
	stats.TotalTrades = stats.TradesUp + stats.TradesDown
	return stats
}

func (l *Ledger) totalInvested() float64 {
	total := 0.0
	for _, pos := range l.open {
		total += pos.TotalInvested()
	}
	return total
}
