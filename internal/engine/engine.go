package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/ledger"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// Config holds the strategy parameters. All thresholds come from the static
// configuration object supplied at construction.
type Config struct {
	PerAssetCap        float64       // max USD target per market
	Aggressiveness     float64       // fraction of current capital per target
	MinPositionUSD     float64       // abandon markets below this target
	SplitVariance      float64       // band around the 0.5 UP/DOWN split
	MomentumInterval   time.Duration // how often to rebalance momentum
	MomentumThreshold  float64       // min price move to set a bias
	MomentumGain       float64       // bias per unit of price move
	ExpirationWindow   time.Duration // stop building inside this window
	MinTradeShares     float64       // sub-minimum candidates are discarded
	TargetGrowth       float64       // target multiplier once ~filled
	TargetHitFraction  float64       // "filled" threshold on both sides
	ArbClearThreshold  float64       // price that marks a clear outcome
	ArbMinLoserPrice   float64       // dust floor for the cheap side
	ArbMaxLoserPrice   float64       // ceiling for the cheap side
	ArbMaxNotional     float64       // cap per arbitrage trade
	ArbMinCapital      float64       // don't arb below this free capital
	SettleWinThreshold float64       // terminal price that wins outright
}

// DefaultConfig returns the strategy defaults.
func DefaultConfig() Config {
	return Config{
		PerAssetCap:        300,
		Aggressiveness:     0.05,
		MinPositionUSD:     20,
		SplitVariance:      0.08,
		MomentumInterval:   10 * time.Second,
		MomentumThreshold:  0.02,
		MomentumGain:       10,
		ExpirationWindow:   2 * time.Minute,
		MinTradeShares:     5,
		TargetGrowth:       1.10,
		TargetHitFraction:  0.98,
		ArbClearThreshold:  0.95,
		ArbMinLoserPrice:   0.005,
		ArbMaxLoserPrice:   0.10,
		ArbMaxNotional:     30,
		ArbMinCapital:      50,
		SettleWinThreshold: 0.95,
	}
}

// phase is the per-market strategy state machine. Transitions are one-way:
// building → arbitrage → settled.
type phase int

const (
	phaseBuilding phase = iota
	phaseArbitrage
	phaseAbandoned
)

func (p phase) String() string {
	switch p {
	case phaseBuilding:
		return "BUILDING"
	case phaseArbitrage:
		return "ARBITRAGE"
	default:
		return "ABANDONED"
	}
}

// buildState is the ephemeral per-market state of the build phase. One tagged
// state per key: a market can never exist in two collections at once.
type buildState struct {
	key               domain.MarketKey
	conditionID       string
	phase             phase
	targetUp          float64
	targetDown        float64
	investedUp        float64
	investedDown      float64
	startPriceUp      float64
	startPriceDown    float64
	lastPriceUp       float64
	lastPriceDown     float64
	momentum          float64 // [-1, 1], positive favors UP
	nextTradeAt       time.Time
	lastMomentumCheck time.Time
	tradeCount        int
	startedAt         time.Time
}

func (st *buildState) invested(o domain.Outcome) float64 {
	if o == domain.OutcomeUp {
		return st.investedUp
	}
	return st.investedDown
}

func (st *buildState) target(o domain.Outcome) float64 {
	if o == domain.OutcomeUp {
		return st.targetUp
	}
	return st.targetDown
}

// Engine consumes discovered markets plus current prices and decides, per
// polling tick, whether to place an incremental build trade, fire the
// expiration arbitrage, or settle. Per-market failures are logged at market
// granularity and never escape into the poll loop.
type Engine struct {
	cfg         Config
	book        *ledger.Ledger
	rng         domain.Rand
	states      map[domain.MarketKey]*buildState
	arbFired    map[string]bool
	splitOffset float64 // per-session perturbation of the 0.5 split
}

// New creates an engine over the given ledger and random source.
func New(cfg Config, book *ledger.Ledger, rng domain.Rand) *Engine {
	return &Engine{
		cfg:         cfg,
		book:        book,
		rng:         rng,
		states:      make(map[domain.MarketKey]*buildState),
		arbFired:    make(map[string]bool),
		splitOffset: (2*rng.Float64() - 1) * cfg.SplitVariance,
	}
}

// ProcessMarket runs one strategy step for one market. Called once per
// eligible market per tick, in stable key order.
func (e *Engine) ProcessMarket(rec registry.MarketRecord, now time.Time) {
	end := marketEnd(rec)

	if st, ok := e.states[rec.Key]; ok && rec.HasPrices() {
		st.lastPriceUp = rec.Up.Price
		st.lastPriceDown = rec.Down.Price
	}

	if !end.IsZero() && now.After(end) {
		e.settle(rec, now)
		return
	}

	if !end.IsZero() && end.Sub(now) <= e.cfg.ExpirationWindow {
		e.enterArbitrageWindow(rec, end, now)
		return
	}

	e.buildStep(rec, now)
}

// HandleRemoved reclaims state for keys pruned from the registry. Positions
// with usable last-known prices are settled through the normal rule; markets
// that vanished without prices are voided and their capital refunded.
func (e *Engine) HandleRemoved(keys []domain.MarketKey, now time.Time) {
	for _, key := range keys {
		st, hasState := e.states[key]
		_, hasPos := e.book.Position(key)
		if !hasPos {
			e.forgetKey(key)
			continue
		}
		if hasState && st.lastPriceUp > 0 && st.lastPriceDown > 0 {
			winner := decideWinner(st.lastPriceUp, st.lastPriceDown, e.cfg.SettleWinThreshold)
			if _, err := e.book.ResolveMarket(key, winner, st.lastPriceUp, st.lastPriceDown, now); err != nil {
				slog.Warn("engine: settling removed market failed", "key", key, "err", err)
			}
		} else {
			if _, err := e.book.VoidMarket(key, now); err != nil {
				slog.Warn("engine: voiding removed market failed", "key", key, "err", err)
			}
		}
		e.forgetKey(key)
	}
}

// forgetKey tears down the transient state for a key, including any
// double-fire guard entries registered under its market identity.
func (e *Engine) forgetKey(key domain.MarketKey) {
	conditionID := ""
	if st, ok := e.states[key]; ok {
		conditionID = st.conditionID
	}
	e.dropArbCycles(conditionID, key)
	delete(e.states, key)
}

// BuildingMarkets returns how many markets are currently in the build phase.
func (e *Engine) BuildingMarkets() int {
	n := 0
	for _, st := range e.states {
		if st.phase == phaseBuilding {
			n++
		}
	}
	return n
}

// marketEnd picks the market's expiry: explicit end time first, the parsed
// title window as fallback.
func marketEnd(rec registry.MarketRecord) time.Time {
	if !rec.EndTime.IsZero() {
		return rec.EndTime
	}
	return rec.WindowEnd
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dollars(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
