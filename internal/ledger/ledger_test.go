package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
)

func newTestLedger() *Ledger {
	return New(Config{
		StartingCapital:      10000,
		PerMarketCap:         300,
		MaxConcurrentMarkets: 3,
		MaxDeployedFraction:  0.5,
	})
}

func trade(key domain.MarketKey, o domain.Outcome, shares, price float64) domain.PaperTrade {
	return domain.PaperTrade{
		Key:       key,
		Outcome:   o,
		Shares:    shares,
		Price:     price,
		Notional:  shares * price,
		Phase:     domain.PhaseBuild,
		Timestamp: time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC),
	}
}

func TestRecordTrade_WeightedAverage(t *testing.T) {
	l := newTestLedger()

	// 100 @ 0.50 seguido de 50 @ 0.60 → media (50+30)/150
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.50)))
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 50, 0.60)))

	pos, ok := l.Position("m1")
	require.True(t, ok)
	assert.InDelta(t, 150, pos.Up.Shares, 1e-9)
	assert.InDelta(t, 80, pos.Up.TotalCost, 1e-9)
	assert.InDelta(t, 80.0/150.0, pos.Up.AveragePrice(), 1e-9)
	assert.Equal(t, 2, pos.Up.TradeCount)

	// el RunningAvg queda grabado en cada trade del historial
	assert.InDelta(t, 0.50, pos.Trades[0].RunningAvg, 1e-9)
	assert.InDelta(t, 80.0/150.0, pos.Trades[1].RunningAvg, 1e-9)

	assert.InDelta(t, 10000-80, l.AvailableCapital(), 1e-9)
}

func TestRecordTrade_Validation(t *testing.T) {
	l := newTestLedger()

	err := l.RecordTrade(trade("m1", domain.OutcomeUp, 0, 0.5))
	assert.ErrorIs(t, err, ErrInvalidTrade)
	err = l.RecordTrade(trade("m1", domain.OutcomeUp, 10, 1.5))
	assert.ErrorIs(t, err, ErrInvalidTrade)
	err = l.RecordTrade(trade("m1", domain.OutcomeUp, 10, -0.1))
	assert.ErrorIs(t, err, ErrInvalidTrade)

	// un trade rechazado no toca el capital ni abre posición
	assert.InDelta(t, 10000, l.AvailableCapital(), 1e-9)
	_, ok := l.Position("m1")
	assert.False(t, ok)
}

func TestRecordTrade_InsufficientCapital(t *testing.T) {
	l := New(Config{StartingCapital: 10})

	err := l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.5))
	assert.ErrorIs(t, err, ErrInsufficientCapital)
	assert.InDelta(t, 10, l.AvailableCapital(), 1e-9)
}

func TestCanTrade_OrderedGuards(t *testing.T) {
	l := newTestLedger()

	// guard 1: capital disponible
	ok, reason := l.CanTrade("m1", 20000)
	assert.False(t, ok)
	assert.Contains(t, reason, "insufficient capital")

	// guard 2: cap por mercado ($290 invertidos, cap $300)
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 580, 0.5))) // $290
	ok, reason = l.CanTrade("m1", 15)
	assert.False(t, ok)
	assert.Contains(t, reason, "per-market cap")
	ok, _ = l.CanTrade("m1", 10)
	assert.True(t, ok)

	// guard 3: máximo de mercados concurrentes, solo para mercados nuevos
	require.NoError(t, l.RecordTrade(trade("m2", domain.OutcomeUp, 100, 0.5)))
	require.NoError(t, l.RecordTrade(trade("m3", domain.OutcomeUp, 100, 0.5)))
	ok, reason = l.CanTrade("m4", 10)
	assert.False(t, ok)
	assert.Contains(t, reason, "max concurrent")
	ok, _ = l.CanTrade("m2", 10) // mercado ya abierto: permitido
	assert.True(t, ok)
}

func TestCanTrade_MaxDeployedFraction(t *testing.T) {
	l := New(Config{StartingCapital: 1000, MaxDeployedFraction: 0.5})

	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 900, 0.5))) // $450
	ok, reason := l.CanTrade("m2", 100)
	assert.False(t, ok)
	assert.Contains(t, reason, "max deployment")
	ok, _ = l.CanTrade("m2", 40)
	assert.True(t, ok)
}

func TestResolveMarket_CapitalConservation(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 200, 0.5)))   // $100
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeDown, 100, 0.4))) // $40

	settledAt := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)
	resolved, err := l.ResolveMarket("m1", domain.OutcomeUp, 0.97, 0.03, settledAt)
	require.NoError(t, err)

	// 200 shares ganadoras × $1.00
	assert.InDelta(t, 200, resolved.Payout, 1e-9)
	assert.InDelta(t, 60, resolved.RealizedPnL, 1e-9) // 200 − 140
	assert.True(t, resolved.Won())

	// la fila archivada lleva la hora de liquidación, no la del último trade
	assert.Equal(t, settledAt, resolved.ResolvedAt)

	// capital = inicial − invertido + payout
	assert.InDelta(t, 10000-140+200, l.AvailableCapital(), 1e-9)

	_, ok := l.Position("m1")
	assert.False(t, ok)
	require.Len(t, l.ResolvedMarkets(), 1)
}

func TestResolveMarket_Idempotent(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.5)))

	now := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)
	_, err := l.ResolveMarket("m1", domain.OutcomeUp, 0.99, 0.01, now)
	require.NoError(t, err)
	capital := l.AvailableCapital()

	// segunda resolución del mismo mercado: error, capital intacto
	_, err = l.ResolveMarket("m1", domain.OutcomeUp, 0.99, 0.01, now)
	assert.ErrorIs(t, err, ErrUnknownMarket)
	assert.InDelta(t, capital, l.AvailableCapital(), 1e-9)
	assert.Len(t, l.ResolvedMarkets(), 1)
}

func TestVoidMarket_RefundsInvested(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.5)))
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeDown, 50, 0.4)))

	voidedAt := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)
	resolved, err := l.VoidMarket("m1", voidedAt)
	require.NoError(t, err)
	assert.True(t, resolved.Voided)
	assert.InDelta(t, 0, resolved.RealizedPnL, 1e-9)
	assert.Equal(t, voidedAt, resolved.ResolvedAt)

	// todo el capital vuelve: la simulación queda neutra
	assert.InDelta(t, 10000, l.AvailableCapital(), 1e-9)

	stats := l.Stats()
	assert.Equal(t, 1, stats.VoidedMarkets)
	assert.Equal(t, 0, stats.SettledMarkets)
}

func TestStats(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.5)))
	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeDown, 50, 0.4)))
	require.NoError(t, l.RecordTrade(trade("m2", domain.OutcomeUp, 100, 0.3)))

	now := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)
	_, err := l.ResolveMarket("m1", domain.OutcomeUp, 0.99, 0.01, now) // +$30
	require.NoError(t, err)
	_, err = l.ResolveMarket("m2", domain.OutcomeDown, 0.02, 0.98, now) // −$30
	require.NoError(t, err)

	stats := l.Stats()
	assert.Equal(t, 2, stats.SettledMarkets)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.Equal(t, 2, stats.TradesUp)
	assert.Equal(t, 1, stats.TradesDown)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.InDelta(t, 0, stats.TotalInvested, 1e-9)
	assert.InDelta(t, 0, stats.RealizedPnL, 1e-9)
}

func TestListeners(t *testing.T) {
	l := newTestLedger()

	var trades []domain.PaperTrade
	var resolutions []domain.ResolvedMarket
	l.OnTrade(func(t domain.PaperTrade) { trades = append(trades, t) })
	l.OnResolution(func(r domain.ResolvedMarket) { resolutions = append(resolutions, r) })

	require.NoError(t, l.RecordTrade(trade("m1", domain.OutcomeUp, 100, 0.5)))
	_, err := l.ResolveMarket("m1", domain.OutcomeUp, 0.99, 0.01, time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.NotEmpty(t, trades[0].ID) // el ledger asigna uuid si falta
	require.Len(t, resolutions, 1)
	assert.Equal(t, domain.MarketKey("m1"), resolutions[0].Key)
}
