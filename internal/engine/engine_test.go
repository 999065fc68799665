package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/ledger"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// stubRand fija la fuente de aleatoriedad: Float64 devuelve siempre f,
// Intn devuelve n (módulo el límite). Con f=0.5 y n=0 la tabla de shares
// da el bucket de 5 shares sin jitter y el split queda en 50/50.
type stubRand struct {
	f float64
	n int
}

func (s stubRand) Float64() float64 { return s.f }
func (s stubRand) Intn(n int) int   { return s.n % n }

func newTestEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()
	book := ledger.New(ledger.Config{
		StartingCapital:      10000,
		PerMarketCap:         300,
		MaxConcurrentMarkets: 10,
		MaxDeployedFraction:  0.5,
	})
	return New(DefaultConfig(), book, stubRand{f: 0.5}), book
}

func buildableRecord(key domain.MarketKey, priceUp, priceDown float64, end time.Time) registry.MarketRecord {
	return registry.MarketRecord{
		Key:         key,
		Name:        "Bitcoin Up or Down - 3:15PM-3:30PM ET",
		ConditionID: "0xaaaa1111",
		Up:          registry.SideStats{TokenID: "tok-up", Price: priceUp},
		Down:        registry.SideStats{TokenID: "tok-down", Price: priceDown},
		EndTime:     end,
	}
}

func TestBuildStep_PlacesIncrementalTrades(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	rec := buildableRecord("m1", 0.55, 0.45, now.Add(10*time.Minute))

	e.ProcessMarket(rec, now)

	pos, ok := book.Position("m1")
	require.True(t, ok)
	// con el stub, cada tick coloca 5 shares por lado
	assert.InDelta(t, 5, pos.Up.Shares, 1e-9)
	assert.InDelta(t, 5, pos.Down.Shares, 1e-9)
	assert.Equal(t, 1, e.BuildingMarkets())

	// el segundo tick inmediato lo bloquea la cadencia
	e.ProcessMarket(rec, now.Add(time.Second))
	pos, _ = book.Position("m1")
	assert.InDelta(t, 5, pos.Up.Shares, 1e-9)

	// pasado el delay vuelve a tradear
	e.ProcessMarket(rec, now.Add(10*time.Second))
	pos, _ = book.Position("m1")
	assert.InDelta(t, 10, pos.Up.Shares, 1e-9)
	assert.Equal(t, 4, len(pos.Trades))
}

func TestBuildStep_SkipsUnusableMarkets(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Now()

	// sin token ids
	rec := buildableRecord("m1", 0.5, 0.5, now.Add(10*time.Minute))
	rec.Up.TokenID = ""
	e.ProcessMarket(rec, now)
	_, ok := book.Position("m1")
	assert.False(t, ok)

	// sin precios
	rec = buildableRecord("m2", 0, 0, now.Add(10*time.Minute))
	e.ProcessMarket(rec, now)
	_, ok = book.Position("m2")
	assert.False(t, ok)
}

func TestDiscover_AbandonsBelowMinimum(t *testing.T) {
	book := ledger.New(ledger.Config{StartingCapital: 100})
	e := New(DefaultConfig(), book, stubRand{f: 0.5})
	now := time.Now()

	// target = min(300, 100×0.05) = $5 < MinPositionUSD
	rec := buildableRecord("m1", 0.5, 0.5, now.Add(10*time.Minute))
	e.ProcessMarket(rec, now)

	_, ok := book.Position("m1")
	assert.False(t, ok)
	assert.Equal(t, 0, e.BuildingMarkets())

	// el mercado abandonado no se redescubre en el siguiente tick
	e.ProcessMarket(rec, now.Add(time.Minute))
	_, ok = book.Position("m1")
	assert.False(t, ok)
}

func TestArbitrage_FiresOncePerCycle(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 29, 0, 0, time.UTC)
	end := now.Add(time.Minute)

	// UP ya está claro a 0.97: compra el lado barato (DOWN a 0.03)
	rec := buildableRecord("m1", 0.97, 0.03, end)
	e.ProcessMarket(rec, now)

	pos, ok := book.Position("m1")
	require.True(t, ok)
	require.Len(t, pos.Trades, 1)
	tr := pos.Trades[0]
	assert.Equal(t, domain.PhaseArbitrage, tr.Phase)
	assert.Equal(t, domain.OutcomeDown, tr.Outcome)
	assert.InDelta(t, 30, tr.Notional, 1e-9)
	assert.InDelta(t, 1000, tr.Shares, 1e-6)

	// mismo ciclo de expiración: no dispara una segunda vez
	e.ProcessMarket(rec, now.Add(10*time.Second))
	pos, _ = book.Position("m1")
	assert.Len(t, pos.Trades, 1)
}

func TestArbitrage_ContestedDoesNothing(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Now()

	// 0.6/0.4: ningún lado despejado → la posición se deja correr
	rec := buildableRecord("m1", 0.60, 0.40, now.Add(time.Minute))
	e.ProcessMarket(rec, now)

	_, ok := book.Position("m1")
	assert.False(t, ok)
}

func TestArbitrage_RespectsLoserPriceBand(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Now()

	// lado barato demasiado caro (0.20 > ArbMaxLoserPrice)
	e.ProcessMarket(buildableRecord("m1", 0.95, 0.20, now.Add(time.Minute)), now)
	_, ok := book.Position("m1")
	assert.False(t, ok)

	// lado barato por debajo del dust floor
	e.ProcessMarket(buildableRecord("m2", 0.999, 0.001, now.Add(time.Minute)), now)
	_, ok = book.Position("m2")
	assert.False(t, ok)
}

func TestSettle_ResolvesAtTerminalPrices(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 31, 0, 0, time.UTC)

	require.NoError(t, book.RecordTrade(domain.PaperTrade{
		Key: "m1", Outcome: domain.OutcomeUp, Shares: 200, Price: 0.5, Timestamp: now,
	}))
	require.NoError(t, book.RecordTrade(domain.PaperTrade{
		Key: "m1", Outcome: domain.OutcomeDown, Shares: 100, Price: 0.4, Timestamp: now,
	}))

	rec := buildableRecord("m1", 0.97, 0.03, now.Add(-time.Second))
	e.ProcessMarket(rec, now)

	_, open := book.Position("m1")
	assert.False(t, open)

	resolved := book.ResolvedMarkets()
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.OutcomeUp, resolved[0].Winner)
	assert.InDelta(t, 200, resolved[0].Payout, 1e-9)
	assert.InDelta(t, 60, resolved[0].RealizedPnL, 1e-9)
	assert.Equal(t, 0, e.BuildingMarkets())
}

func TestSettle_NoPositionIsNoop(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Now()

	rec := buildableRecord("m1", 0.97, 0.03, now.Add(-time.Second))
	e.ProcessMarket(rec, now)
	assert.Empty(t, book.ResolvedMarkets())
}

func TestHandleRemoved_SettlesWithLastPrices(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

	// construye posición y deja precios conocidos en el estado
	rec := buildableRecord("m1", 0.97, 0.03, now.Add(10*time.Minute))
	e.ProcessMarket(rec, now)
	_, ok := book.Position("m1")
	require.True(t, ok)

	e.HandleRemoved([]domain.MarketKey{"m1"}, now.Add(time.Minute))

	resolved := book.ResolvedMarkets()
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Voided)
	assert.Equal(t, domain.OutcomeUp, resolved[0].Winner)
}

func TestHandleRemoved_VoidsWithoutPrices(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Now()

	require.NoError(t, book.RecordTrade(domain.PaperTrade{
		Key: "gone", Outcome: domain.OutcomeUp, Shares: 100, Price: 0.5, Timestamp: now,
	}))
	capitalBefore := book.AvailableCapital()

	e.HandleRemoved([]domain.MarketKey{"gone"}, now)

	resolved := book.ResolvedMarkets()
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Voided)
	assert.InDelta(t, capitalBefore+50, book.AvailableCapital(), 1e-9)
}

func TestHandleRemoved_ClearsArbitrageGuard(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 29, 0, 0, time.UTC)
	end := now.Add(time.Minute)

	// el arbitraje deja registrado su guard de doble disparo
	rec := buildableRecord("m1", 0.97, 0.03, end)
	e.ProcessMarket(rec, now)
	require.Len(t, e.arbFired, 1)

	// el mercado expira vía prune: el guard se descarta junto con el estado
	e.HandleRemoved([]domain.MarketKey{"m1"}, end.Add(time.Second))

	require.Len(t, book.ResolvedMarkets(), 1)
	assert.Empty(t, e.arbFired)
	assert.Empty(t, e.states)
}

func TestDecideWinner(t *testing.T) {
	assert.Equal(t, domain.OutcomeUp, decideWinner(0.97, 0.03, 0.95))
	assert.Equal(t, domain.OutcomeDown, decideWinner(0.03, 0.97, 0.95))
	// ninguno al umbral: gana el estrictamente mayor
	assert.Equal(t, domain.OutcomeDown, decideWinner(0.40, 0.60, 0.95))
	// empate exacto → UP
	assert.Equal(t, domain.OutcomeUp, decideWinner(0.50, 0.50, 0.95))
}

func TestCapitalConservationThroughFullCycle(t *testing.T) {
	e, book := newTestEngine(t)
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	rec := buildableRecord("m1", 0.55, 0.45, now.Add(10*time.Minute))

	// varios ticks de build espaciados más que la cadencia
	for i := 0; i < 20; i++ {
		e.ProcessMarket(rec, now.Add(time.Duration(i)*10*time.Second))
	}

	pos, ok := book.Position("m1")
	require.True(t, ok)
	invested := pos.TotalInvested()
	assert.Greater(t, invested, 0.0)

	// disponible + invertido = capital inicial en todo momento
	assert.InDelta(t, 10000, book.AvailableCapital()+invested, 1e-6)

	// settlement: disponible + payout cuadra con el PnL realizado
	rec.EndTime = now
	e.ProcessMarket(rec, now.Add(30*time.Minute))
	stats := book.Stats()
	assert.InDelta(t, 10000+stats.RealizedPnL, book.AvailableCapital(), 1e-6)
}
