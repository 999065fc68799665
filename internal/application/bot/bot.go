package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/adapters/notify"
	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/engine"
	"github.com/alejandrodnm/mirrorbot/internal/ledger"
	"github.com/alejandrodnm/mirrorbot/internal/ports"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

// Config contiene la configuración del loop principal.
type Config struct {
	Wallets      []string      // wallets a espejar
	PollInterval time.Duration // cadencia del tick principal
	StatusEvery  int           // ticks entre impresiones de estado
	DryRun       bool          // un solo ciclo y salir
}

// StatusPrinter imprime el estado de la simulación. Lo implementa
// notify.Console; los tests inyectan un printer silencioso.
type StatusPrinter interface {
	PrintStatus(notify.StatusInput)
	PrintResolution(domain.ResolvedMarket)
}

// Bot es el orquestador: observa wallets, mantiene el registry al día,
// y deja que el engine decida sobre cada mercado en cada tick.
type Bot struct {
	cfg       Config
	registry  *registry.Registry
	book      *ledger.Ledger
	engine    *engine.Engine
	activity  ports.ActivityProvider
	prices    ports.PriceProvider
	meta      ports.MarketMetaProvider
	sink      ports.TradeSink
	summaries ports.SummaryStorage
	printer   StatusPrinter

	// contadores del día en curso para el resumen diario
	day             time.Time
	tradesToday     int
	buildToday      int
	arbToday        int
	resolvedToday   int
	tradesThisCycle int
}

// New crea un Bot con todas las dependencias inyectadas.
func New(
	cfg Config,
	reg *registry.Registry,
	book *ledger.Ledger,
	eng *engine.Engine,
	activity ports.ActivityProvider,
	prices ports.PriceProvider,
	meta ports.MarketMetaProvider,
	sink ports.TradeSink,
	summaries ports.SummaryStorage,
	printer StatusPrinter,
) *Bot {
	if cfg.StatusEvery <= 0 {
		cfg.StatusEvery = 10
	}
	return &Bot{
		cfg:       cfg,
		registry:  reg,
		book:      book,
		engine:    eng,
		activity:  activity,
		prices:    prices,
		meta:      meta,
		sink:      sink,
		summaries: summaries,
		printer:   printer,
	}
}

// Run ejecuta el loop principal hasta que el contexto se cancele.
// Si cfg.DryRun está activo, solo ejecuta un ciclo.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("bot starting",
		"wallets", len(b.cfg.Wallets),
		"interval", b.cfg.PollInterval,
		"dry_run", b.cfg.DryRun,
		"capital", b.book.AvailableCapital(),
	)

	b.wireListeners(ctx)
	b.day = dateOf(time.Now())

	if err := b.runCycle(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
		if b.cfg.DryRun {
			return err
		}
	}

	if b.cfg.DryRun {
		b.printStatus()
		return nil
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("bot stopped")
			b.saveSummary(context.Background())
			return nil
		case <-ticker.C:
			if err := b.runCycle(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
			tick++
			if tick%b.cfg.StatusEvery == 0 {
				b.printStatus()
				b.saveSummary(ctx)
			}
		}
	}
}

// wireListeners conecta el stream de eventos del ledger con la
// persistencia y la consola. Los errores de persistencia no frenan
// la simulación, solo se loguean.
func (b *Bot) wireListeners(ctx context.Context) {
	b.book.OnTrade(func(t domain.PaperTrade) {
		b.tradesToday++
		b.tradesThisCycle++
		if t.Phase == domain.PhaseArbitrage {
			b.arbToday++
		} else {
			b.buildToday++
		}
		if b.sink != nil {
			if err := b.sink.RecordTrade(ctx, t); err != nil {
				slog.Warn("trade sink error", "err", err)
			}
		}
	})
	b.book.OnResolution(func(r domain.ResolvedMarket) {
		b.resolvedToday++
		if b.sink != nil {
			if err := b.sink.RecordResolution(ctx, r); err != nil {
				slog.Warn("resolution sink error", "err", err)
			}
		}
		if b.printer != nil {
			b.printer.PrintResolution(r)
		}
	})
}

// runCycle ejecuta un tick completo: prune, ingesta, precios, decisiones.
func (b *Bot) runCycle(ctx context.Context) error {
	now := time.Now()
	b.tradesThisCycle = 0
	b.rollDay(now)

	// 1. Mercados expirados o stale salen del registry; el engine
	//    liquida las posiciones que tuvieran.
	if removed := b.registry.PruneExpired(now); len(removed) > 0 {
		slog.Debug("pruned markets", "count", len(removed))
		b.engine.HandleRemoved(removed, now)
	}

	// 2. Ingesta de actividad de cada wallet espejada.
	for _, wallet := range b.cfg.Wallets {
		acts, err := b.activity.FetchActivity(ctx, wallet)
		if err != nil {
			slog.Warn("activity fetch failed", "wallet", wallet, "err", err)
			continue
		}
		for _, a := range acts {
			_, superseded, recorded := b.registry.RecordTrade(a)
			if !recorded {
				continue
			}
			// Una instancia nueva de un mercado rotativo desplaza a la
			// anterior: se liquida como si hubiera expirado.
			if len(superseded) > 0 {
				b.engine.HandleRemoved(superseded, now)
			}
		}
	}

	// 3. Refresh de precios y fechas de cierre.
	b.refreshMarkets(ctx, now)

	// 4. El engine decide sobre cada mercado vivo.
	for _, key := range b.registry.Keys() {
		rec, ok := b.registry.Get(key)
		if !ok {
			continue
		}
		b.engine.ProcessMarket(rec, now)
	}

	return ctx.Err()
}

// refreshMarkets actualiza midpoints y endDate de cada mercado del registry.
func (b *Bot) refreshMarkets(ctx context.Context, now time.Time) {
	for _, key := range b.registry.Keys() {
		rec, ok := b.registry.Get(key)
		if !ok {
			continue
		}

		up := fetchPrice(ctx, b.prices, rec.Up.TokenID)
		down := fetchPrice(ctx, b.prices, rec.Down.TokenID)
		if up > 0 || down > 0 {
			b.registry.RefreshPrices(key, up, down, now)
		}

		if rec.EndTime.IsZero() && rec.ConditionID != "" && b.meta != nil {
			if end, ok, err := b.meta.FetchEndDate(ctx, rec.ConditionID); err != nil {
				slog.Debug("end date fetch failed", "key", key, "err", err)
			} else if ok {
				b.registry.SetEndTime(key, time.Unix(end, 0).UTC())
			}
		}
	}
}

// fetchPrice devuelve el midpoint o 0 si no hay libro o falla el fetch.
func fetchPrice(ctx context.Context, p ports.PriceProvider, tokenID string) float64 {
	if p == nil || tokenID == "" {
		return 0
	}
	mid, ok, err := p.FetchMidpoint(ctx, tokenID)
	if err != nil {
		slog.Debug("midpoint fetch failed", "token", tokenID, "err", err)
		return 0
	}
	if !ok {
		return 0
	}
	return mid
}

func (b *Bot) printStatus() {
	if b.printer == nil {
		return
	}
	b.printer.PrintStatus(notify.StatusInput{
		Markets:       b.registry.Snapshot(),
		Positions:     b.book.ActivePositions(),
		Stats:         b.book.Stats(),
		BuildingCount: b.engine.BuildingMarkets(),
		NewTrades:     b.tradesThisCycle,
	})
}

// saveSummary hace upsert del resumen del día en curso.
func (b *Bot) saveSummary(ctx context.Context) {
	if b.summaries == nil {
		return
	}
	stats := b.book.Stats()
	err := b.summaries.SaveDailySummary(ctx, domain.DailySummary{
		Date:             b.day,
		TradesPlaced:     b.tradesToday,
		BuildTrades:      b.buildToday,
		ArbTrades:        b.arbToday,
		OpenMarkets:      len(b.book.ActivePositions()),
		MarketsResolved:  b.resolvedToday,
		Invested:         stats.TotalInvested,
		AvailableCapital: stats.AvailableCapital,
		RealizedPnL:      stats.RealizedPnL,
		WinRate:          stats.WinRate,
	})
	if err != nil {
		slog.Warn("summary save failed", "err", err)
	}
}

// rollDay resetea los contadores diarios al cambiar de fecha,
// guardando antes el resumen del día que termina.
func (b *Bot) rollDay(now time.Time) {
	today := dateOf(now)
	if today.Equal(b.day) {
		return
	}
	b.saveSummary(context.Background())
	b.day = today
	b.tradesToday = 0
	b.buildToday = 0
	b.arbToday = 0
	b.resolvedToday = 0
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}
