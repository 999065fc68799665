package ports

import (
	"context"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
)

// TradeSink consume el stream de eventos de simulación (trades y resoluciones)
// para persistirlos fuera del camino de decisión. Los writers CSV/SQLite
// implementan esta interface; el engine nunca depende de ellos directamente.
type TradeSink interface {
	// RecordTrade persiste una fila por trade simulado.
	RecordTrade(ctx context.Context, trade domain.PaperTrade) error

	// RecordResolution persiste una fila por mercado resuelto.
	RecordResolution(ctx context.Context, resolved domain.ResolvedMarket) error
}

// SummaryStorage persiste los snapshots periódicos del estado de la simulación.
type SummaryStorage interface {
	ApplySchema(ctx context.Context) error
	SaveDailySummary(ctx context.Context, d domain.DailySummary) error
	GetDailySummaries(ctx context.Context) ([]domain.DailySummary, error)
	GetTrades(ctx context.Context, key domain.MarketKey) ([]domain.PaperTrade, error)
	GetResolutions(ctx context.Context) ([]domain.ResolvedMarket, error)
}
