package domain

import "time"

// DailySummary es el snapshot diario de la simulación para el dashboard
// y los exports.
type DailySummary struct {
	Date             time.Time
	TradesPlaced     int
	BuildTrades      int
	ArbTrades        int
	OpenMarkets      int
	MarketsResolved  int
	Invested         float64
	AvailableCapital float64
	RealizedPnL      float64
	WinRate          float64
}

// LedgerStats son las estadísticas agregadas del ledger en un instante.
type LedgerStats struct {
	StartingCapital  float64
	AvailableCapital float64
	TotalInvested    float64 // abierto, a coste
	RealizedPnL      float64
	SettledMarkets   int
	VoidedMarkets    int
	Wins             int
	WinRate          float64 // wins / settled (excluye voided)
	TradesUp         int
	TradesDown       int
	TotalTrades      int
}
