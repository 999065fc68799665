package domain

import "time"

// TradePhase indica en qué fase de la estrategia se originó un trade simulado.
type TradePhase string

const (
	PhaseBuild     TradePhase = "BUILD"
	PhaseArbitrage TradePhase = "ARB"
)

// PaperTrade es un trade simulado registrado en el ledger.
type PaperTrade struct {
	ID         string
	Key        MarketKey
	MarketName string
	Outcome    Outcome
	Shares     float64
	Price      float64
	Notional   float64 // shares × price, USDC
	RunningAvg float64 // precio medio del lado después de este trade
	Phase      TradePhase
	Timestamp  time.Time
}

// PaperPosition es la posición simulada en un lado (UP o DOWN) de un mercado.
type PaperPosition struct {
	Shares     float64
	TotalCost  float64
	TradeCount int
	FirstTrade time.Time
	LastTrade  time.Time
}

// AveragePrice devuelve el coste medio por share, 0 si no hay shares.
func (p PaperPosition) AveragePrice() float64 {
	if p.Shares <= 0 {
		return 0
	}
	return p.TotalCost / p.Shares
}

// PaperMarketPosition es la posición abierta en un mercado: los dos lados
// más el historial de trades. La destruye únicamente el settlement.
type PaperMarketPosition struct {
	Key      MarketKey
	Name     string
	Up       PaperPosition
	Down     PaperPosition
	Trades   []PaperTrade
	OpenedAt time.Time
}

// TotalInvested devuelve el capital total invertido en ambos lados.
func (p PaperMarketPosition) TotalInvested() float64 {
	return p.Up.TotalCost + p.Down.TotalCost
}

// CurrentValue valora la posición a los precios dados.
func (p PaperMarketPosition) CurrentValue(priceUp, priceDown float64) float64 {
	return p.Up.Shares*priceUp + p.Down.Shares*priceDown
}

// UnrealizedPnL es el PnL no realizado a los precios dados.
func (p PaperMarketPosition) UnrealizedPnL(priceUp, priceDown float64) float64 {
	return p.CurrentValue(priceUp, priceDown) - p.TotalInvested()
}

// Side devuelve la sub-posición del outcome pedido.
func (p *PaperMarketPosition) Side(o Outcome) *PaperPosition {
	if o == OutcomeUp {
		return &p.Up
	}
	return &p.Down
}

// ResolvedMarket es el snapshot inmutable de un mercado en el momento del
// settlement. Nunca se muta después de crearse.
type ResolvedMarket struct {
	Key            MarketKey
	Name           string
	InvestedUp     float64
	InvestedDown   float64
	SharesUp       float64
	SharesDown     float64
	FinalPriceUp   float64
	FinalPriceDown float64
	Winner         Outcome
	Payout         float64
	RealizedPnL    float64
	RealizedPnLPct float64
	Voided         bool // el mercado desapareció sin precios terminales
	ResolvedAt     time.Time
}

// TotalInvested devuelve el capital que estaba invertido al resolverse.
func (r ResolvedMarket) TotalInvested() float64 {
	return r.InvestedUp + r.InvestedDown
}

// Won devuelve true si el mercado cerró con PnL positivo.
func (r ResolvedMarket) Won() bool {
	return r.RealizedPnL > 0
}
