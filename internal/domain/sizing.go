package domain

import "time"

// Rand es la fuente de aleatoriedad inyectable de la estrategia.
// En producción se usa math/rand; en tests una fuente seeded determinista.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// shareBucket es una entrada de la distribución discreta de tamaños de trade.
// Los pesos reproducen el sesgo observado hacia cantidades redondas de shares,
// no una distribución uniforme.
type shareBucket struct {
	Shares float64
	Weight int
}

// ShareSizeTable es la distribución de tamaños de trade en shares.
var ShareSizeTable = []shareBucket{
	{Shares: 5, Weight: 18},
	{Shares: 10, Weight: 24},
	{Shares: 15, Weight: 10},
	{Shares: 20, Weight: 16},
	{Shares: 25, Weight: 9},
	{Shares: 50, Weight: 12},
	{Shares: 100, Weight: 7},
	{Shares: 200, Weight: 3},
	{Shares: 500, Weight: 1},
}

// cadenceTier es un rango de espera entre trades con su peso.
// El grueso del peso está en gaps cortos de 2–5s, con cola decreciente,
// para producir timing orgánico en lugar de ráfagas a intervalo fijo.
type cadenceTier struct {
	Min    time.Duration
	Max    time.Duration
	Weight int
}

// CadenceTable es la distribución por tiers del gap entre trades de un mercado.
var CadenceTable = []cadenceTier{
	{Min: 2 * time.Second, Max: 5 * time.Second, Weight: 50},
	{Min: 5 * time.Second, Max: 15 * time.Second, Weight: 25},
	{Min: 15 * time.Second, Max: 45 * time.Second, Weight: 15},
	{Min: 45 * time.Second, Max: 2 * time.Minute, Weight: 7},
	{Min: 2 * time.Minute, Max: 5 * time.Minute, Weight: 3},
}

const shareJitter = 0.10 // ±10%

// PickTradeShares saca un tamaño de trade de la tabla ponderada y le aplica
// el jitter de ±10%.
func PickTradeShares(r Rand) float64 {
	total := 0
	for _, b := range ShareSizeTable {
		total += b.Weight
	}
	pick := r.Intn(total)
	for _, b := range ShareSizeTable {
		pick -= b.Weight
		if pick < 0 {
			jitter := 1 + shareJitter*(2*r.Float64()-1)
			return b.Shares * jitter
		}
	}
	return ShareSizeTable[0].Shares
}

// PickTradeDelay saca el gap hasta el siguiente trade de la tabla de cadencia.
func PickTradeDelay(r Rand) time.Duration {
	total := 0
	for _, t := range CadenceTable {
		total += t.Weight
	}
	pick := r.Intn(total)
	for _, t := range CadenceTable {
		pick -= t.Weight
		if pick < 0 {
			span := t.Max - t.Min
			return t.Min + time.Duration(r.Float64()*float64(span))
		}
	}
	return CadenceTable[0].Min
}
