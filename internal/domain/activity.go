package domain

import "time"

// Side es el lado de un trade observado en la wallet espejada.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Outcome es el lado binario de un mercado Up/Down.
type Outcome string

const (
	OutcomeUp   Outcome = "UP"
	OutcomeDown Outcome = "DOWN"
)

// Other devuelve el outcome contrario.
func (o Outcome) Other() Outcome {
	if o == OutcomeUp {
		return OutcomeDown
	}
	return OutcomeUp
}

// WalletActivity es un trade observado en la actividad pública de una
// wallet de Polymarket. Es la entrada cruda del pipeline: el classifier
// le asigna identidad y el registry lo acumula.
type WalletActivity struct {
	TransactionHash string
	Timestamp       time.Time
	ConditionID     string
	Slug            string
	Title           string
	OutcomeIndex    int // -1 cuando el feed no lo trae
	OutcomeText     string
	Asset           string // token ID del outcome comprado
	Size            float64
	Price           float64
	UsdcSize        float64
	Side            Side
	EndDate         time.Time
	ProxyWallet     string
}

// HasEndDate devuelve true si el feed trajo fecha de cierre del mercado.
func (a WalletActivity) HasEndDate() bool {
	return !a.EndDate.IsZero()
}
