package domain

import (
	"fmt"
	"time"
)

// MarketKey es el identificador canónico que agrupa los trades de una misma
// instancia de mercado binario. Ejemplos: "CID-1a2b3c4d", "BTC-UpDown-15".
type MarketKey string

// UnknownKey es el sentinel para actividad sin texto ni identificadores
// reconocibles. Los trades contra esta key se registran pero no se pueden
// deduplicar con precisión.
const UnknownKey MarketKey = "Unknown"

// Identity es el resultado de normalizar un registro de actividad:
// la key canónica más todo lo que el registry necesita para detectar
// rotaciones de mercados de vida corta.
type Identity struct {
	Key          MarketKey
	Asset        string // BTC, ETH, SOL, XRP o vacío
	TimeframeMin int    // 15, 60... o 0 si no reconocido
	RotatingType string // "BTC-UpDown-15" o vacío si el tipo no rota
	BaseName     string // título con la ventana horaria recortada
	WindowStart  time.Time
	WindowEnd    time.Time
}

// Rotating devuelve true si la identidad pertenece a un tipo de mercado
// rotativo reconocido (asset + timeframe).
func (id Identity) Rotating() bool {
	return id.RotatingType != ""
}

// HasWindow devuelve true si el título traía una ventana HH:MM–HH:MM parseable.
func (id Identity) HasWindow() bool {
	return !id.WindowStart.IsZero() && !id.WindowEnd.IsZero()
}

// RotatingTypeKey construye el nombre de tipo rotativo para un asset y timeframe.
func RotatingTypeKey(asset string, timeframeMin int) string {
	return fmt.Sprintf("%s-UpDown-%d", asset, timeframeMin)
}

// ConditionKey deriva una key namespaced por condition id (primeros 8 chars
// tras el prefijo 0x).
func ConditionKey(conditionID string) MarketKey {
	s := conditionID
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) > 8 {
		s = s[:8]
	}
	return MarketKey("CID-" + s)
}

// TruncateTitle devuelve el título truncado a maxLen caracteres.
// Si el título está vacío usa la key como fallback.
func TruncateTitle(title string, key MarketKey, maxLen int) string {
	t := title
	if t == "" {
		t = string(key)
	}
	if len(t) > maxLen {
		t = t[:maxLen-3] + "..."
	}
	return t
}
