package ports

import "context"

// PriceProvider obtiene el midpoint best-bid/best-ask por token id del CLOB.
type PriceProvider interface {
	// FetchMidpoint devuelve el precio mid de un outcome token.
	// ok es false si el book no tiene liquidez.
	FetchMidpoint(ctx context.Context, tokenID string) (price float64, ok bool, err error)
}

// MarketMetaProvider resuelve metadata autoritativa de un mercado cuando
// los registros de actividad no la traen.
type MarketMetaProvider interface {
	// FetchEndDate devuelve el timestamp de resolución para un condition id.
	// ok es false si el mercado no existe o no tiene end date.
	FetchEndDate(ctx context.Context, conditionID string) (endDate int64, ok bool, err error)
}
