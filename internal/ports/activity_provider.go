package ports

import (
	"context"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
)

// ActivityProvider obtiene la actividad de trading reciente de las wallets
// observadas desde la Data API.
type ActivityProvider interface {
	// FetchActivity devuelve los trades recientes de una wallet, paginando
	// internamente hasta agotar los resultados o llegar al límite de páginas.
	FetchActivity(ctx context.Context, wallet string) ([]domain.WalletActivity, error)
}
