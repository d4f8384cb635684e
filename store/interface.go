package store

import (
	"context"

	models "storefront-cart/model"
)

// Store is the cart resource accessor. cartID is always a single candidate
// identifier; choosing between candidates is the caller's job.
type Store interface {
	FetchCart(ctx context.Context, cartID string) (models.CartSnapshot, error)
	CreateCart(ctx context.Context, lines []models.LineInput) (models.CartSnapshot, error)
	AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error)
	UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (models.CartSnapshot, error)
	ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error)

	ListProducts(ctx context.Context, first int) ([]models.Product, error)
	CollectionProducts(ctx context.Context, handle string, first int) (models.Collection, error)
}
