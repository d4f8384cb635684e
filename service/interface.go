package service

import (
	"context"

	models "storefront-cart/model"
)

type ServiceInterface interface {
	GetCart(ctx context.Context, cartID string) (models.CartSnapshot, error)
	CreateCart(ctx context.Context, lines []models.LineInput) (models.CartSnapshot, error)
	AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error)
	UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error)
	RemoveLines(ctx context.Context, cartID string, targets []models.LineTarget) (models.CartSnapshot, error)
	ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error)
	Checkout(ctx context.Context, cartID string) (models.Checkout, models.CartSnapshot, error)

	ListProducts(ctx context.Context, first int) ([]models.Product, error)
	CollectionProducts(ctx context.Context, handle string, first int) (models.Collection, error)
}
