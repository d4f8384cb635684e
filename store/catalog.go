package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"storefront-cart/graphql"
	models "storefront-cart/model"
)

const maxProductsPage = 250

type remoteProduct struct {
	ID               string        `json:"id"`
	Handle           string        `json:"handle"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	AvailableForSale bool          `json:"availableForSale"`
	FeaturedImage    *models.Image `json:"featuredImage"`
	PriceRange       struct {
		MinVariantPrice models.Money `json:"minVariantPrice"`
	} `json:"priceRange"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// productConnection is either the edges or the nodes form of a connection.
type productConnection struct {
	Edges *[]struct {
		Node remoteProduct `json:"node"`
	} `json:"edges"`
	Nodes *[]remoteProduct `json:"nodes"`
}

type productsEnvelope struct {
	Products *productConnection `json:"products"`
	Data     *struct {
		Products *productConnection `json:"products"`
	} `json:"data"`
}

// normalizeProducts accepts exactly these payloads:
//
//	{"products":{"edges":[{"node":{...}}]}}
//	{"products":{"nodes":[{...}]}}
//	{"data":{"products":<either of the above>}}
//	[{...}, ...]
//
// Anything else is an unknown error.
func normalizeProducts(op string, raw json.RawMessage) ([]models.Product, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []remoteProduct
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, models.NewUnknownError(op, "unrecognized products payload", err)
		}
		return toProducts(list), nil
	}

	var env productsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, models.NewUnknownError(op, "unrecognized products payload", err)
	}
	conn := env.Products
	if conn == nil && env.Data != nil {
		conn = env.Data.Products
	}
	return fromConnection(op, conn)
}

func fromConnection(op string, conn *productConnection) ([]models.Product, error) {
	switch {
	case conn == nil:
		return nil, models.NewUnknownError(op, "unrecognized products payload", nil)
	case conn.Edges != nil:
		list := make([]remoteProduct, 0, len(*conn.Edges))
		for _, e := range *conn.Edges {
			list = append(list, e.Node)
		}
		return toProducts(list), nil
	case conn.Nodes != nil:
		return toProducts(*conn.Nodes), nil
	default:
		return nil, models.NewUnknownError(op, "products connection has neither edges nor nodes", nil)
	}
}

func toProducts(list []remoteProduct) []models.Product {
	out := make([]models.Product, 0, len(list))
	for _, p := range list {
		prod := models.Product{
			ID:               p.ID,
			Handle:           p.Handle,
			Title:            p.Title,
			Description:      p.Description,
			FeaturedImage:    p.FeaturedImage,
			Price:            p.PriceRange.MinVariantPrice,
			AvailableForSale: p.AvailableForSale,
		}
		if len(p.Variants.Edges) > 0 {
			prod.DefaultVariantID = p.Variants.Edges[0].Node.ID
		}
		out = append(out, prod)
	}
	return out
}

func clampFirst(first int) int {
	if first <= 0 {
		return 20
	}
	if first > maxProductsPage {
		return maxProductsPage
	}
	return first
}

// ListProducts returns the first products of the catalogue.
func (s *ShopifyStore) ListProducts(ctx context.Context, first int) ([]models.Product, error) {
	const op = "ListProducts"
	resp, err := s.raw(ctx, op, productsQuery, map[string]any{"first": clampFirst(first)})
	if err != nil {
		return nil, err
	}
	return normalizeProducts(op, resp.Data)
}

// CollectionProducts returns one collection with its first products.
func (s *ShopifyStore) CollectionProducts(ctx context.Context, handle string, first int) (models.Collection, error) {
	const op = "CollectionProducts"
	if handle == "" {
		return models.Collection{}, models.NewValidationError(op, "collection handle is required")
	}
	resp, err := s.raw(ctx, op, collectionProductsQuery, map[string]any{"handle": handle, "first": clampFirst(first)})
	if err != nil {
		return models.Collection{}, err
	}

	var data struct {
		Collection *struct {
			ID       string          `json:"id"`
			Handle   string          `json:"handle"`
			Title    string          `json:"title"`
			Products json.RawMessage `json:"products"`
		} `json:"collection"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return models.Collection{}, models.NewTransportError(op, fmt.Errorf("decoding data: %w", err))
	}
	if data.Collection == nil {
		return models.Collection{}, models.NewNotFoundError(op, models.ResourceCollection, "Collection not found")
	}

	var conn productConnection
	if err := json.Unmarshal(data.Collection.Products, &conn); err != nil {
		return models.Collection{}, models.NewUnknownError(op, "unrecognized products payload", err)
	}
	products, err := fromConnection(op, &conn)
	if err != nil {
		return models.Collection{}, err
	}
	return models.Collection{
		ID:       data.Collection.ID,
		Handle:   data.Collection.Handle,
		Title:    data.Collection.Title,
		Products: products,
	}, nil
}

func (s *ShopifyStore) raw(ctx context.Context, op, document string, vars map[string]any) (*graphql.Response, error) {
	if s.Client == nil {
		return nil, models.NewConfigurationError(op, models.ErrMsgNotConfigured)
	}
	resp, err := s.Client.Execute(ctx, document, vars)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, classifyTopLevel(op, resp, false)
	}
	return resp, nil
}
