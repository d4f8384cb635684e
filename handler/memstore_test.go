package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"

	models "storefront-cart/model"
	"storefront-cart/service"
)

// memStore stands in for the remote cart API. Carts are keyed by their bare
// id, so an id with a stale access-key suffix only resolves once repaired.
type memStore struct {
	mu       sync.Mutex
	carts    map[string]*models.CartSnapshot
	rejects  map[string]string
	nextCart int
	nextLine int
	creates  int
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]*models.CartSnapshot{}, rejects: map[string]string{}}
}

func (m *memStore) cart(op, id string) (*models.CartSnapshot, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, models.NewNotFoundError(op, models.ResourceCart, models.ErrMsgCartNotFound)
	}
	return c, nil
}

func (m *memStore) snapshot(c *models.CartSnapshot) models.CartSnapshot {
	out := *c
	out.Lines = make([]models.LineItem, len(c.Lines))
	copy(out.Lines, c.Lines)
	out.TotalQuantity = 0
	for _, l := range out.Lines {
		out.TotalQuantity += l.Quantity
	}
	return out
}

func (m *memStore) add(op string, c *models.CartSnapshot, lines []models.LineInput) error {
	for _, in := range lines {
		if msg, ok := m.rejects[in.MerchandiseID]; ok {
			return models.NewValidationError(op, msg)
		}
	}
	for _, in := range lines {
		merged := false
		for i := range c.Lines {
			if c.Lines[i].Merchandise.ID == in.MerchandiseID {
				c.Lines[i].Quantity += in.Quantity
				merged = true
			}
		}
		if !merged {
			m.nextLine++
			c.Lines = append(c.Lines, models.LineItem{
				ID:          fmt.Sprintf("gid://shopify/CartLine/%d", m.nextLine),
				Quantity:    in.Quantity,
				Merchandise: models.Merchandise{ID: in.MerchandiseID},
			})
		}
	}
	return nil
}

func (m *memStore) FetchCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cart("FetchCart", cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	return m.snapshot(c), nil
}

func (m *memStore) CreateCart(ctx context.Context, lines []models.LineInput) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCart++
	id := fmt.Sprintf("gid://shopify/Cart/%d", m.nextCart)
	c := &models.CartSnapshot{ID: id, CheckoutURL: "https://shop.example/cart/c/" + id, Lines: []models.LineItem{}}
	if err := m.add("CreateCart", c, lines); err != nil {
		return models.CartSnapshot{}, err
	}
	m.carts[id] = c
	m.creates++
	return m.snapshot(c), nil
}

func (m *memStore) AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cart("AddLines", cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	if err := m.add("AddLines", c, lines); err != nil {
		return models.CartSnapshot{}, err
	}
	return m.snapshot(c), nil
}

func (m *memStore) UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cart("UpdateLines", cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	for _, u := range updates {
		found := false
		for i := range c.Lines {
			l := &c.Lines[i]
			if (u.LineID != "" && l.ID == u.LineID) || (u.LineID == "" && l.Merchandise.ID == u.MerchandiseID) {
				l.Quantity = u.Quantity
				if u.LineID != "" && u.MerchandiseID != "" {
					l.Merchandise.ID = u.MerchandiseID
				}
				found = true
				break
			}
		}
		if !found {
			return models.CartSnapshot{}, models.NewNotFoundError("UpdateLines", models.ResourceLine, models.ErrMsgItemNotFound)
		}
	}
	return m.snapshot(c), nil
}

func (m *memStore) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cart("RemoveLines", cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	drop := map[string]bool{}
	for _, id := range lineIDs {
		drop[id] = true
	}
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return m.snapshot(c), nil
}

func (m *memStore) ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cart("ClearCart", cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	c.Lines = []models.LineItem{}
	return m.snapshot(c), nil
}

func (m *memStore) ListProducts(ctx context.Context, first int) ([]models.Product, error) {
	return []models.Product{{ID: "gid://shopify/Product/1", Handle: "tee", DefaultVariantID: "gid://shopify/ProductVariant/1"}}, nil
}

func (m *memStore) CollectionProducts(ctx context.Context, handle string, first int) (models.Collection, error) {
	if handle != "summer" {
		return models.Collection{}, models.NewNotFoundError("CollectionProducts", models.ResourceCollection, "Collection not found")
	}
	return models.Collection{Handle: "summer"}, nil
}

func (m *memStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// newRouter wires the real orchestrator over st.
func newRouter(st *memStore) http.Handler {
	r := mux.NewRouter()
	NewHandler(service.NewService(st, nil), Options{}).RegisterRoutes(r)
	return r
}

// serve runs one request against h.
func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
