package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "storefront-cart/model"
	"storefront-cart/service"
)

const variant1 = "gid://shopify/ProductVariant/1"

type body struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error"`
	Details     string               `json:"details"`
	Cart        *models.CartSnapshot `json:"cart"`
	CheckoutURL string               `json:"checkoutUrl"`
}

func jsonReq(method, target, payload string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) body {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var b body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b), rec.Body.String())
	return b
}

func cartCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestCartLifecycle(t *testing.T) {
	r := newRouter(newMemStore())

	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`","quantity":2}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody(t, rec)
	require.True(t, b.Success)
	require.NotNil(t, b.Cart)
	require.Len(t, b.Cart.Lines, 1)
	assert.Equal(t, 2, b.Cart.Lines[0].Quantity)
	assert.Equal(t, variant1, b.Cart.Lines[0].Merchandise.ID)
	assert.Equal(t, 2, b.Cart.TotalQuantity)
	cartID := b.Cart.ID

	rec = serve(r, jsonReq(http.MethodPut, "/cart", `{"cartId":"`+cartID+`","items":[{"id":"`+variant1+`","quantity":5}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b = decodeBody(t, rec)
	assert.Equal(t, 5, b.Cart.TotalQuantity)

	q := url.Values{"cartId": {cartID}, "variantId": {variant1}}
	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/cart?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"lines":[]`)
	b = decodeBody(t, rec)
	assert.Empty(t, b.Cart.Lines)
	assert.Equal(t, 0, b.Cart.TotalQuantity)

	// empty cart forgets the cookie
	c := cartCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestAddValidationErrorIsBadRequest(t *testing.T) {
	st := newMemStore()
	st.rejects["gid://shopify/ProductVariant/9"] = "Only 0 items were added to your cart due to availability."
	r := newRouter(st)

	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"}]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	cartID := decodeBody(t, rec).Cart.ID

	rec = serve(r, jsonReq(http.MethodPost, "/cart", `{"cartId":"`+cartID+`","items":[{"id":"gid://shopify/ProductVariant/9","quantity":1}]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	b := decodeBody(t, rec)
	assert.False(t, b.Success)
	assert.Equal(t, "Only 0 items were added to your cart due to availability.", b.Error)
	assert.Equal(t, 1, st.createCount())
}

func TestAddToMissingCartCreatesNewCart(t *testing.T) {
	st := newMemStore()
	r := newRouter(st)

	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"cartId":"gid://shopify/Cart/404?key=old","items":[{"id":"`+variant1+`","quantity":3}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody(t, rec)
	assert.Equal(t, "gid://shopify/Cart/1", b.Cart.ID)
	assert.Equal(t, 3, b.Cart.TotalQuantity)
	assert.Equal(t, 1, st.createCount())
}

func TestUpdateMissingCartIsNotFound(t *testing.T) {
	st := newMemStore()
	r := newRouter(st)

	rec := serve(r, jsonReq(http.MethodPut, "/cart", `{"cartId":"gid://shopify/Cart/404","items":[{"id":"`+variant1+`","quantity":3}]}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrMsgCartNotFound, decodeBody(t, rec).Error)
	assert.Equal(t, 0, st.createCount())
}

func TestStaleSuffixIsRepaired(t *testing.T) {
	r := newRouter(newMemStore())
	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"}]}`))
	cartID := decodeBody(t, rec).Cart.ID

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/cart?cartId="+url.QueryEscape(cartID+"?key=stale"), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cartID, decodeBody(t, rec).Cart.ID)
}

func TestGetCart(t *testing.T) {
	r := newRouter(newMemStore())

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrMsgCartIDRequired, decodeBody(t, rec).Error)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/cart?cartId=gid://shopify/Cart/404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeBody(t, rec).Success)
}

func TestCartCookieFallback(t *testing.T) {
	r := newRouter(newMemStore())

	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`","quantity":1}]}`))
	c := cartCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(DefaultCookieMaxAge.Seconds()), c.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(c)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gid://shopify/Cart/1", decodeBody(t, rec).Cart.ID)

	// a second add through the cookie lands in the same cart
	req = jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`","quantity":"2"}]}`)
	req.AddCookie(c)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody(t, rec).Cart.TotalQuantity)
}

func TestAddQuantityCoercion(t *testing.T) {
	cases := []struct {
		name     string
		quantity string
		code     int
		want     int
	}{
		{"missing defaults to one", ``, http.StatusOK, 1},
		{"numeric string", `,"quantity":"3"`, http.StatusOK, 3},
		{"fraction truncated", `,"quantity":2.7`, http.StatusOK, 2},
		{"zero", `,"quantity":0`, http.StatusBadRequest, 0},
		{"negative", `,"quantity":-1`, http.StatusBadRequest, 0},
		{"not a number", `,"quantity":"many"`, http.StatusBadRequest, 0},
		{"boolean", `,"quantity":true`, http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(newMemStore())
			rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"`+tc.quantity+`}]}`))
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			b := decodeBody(t, rec)
			if tc.code == http.StatusOK {
				assert.Equal(t, tc.want, b.Cart.TotalQuantity)
			} else {
				assert.Equal(t, models.ErrMsgQuantityInvalid, b.Error)
			}
		})
	}
}

func TestUpdateToZeroRemovesLine(t *testing.T) {
	r := newRouter(newMemStore())
	rec := serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`","quantity":2},{"id":"gid://shopify/ProductVariant/2"}]}`))
	b := decodeBody(t, rec)
	lineID := b.Cart.Lines[0].ID

	rec = serve(r, jsonReq(http.MethodPut, "/cart", `{"cartId":"`+b.Cart.ID+`","lines":[{"id":"`+lineID+`","quantity":0}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b = decodeBody(t, rec)
	require.Len(t, b.Cart.Lines, 1)
	assert.Equal(t, "gid://shopify/ProductVariant/2", b.Cart.Lines[0].Merchandise.ID)
}

func TestUpdateChangesVariant(t *testing.T) {
	r := newRouter(newMemStore())
	b := decodeBody(t, serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"}]}`)))
	lineID := b.Cart.Lines[0].ID

	rec := serve(r, jsonReq(http.MethodPut, "/cart",
		`{"cartId":"`+b.Cart.ID+`","lines":[{"id":"`+lineID+`","merchandiseId":"gid://shopify/ProductVariant/3","quantity":1}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gid://shopify/ProductVariant/3", decodeBody(t, rec).Cart.Lines[0].Merchandise.ID)
}

func TestRemoveUnknownVariantIsNotFound(t *testing.T) {
	r := newRouter(newMemStore())
	b := decodeBody(t, serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"}]}`)))

	q := url.Values{"cartId": {b.Cart.ID}, "variantId": {"gid://shopify/ProductVariant/9"}}
	rec := serve(r, httptest.NewRequest(http.MethodDelete, "/cart?"+q.Encode(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrMsgItemNotFound, decodeBody(t, rec).Error)
}

func TestDeleteWithoutTargetClearsCart(t *testing.T) {
	r := newRouter(newMemStore())
	b := decodeBody(t, serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`","quantity":4}]}`)))

	rec := serve(r, httptest.NewRequest(http.MethodDelete, "/cart?cartId="+url.QueryEscape(b.Cart.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody(t, rec).Cart.TotalQuantity)
}

func TestCheckout(t *testing.T) {
	r := newRouter(newMemStore())
	b := decodeBody(t, serve(r, jsonReq(http.MethodPost, "/cart", `{"items":[{"id":"`+variant1+`"}]}`)))

	rec := serve(r, jsonReq(http.MethodPost, "/checkout", `{"cartId":"`+b.Cart.ID+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://shop.example/cart/c/"+b.Cart.ID, decodeBody(t, rec).CheckoutURL)

	serve(r, httptest.NewRequest(http.MethodDelete, "/cart?cartId="+url.QueryEscape(b.Cart.ID), nil))
	rec = serve(r, jsonReq(http.MethodPost, "/checkout", `{"cartId":"`+b.Cart.ID+`"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrMsgCartEmpty, decodeBody(t, rec).Error)

	rec = serve(r, jsonReq(http.MethodPost, "/checkout/complete", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)
	c := cartCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestProducts(t *testing.T) {
	r := newRouter(newMemStore())

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/products?first=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"handle":"tee"`)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/products?first=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/collections/summer/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/collections/winter/products", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorsAreAlwaysJSON(t *testing.T) {
	r := newRouter(newMemStore())

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeBody(t, rec).Success)

	rec = serve(r, httptest.NewRequest(http.MethodPatch, "/cart", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, decodeBody(t, rec).Success)

	rec = serve(r, jsonReq(http.MethodPost, "/cart", `{"items":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json", decodeBody(t, rec).Error)
}

// panicService panics on every call through the nil embedded interface.
type panicService struct{ service.ServiceInterface }

func TestPanicIsJSON(t *testing.T) {
	r := mux.NewRouter()
	NewHandler(panicService{}, Options{}).RegisterRoutes(r)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/cart?cartId=x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeBody(t, rec).Success)
}

func TestRequestIDEchoed(t *testing.T) {
	r := newRouter(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	assert.Equal(t, "req-123", serve(r, req).Header().Get(RequestIDHeader))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}
