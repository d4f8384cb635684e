package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	models "storefront-cart/model"
	"storefront-cart/service"
)

const (
	DefaultCookieName   = "cartId"
	DefaultCookieMaxAge = 30 * 24 * time.Hour
)

type Options struct {
	CookieName   string
	CookieMaxAge time.Duration
	Logger       *zap.Logger
}

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc          service.ServiceInterface
	cookieName   string
	cookieMaxAge time.Duration
	logger       *zap.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, opts Options) *Handler {
	h := &Handler{
		svc:          s,
		cookieName:   opts.CookieName,
		cookieMaxAge: opts.CookieMaxAge,
		logger:       opts.Logger,
	}
	if h.cookieName == "" {
		h.cookieName = DefaultCookieName
	}
	if h.cookieMaxAge <= 0 {
		h.cookieMaxAge = DefaultCookieMaxAge
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.requestID, h.accessLog, h.recoverer)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Cart
	r.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", h.AddToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart", h.UpdateCart).Methods(http.MethodPut)
	r.HandleFunc("/cart", h.RemoveFromCart).Methods(http.MethodDelete)

	// Products
	r.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/collections/{handle}/products", h.CollectionProducts).Methods(http.MethodGet)

	// Checkout
	r.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	r.HandleFunc("/checkout/complete", h.CompleteCheckout).Methods(http.MethodPost)
}

// --- request / response shapes ---
type cartItemReq struct {
	ID            string   `json:"id"`
	MerchandiseID string   `json:"merchandiseId,omitempty"`
	Quantity      Quantity `json:"quantity"`
}

// variant returns the merchandise id; items name it "id", lines "merchandiseId".
func (i cartItemReq) variant() string {
	if i.ID != "" {
		return i.ID
	}
	return i.MerchandiseID
}

type addCartReq struct {
	CartID string        `json:"cartId,omitempty"`
	Items  []cartItemReq `json:"items"`
}

// lines entries carry a line id in "id" and an optional new variant.
type updateCartReq struct {
	CartID string        `json:"cartId,omitempty"`
	Items  []cartItemReq `json:"items,omitempty"`
	Lines  []cartItemReq `json:"lines,omitempty"`
}

type checkoutReq struct {
	CartID string `json:"cartId,omitempty"`
}

type cartResp struct {
	Success bool                 `json:"success"`
	Cart    *models.CartSnapshot `json:"cart"`
}

type errResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errResp{Error: msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeCartErr writes a classified error. Shopper-facing kinds carry their own
// message; the rest get the full chain as details.
func (h *Handler) writeCartErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	resp := errResp{Error: models.UserMessage(err)}
	if code == http.StatusInternalServerError {
		resp.Error = "Cart operation failed"
		resp.Details = err.Error()
		h.logger.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Stringer("kind", models.KindOf(err)),
			zap.Error(err))
	}
	writeJSON(w, code, resp)
}

func (h *Handler) writeCart(w http.ResponseWriter, code int, snap models.CartSnapshot) {
	h.setCartCookie(w, snap)
	writeJSON(w, code, cartResp{Success: true, Cart: &snap})
}

// setCartCookie remembers the cart, or forgets it once the cart is empty.
func (h *Handler) setCartCookie(w http.ResponseWriter, snap models.CartSnapshot) {
	if snap.IsEmpty() || snap.ID == "" {
		h.clearCartCookie(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    url.QueryEscape(snap.ID),
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCartCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// cartID returns explicit when set, else the cart cookie.
func (h *Handler) cartID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	c, err := r.Cookie(h.cookieName)
	if err != nil {
		return ""
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return c.Value
	}
	return v
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// --- Handler ---

// GetCart handles GET /cart?cartId=...
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := h.cartID(r, r.URL.Query().Get("cartId"))
	if id == "" {
		writeErr(w, http.StatusBadRequest, models.ErrMsgCartIDRequired)
		return
	}
	snap, err := h.svc.GetCart(r.Context(), id)
	if err != nil {
		if models.IsCartNotFound(err) {
			h.clearCartCookie(w)
		}
		h.writeCartErr(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

// AddToCart handles POST /cart
// body: { "cartId": "...", "items": [{ "id": "<variant>", "quantity": 2 }] }
// Without a cart id (body or cookie) a new cart is created.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addCartReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeErr(w, http.StatusBadRequest, models.ErrMsgItemsRequired)
		return
	}
	lines := make([]models.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		if it.variant() == "" {
			writeErr(w, http.StatusBadRequest, "item id is required")
			return
		}
		qty, ok := it.Quantity.OrDefault(1)
		if !ok || qty < 1 {
			writeErr(w, http.StatusBadRequest, models.ErrMsgQuantityInvalid)
			return
		}
		lines = append(lines, models.LineInput{MerchandiseID: it.variant(), Quantity: qty})
	}

	id := h.cartID(r, req.CartID)
	var (
		snap models.CartSnapshot
		err  error
	)
	if id == "" {
		snap, err = h.svc.CreateCart(r.Context(), lines)
	} else {
		snap, err = h.svc.AddLines(r.Context(), id, lines)
	}
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

// UpdateCart handles PUT /cart
// body: { "cartId": "...", "items": [{ "id": "<variant>", "quantity": 5 }] }
// or    { "cartId": "...", "lines": [{ "id": "<line>", "merchandiseId": "<variant>", "quantity": 1 }] }
// A quantity below one removes the line.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req updateCartReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := h.cartID(r, req.CartID)
	if id == "" {
		writeErr(w, http.StatusBadRequest, models.ErrMsgCartIDRequired)
		return
	}
	if len(req.Items) == 0 && len(req.Lines) == 0 {
		writeErr(w, http.StatusBadRequest, models.ErrMsgItemsRequired)
		return
	}

	updates := make([]models.LineUpdate, 0, len(req.Items)+len(req.Lines))
	for _, it := range req.Items {
		qty, ok := it.Quantity.Required()
		if !ok || it.variant() == "" {
			writeErr(w, http.StatusBadRequest, models.ErrMsgQuantityInvalid)
			return
		}
		updates = append(updates, models.LineUpdate{MerchandiseID: it.variant(), Quantity: qty})
	}
	for _, ln := range req.Lines {
		qty, ok := ln.Quantity.Required()
		if !ok || ln.ID == "" {
			writeErr(w, http.StatusBadRequest, models.ErrMsgQuantityInvalid)
			return
		}
		updates = append(updates, models.LineUpdate{LineID: ln.ID, MerchandiseID: ln.MerchandiseID, Quantity: qty})
	}

	snap, err := h.svc.UpdateLines(r.Context(), id, updates)
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

// RemoveFromCart handles DELETE /cart?cartId=...&variantId=...|lineId=...
// With neither variantId nor lineId every line is removed.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := h.cartID(r, q.Get("cartId"))
	if id == "" {
		writeErr(w, http.StatusBadRequest, models.ErrMsgCartIDRequired)
		return
	}

	var (
		snap models.CartSnapshot
		err  error
	)
	target := models.LineTarget{LineID: q.Get("lineId"), MerchandiseID: q.Get("variantId")}
	if target.LineID == "" && target.MerchandiseID == "" {
		snap, err = h.svc.ClearCart(r.Context(), id)
	} else {
		snap, err = h.svc.RemoveLines(r.Context(), id, []models.LineTarget{target})
	}
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, snap)
}

// ListProducts handles GET /products?first=N
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	first, ok := parseFirst(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "first must be a positive integer")
		return
	}
	ps, err := h.svc.ListProducts(r.Context(), first)
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "products": ps})
}

// CollectionProducts handles GET /collections/{handle}/products?first=N
func (h *Handler) CollectionProducts(w http.ResponseWriter, r *http.Request) {
	first, ok := parseFirst(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "first must be a positive integer")
		return
	}
	col, err := h.svc.CollectionProducts(r.Context(), mux.Vars(r)["handle"], first)
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "collection": col})
}

// Checkout handles POST /checkout
// body: { "cartId": "..." }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := h.cartID(r, req.CartID)
	if id == "" {
		writeErr(w, http.StatusBadRequest, models.ErrMsgCartIDRequired)
		return
	}
	co, snap, err := h.svc.Checkout(r.Context(), id)
	if err != nil {
		h.writeCartErr(w, r, err)
		return
	}
	h.setCartCookie(w, snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"checkoutUrl": co.CheckoutURL,
		"cart":        snap,
	})
}

// CompleteCheckout handles POST /checkout/complete. The remote checkout owns
// the order; all that is left here is forgetting the cart.
func (h *Handler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	h.clearCartCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// parseFirst reads the optional page size; 0 means the store default.
func parseFirst(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("first")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
