package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront-cart/graphql"
	models "storefront-cart/model"
)

// DefaultLineLimit is the line page size requested for every cart. Carts with
// more lines are returned truncated and flagged.
const DefaultLineLimit = 100

// clearPasses bounds how many pages ClearCart removes.
const clearPasses = 10

// Options tunes a ShopifyStore.
type Options struct {
	LineLimit          int
	SerializeMutations bool
	Logger             *zap.Logger
}

// ShopifyStore is a Store backed by the Storefront GraphQL API.
type ShopifyStore struct {
	Client graphql.Executor

	lineLimit int
	serialize bool
	logger    *zap.Logger

	// per-cart mutexes so mutations from this process against the same cart
	// reach the remote service one at a time. Keys are normalized cart ids;
	// an entry lives only while someone holds or waits for it.
	locksMu sync.Mutex
	locks   map[string]*cartLock

	// concurrent reads of the same cart share one remote call
	reads singleflight.Group
}

func NewShopifyStore(client graphql.Executor, opts Options) *ShopifyStore {
	if opts.LineLimit <= 0 {
		opts.LineLimit = DefaultLineLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ShopifyStore{
		Client:    client,
		lineLimit: opts.LineLimit,
		serialize: opts.SerializeMutations,
		logger:    opts.Logger,
		locks:     make(map[string]*cartLock),
	}
}

type cartLock struct {
	mu   sync.Mutex
	refs int
}

// helper: acquire per-cart lock (process-local). Returns unlock func.
func (s *ShopifyStore) lockForCart(cartID string) func() {
	if !s.serialize {
		return func() {}
	}
	key, _, _ := strings.Cut(cartID, "?")

	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &cartLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

func (s *ShopifyStore) execute(ctx context.Context, op, document string, vars map[string]any, cartScoped bool, out any) error {
	if s.Client == nil {
		return models.NewConfigurationError(op, models.ErrMsgNotConfigured)
	}
	resp, err := s.Client.Execute(ctx, document, vars)
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return classifyTopLevel(op, resp, cartScoped)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return models.NewTransportError(op, fmt.Errorf("decoding data: %w", err))
	}
	return nil
}

// mutate runs a cart mutation whose payload sits under data.<field>.
func (s *ShopifyStore) mutate(ctx context.Context, op, field, document string, vars map[string]any) (models.CartSnapshot, error) {
	vars["lineLimit"] = s.lineLimit
	var data map[string]*cartPayload
	if err := s.execute(ctx, op, document, vars, true, &data); err != nil {
		return models.CartSnapshot{}, err
	}
	payload := data[field]
	if payload == nil {
		return models.CartSnapshot{}, models.NewUnknownError(op, fmt.Sprintf("response has no %s payload", field), nil)
	}
	if err := classifyUserErrors(op, payload.UserErrors); err != nil {
		return models.CartSnapshot{}, err
	}
	return normalizeCart(op, payload.Cart, s.logger)
}

// FetchCart reads one cart. A cart the remote service does not know is a
// cart not-found.
func (s *ShopifyStore) FetchCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	if cartID == "" {
		return models.CartSnapshot{}, models.NewValidationError("FetchCart", models.ErrMsgCartIDRequired)
	}
	// The shared call outlives any one caller. The client bounds it with its
	// own timeout.
	shared := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(cartID, func() (any, error) {
		return s.fetchCart(shared, cartID)
	})
	select {
	case <-ctx.Done():
		return models.CartSnapshot{}, models.NewTransportError("FetchCart", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.CartSnapshot{}, res.Err
		}
		return res.Val.(models.CartSnapshot), nil
	}
}

func (s *ShopifyStore) fetchCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	const op = "FetchCart"
	var data struct {
		Cart *remoteCart `json:"cart"`
	}
	vars := map[string]any{"cartId": cartID, "lineLimit": s.lineLimit}
	if err := s.execute(ctx, op, cartQuery, vars, true, &data); err != nil {
		return models.CartSnapshot{}, err
	}
	return normalizeCart(op, data.Cart, s.logger)
}

// CreateCart creates a remote cart holding lines. Quantities must already be
// positive; this is checked, not coerced.
func (s *ShopifyStore) CreateCart(ctx context.Context, lines []models.LineInput) (models.CartSnapshot, error) {
	const op = "CreateCart"
	if err := validateLines(op, lines, true); err != nil {
		return models.CartSnapshot{}, err
	}
	input := map[string]any{"lines": lineInputs(lines)}
	return s.mutate(ctx, op, "cartCreate", cartCreateMutation, map[string]any{"input": input})
}

// AddLines adds lines to an existing cart. Remote userErrors come back as
// validation errors unless they say the cart itself is missing.
func (s *ShopifyStore) AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error) {
	const op = "AddLines"
	if cartID == "" {
		return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgCartIDRequired)
	}
	if err := validateLines(op, lines, false); err != nil {
		return models.CartSnapshot{}, err
	}
	unlock := s.lockForCart(cartID)
	defer unlock()

	return s.mutate(ctx, op, "cartLinesAdd", cartLinesAddMutation, map[string]any{
		"cartId": cartID,
		"lines":  lineInputs(lines),
	})
}

// UpdateLines sets line quantities. Updates without a line id are resolved
// against the current cart by merchandise id first.
func (s *ShopifyStore) UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error) {
	const op = "UpdateLines"
	if cartID == "" {
		return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgCartIDRequired)
	}
	if len(updates) == 0 {
		return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgItemsRequired)
	}
	for _, u := range updates {
		if u.Quantity < 1 {
			return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgQuantityInvalid)
		}
		if u.LineID == "" && u.MerchandiseID == "" {
			return models.CartSnapshot{}, models.NewValidationError(op, "line id or merchandise id is required")
		}
	}

	unlock := s.lockForCart(cartID)
	defer unlock()

	resolved, err := s.resolveUpdates(ctx, op, cartID, updates)
	if err != nil {
		return models.CartSnapshot{}, err
	}

	lines := make([]map[string]any, 0, len(resolved))
	for _, u := range resolved {
		l := map[string]any{"id": u.LineID, "quantity": u.Quantity}
		if u.MerchandiseID != "" {
			l["merchandiseId"] = u.MerchandiseID
		}
		lines = append(lines, l)
	}
	return s.mutate(ctx, op, "cartLinesUpdate", cartLinesUpdateMutation, map[string]any{
		"cartId": cartID,
		"lines":  lines,
	})
}

func (s *ShopifyStore) resolveUpdates(ctx context.Context, op, cartID string, updates []models.LineUpdate) ([]models.LineUpdate, error) {
	out := make([]models.LineUpdate, 0, len(updates))
	var snap *models.CartSnapshot
	for _, u := range updates {
		if u.LineID != "" {
			out = append(out, u)
			continue
		}
		if snap == nil {
			current, err := s.fetchCart(ctx, cartID)
			if err != nil {
				return nil, err
			}
			snap = &current
		}
		line, ok := snap.LineByMerchandise(u.MerchandiseID)
		if !ok {
			return nil, models.NewNotFoundError(op, models.ResourceLine, models.ErrMsgItemNotFound)
		}
		out = append(out, models.LineUpdate{LineID: line.ID, Quantity: u.Quantity})
	}
	return out, nil
}

// RemoveLines removes lines by line id.
func (s *ShopifyStore) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (models.CartSnapshot, error) {
	if cartID == "" {
		return models.CartSnapshot{}, models.NewValidationError("RemoveLines", models.ErrMsgCartIDRequired)
	}
	if len(lineIDs) == 0 {
		return models.CartSnapshot{}, models.NewValidationError("RemoveLines", models.ErrMsgItemsRequired)
	}
	unlock := s.lockForCart(cartID)
	defer unlock()
	return s.removeLines(ctx, cartID, lineIDs)
}

func (s *ShopifyStore) removeLines(ctx context.Context, cartID string, lineIDs []string) (models.CartSnapshot, error) {
	return s.mutate(ctx, "RemoveLines", "cartLinesRemove", cartLinesRemoveMutation, map[string]any{
		"cartId":  cartID,
		"lineIds": lineIDs,
	})
}

// ClearCart removes every line. An already empty cart is returned as is.
func (s *ShopifyStore) ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	if cartID == "" {
		return models.CartSnapshot{}, models.NewValidationError("ClearCart", models.ErrMsgCartIDRequired)
	}
	unlock := s.lockForCart(cartID)
	defer unlock()

	snap, err := s.fetchCart(ctx, cartID)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	for i := 0; i < clearPasses && !snap.IsEmpty(); i++ {
		snap, err = s.removeLines(ctx, cartID, snap.LineIDs())
		if err != nil {
			return models.CartSnapshot{}, err
		}
	}
	if !snap.IsEmpty() {
		s.logger.Warn("cart still has lines after clearing",
			zap.String("cart_id", cartID), zap.Int("lines", len(snap.Lines)))
	}
	return snap, nil
}

func validateLines(op string, lines []models.LineInput, allowEmpty bool) error {
	if len(lines) == 0 && !allowEmpty {
		return models.NewValidationError(op, models.ErrMsgItemsRequired)
	}
	for _, l := range lines {
		if l.MerchandiseID == "" {
			return models.NewValidationError(op, "merchandise id is required")
		}
		if l.Quantity < 1 {
			return models.NewValidationError(op, models.ErrMsgQuantityInvalid)
		}
	}
	return nil
}

func lineInputs(lines []models.LineInput) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{"merchandiseId": l.MerchandiseID, "quantity": l.Quantity})
	}
	return out
}
