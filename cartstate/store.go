// Package cartstate holds the shopper-facing view of one session's cart. It
// applies edits optimistically, then replaces them with whatever snapshot the
// orchestrator returns, or rolls back to the last reconciled snapshot on error.
package cartstate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	models "storefront-cart/model"
	"storefront-cart/refstore"
)

// Orchestrator is the part of the reconciliation service the store drives.
type Orchestrator interface {
	GetCart(ctx context.Context, cartID string) (models.CartSnapshot, error)
	AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error)
	UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error)
	RemoveLines(ctx context.Context, cartID string, targets []models.LineTarget) (models.CartSnapshot, error)
	ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error)
}

// Item is what a shopper adds: a variant plus the display data shown until the
// remote cart answers.
type Item struct {
	MerchandiseID string
	Title         string
	ProductHandle string
	Image         *models.Image
	Price         models.Money
}

// Event is delivered to subscribers after every state change. Pending is set
// while an optimistic edit waits for the remote cart; Err is set on rollback.
type Event struct {
	CartID  string
	Items   []models.LineItem
	Pending bool
	Err     error
}

// Store is not shared between sessions.
type Store struct {
	orch      Orchestrator
	refs      refstore.Store
	sessionID string
	logger    *zap.Logger

	mu         sync.Mutex
	ref        string
	reconciled models.CartSnapshot
	items      []models.LineItem
	subs       map[int]func(Event)
	nextSub    int
}

func New(orch Orchestrator, refs refstore.Store, sessionID string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		orch:      orch,
		refs:      refs,
		sessionID: sessionID,
		logger:    logger.With(zap.String("session_id", sessionID)),
		subs:      make(map[int]func(Event)),
	}
}

// Load restores the session's cart. With no persisted reference there is no
// cart and nothing is fetched. A reference to a cart that no longer exists is
// forgotten.
func (s *Store) Load(ctx context.Context) error {
	ref, err := s.refs.Load(ctx, s.sessionID)
	if err != nil {
		return err
	}
	if ref == "" {
		s.reset()
		return nil
	}
	snap, err := s.orch.GetCart(ctx, ref)
	if models.IsCartNotFound(err) {
		s.logger.Info("forgetting missing cart", zap.String("cart_id", ref))
		s.reset()
		return s.refs.Clear(ctx, s.sessionID)
	}
	if err != nil {
		return err
	}
	return s.apply(ctx, snap)
}

// Items returns the visible lines, optimistic edits included.
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.items)
}

// Snapshot returns the last reconciled snapshot.
func (s *Store) Snapshot() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.reconciled
	snap.Lines = cloneLines(snap.Lines)
	return snap
}

// CartID returns the current cart reference, "" when there is no cart.
func (s *Store) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// Subscribe registers fn for state changes and returns its cancel func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AddItem bumps the quantity of a line already holding the variant, or appends
// a provisional line, then adds it remotely.
func (s *Store) AddItem(ctx context.Context, item Item, quantity int) error {
	if item.MerchandiseID == "" {
		return models.NewValidationError("AddItem", "merchandise id is required")
	}
	if quantity < 1 {
		return models.NewValidationError("AddItem", models.ErrMsgQuantityInvalid)
	}

	ref := s.edit(func(items []models.LineItem) []models.LineItem {
		for i := range items {
			if items[i].MerchandiseID() == item.MerchandiseID {
				items[i].Quantity += quantity
				return items
			}
		}
		return append(items, models.LineItem{
			Quantity: quantity,
			Merchandise: models.Merchandise{
				ID:      item.MerchandiseID,
				Title:   item.Title,
				Image:   item.Image,
				Product: models.ProductRef{Handle: item.ProductHandle},
			},
			Cost: models.LineCost{AmountPerQuantity: item.Price},
		})
	})

	snap, err := s.orch.AddLines(ctx, ref, []models.LineInput{{MerchandiseID: item.MerchandiseID, Quantity: quantity}})
	return s.settle(ctx, "AddItem", snap, err)
}

// UpdateItemQuantity sets the quantity of the line named by line id or variant
// id. A quantity below one removes the line.
func (s *Store) UpdateItemQuantity(ctx context.Context, target string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, target)
	}
	lt, ok := s.lookup(target)
	if !ok {
		return models.NewNotFoundError("UpdateItemQuantity", models.ResourceLine, models.ErrMsgItemNotFound)
	}

	ref := s.edit(func(items []models.LineItem) []models.LineItem {
		if i := indexOf(items, lt); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})

	snap, err := s.orch.UpdateLines(ctx, ref, []models.LineUpdate{{
		LineID:        lt.LineID,
		MerchandiseID: lt.MerchandiseID,
		Quantity:      quantity,
	}})
	return s.settle(ctx, "UpdateItemQuantity", snap, err)
}

// RemoveItem drops the line named by line id or variant id. The persisted
// reference is cleared when the cart ends up empty.
func (s *Store) RemoveItem(ctx context.Context, target string) error {
	lt, ok := s.lookup(target)
	if !ok {
		return models.NewNotFoundError("RemoveItem", models.ResourceLine, models.ErrMsgItemNotFound)
	}

	ref := s.edit(func(items []models.LineItem) []models.LineItem {
		if i := indexOf(items, lt); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
		return items
	})

	snap, err := s.orch.RemoveLines(ctx, ref, []models.LineTarget{lt})
	return s.settle(ctx, "RemoveItem", snap, err)
}

// Clear empties the cart locally and forgets the reference straight away. The
// remote clear still runs; its failure is logged only.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	ref := s.ref
	s.mu.Unlock()

	s.reset()
	if err := s.refs.Clear(ctx, s.sessionID); err != nil {
		return err
	}
	if ref == "" {
		return nil
	}
	if _, err := s.orch.ClearCart(ctx, ref); err != nil {
		s.logger.Warn("remote cart clear failed", zap.String("cart_id", ref), zap.Error(err))
	}
	return nil
}

// lookup resolves target against the visible lines. A provisional line has no
// line id yet, so it is addressed by variant and resolved remotely.
func (s *Store) lookup(target string) (models.LineTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target == "" || s.ref == "" {
		return models.LineTarget{}, false
	}
	for _, l := range s.items {
		if l.ID != "" && l.ID == target {
			return models.LineTarget{LineID: l.ID}, true
		}
	}
	for _, l := range s.items {
		if l.MerchandiseID() == target {
			if l.ID != "" {
				return models.LineTarget{LineID: l.ID}, true
			}
			return models.LineTarget{MerchandiseID: target}, true
		}
	}
	return models.LineTarget{}, false
}

// edit applies an optimistic change and returns the reference to mutate.
func (s *Store) edit(fn func([]models.LineItem) []models.LineItem) string {
	s.mu.Lock()
	s.items = fn(cloneLines(s.items))
	ref := s.ref
	ev := Event{CartID: ref, Items: cloneLines(s.items), Pending: true}
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, ev)
	return ref
}

// settle applies the orchestrator's answer: the snapshot replaces every line,
// or the visible lines go back to the last reconciled ones.
func (s *Store) settle(ctx context.Context, op string, snap models.CartSnapshot, err error) error {
	if err == nil {
		return s.apply(ctx, snap)
	}

	s.mu.Lock()
	s.items = cloneLines(s.reconciled.Lines)
	ev := Event{CartID: s.ref, Items: cloneLines(s.items), Err: err}
	subs := s.subscribers()
	s.mu.Unlock()

	s.logger.Warn("cart edit rolled back", zap.String("op", op), zap.Stringer("kind", models.KindOf(err)), zap.Error(err))
	publish(subs, ev)
	return err
}

func (s *Store) apply(ctx context.Context, snap models.CartSnapshot) error {
	s.mu.Lock()
	s.reconciled = snap
	s.reconciled.Lines = cloneLines(snap.Lines)
	s.items = cloneLines(snap.Lines)
	if snap.IsEmpty() {
		s.ref = ""
	} else {
		s.ref = snap.ID
	}
	ref := s.ref
	ev := Event{CartID: ref, Items: cloneLines(s.items)}
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, ev)
	if ref == "" {
		return s.refs.Clear(ctx, s.sessionID)
	}
	return s.refs.Save(ctx, s.sessionID, ref)
}

func (s *Store) reset() {
	s.mu.Lock()
	s.ref = ""
	s.reconciled = models.CartSnapshot{}
	s.items = nil
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, Event{})
}

// subscribers must be called with s.mu held.
func (s *Store) subscribers() []func(Event) {
	out := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func indexOf(items []models.LineItem, t models.LineTarget) int {
	for i, l := range items {
		if t.LineID != "" && l.ID == t.LineID {
			return i
		}
		if t.LineID == "" && l.MerchandiseID() == t.MerchandiseID {
			return i
		}
	}
	return -1
}

func cloneLines(lines []models.LineItem) []models.LineItem {
	if lines == nil {
		return nil
	}
	out := make([]models.LineItem, len(lines))
	copy(out, lines)
	return out
}
