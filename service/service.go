package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	models "storefront-cart/model"
	"storefront-cart/store"
)

// State is a step of the reconciliation state machine. States are not
// persisted; they exist for the transitions and the logs.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateMutating
	StateRepairing
	StateFallbackCreating
	StateReconciled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateMutating:
		return "mutating"
	case StateRepairing:
		return "repairing"
	case StateFallbackCreating:
		return "fallback_creating"
	case StateReconciled:
		return "reconciled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Service is the reconciliation orchestrator. It owns no cart state; every
// call resolves to a fresh snapshot from the store or a typed error.
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

type cartOp func(ctx context.Context, cartID string) (models.CartSnapshot, error)

// run takes one cart operation through Resolving, Mutating and, when the
// first candidate fails with a transport or cart not-found error, Repairing.
// Only an add whose every candidate reported cart not-found moves on to
// FallbackCreating. m is nil for reads.
func (s *Service) run(ctx context.Context, name, rawID string, m *models.PendingMutation, op cartOp) (models.CartSnapshot, error) {
	start := s.now()
	state := StateIdle
	attempt := 0
	log := s.logger.With(zap.String("op", name), zap.String("cart_id", rawID))
	if m != nil {
		log = log.With(zap.Stringer("mutation", m.Kind))
	}
	transition := func(next State) {
		log.Debug("cart state transition",
			zap.Stringer("from", state), zap.Stringer("to", next), zap.Int("attempt", attempt))
		state = next
	}

	transition(StateResolving)
	candidates := ResolveCandidates(rawID)
	if len(candidates) == 0 {
		transition(StateFailed)
		return models.CartSnapshot{}, models.NewValidationError(name, models.ErrMsgCartIDRequired)
	}

	var lastErr error
	for i, id := range candidates {
		attempt = i
		if m != nil {
			m.Attempt = i
		}
		if i == 0 {
			transition(StateMutating)
		} else {
			transition(StateRepairing)
		}
		snap, err := op(ctx, id)
		if err == nil {
			transition(StateReconciled)
			s.logOutcome(log, state, attempt, start, nil)
			return snap, nil
		}
		lastErr = err
		if !repairable(err) || ctx.Err() != nil {
			break
		}
	}

	if m != nil && m.Kind == models.MutationAdd && models.IsCartNotFound(lastErr) && ctx.Err() == nil {
		transition(StateFallbackCreating)
		snap, err := s.store.CreateCart(ctx, m.Lines)
		if err == nil {
			transition(StateReconciled)
			log.Info("replaced missing cart", zap.String("new_cart_id", snap.ID))
			s.logOutcome(log, state, attempt, start, nil)
			return snap, nil
		}
		lastErr = err
	}

	transition(StateFailed)
	s.logOutcome(log, state, attempt, start, lastErr)
	return models.CartSnapshot{}, lastErr
}

// repairable errors are worth another candidate identifier.
func repairable(err error) bool {
	return models.IsCartNotFound(err) || models.KindOf(err) == models.KindTransport
}

func (s *Service) logOutcome(log *zap.Logger, state State, attempt int, start time.Time, err error) {
	fields := []zap.Field{
		zap.Stringer("state", state),
		zap.Int("attempt", attempt),
		zap.Duration("duration", s.now().Sub(start)),
	}
	if err == nil {
		log.Info("cart operation reconciled", fields...)
		return
	}
	fields = append(fields, zap.Stringer("kind", models.KindOf(err)), zap.Error(err))
	switch models.KindOf(err) {
	case models.KindValidation, models.KindNotFound:
		log.Warn("cart operation failed", fields...)
	default:
		log.Error("cart operation failed", fields...)
	}
}

// GetCart reads a cart, repairing the identifier if needed. Reads never create.
func (s *Service) GetCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	return s.run(ctx, "GetCart", cartID, nil, s.store.FetchCart)
}

// CreateCart creates a new remote cart with lines.
func (s *Service) CreateCart(ctx context.Context, lines []models.LineInput) (models.CartSnapshot, error) {
	if err := validateLines("CreateCart", lines); err != nil {
		return models.CartSnapshot{}, err
	}
	start := s.now()
	snap, err := s.store.CreateCart(ctx, lines)
	log := s.logger.With(zap.String("op", "CreateCart"), zap.String("cart_id", snap.ID))
	if err != nil {
		s.logOutcome(log, StateFailed, 0, start, err)
		return models.CartSnapshot{}, err
	}
	s.logOutcome(log, StateReconciled, 0, start, nil)
	return snap, nil
}

// AddLines adds lines to the referenced cart, or creates a cart when there is
// no reference or the referenced cart no longer exists.
func (s *Service) AddLines(ctx context.Context, cartID string, lines []models.LineInput) (models.CartSnapshot, error) {
	if err := validateLines("AddLines", lines); err != nil {
		return models.CartSnapshot{}, err
	}
	if cartID == "" {
		return s.CreateCart(ctx, lines)
	}
	m := &models.PendingMutation{
		Kind:      models.MutationAdd,
		Reference: NewCartReference(cartID),
		Lines:     lines,
		StartedAt: s.now(),
	}
	return s.run(ctx, "AddLines", cartID, m, func(ctx context.Context, id string) (models.CartSnapshot, error) {
		return s.store.AddLines(ctx, id, lines)
	})
}

// UpdateLines sets quantities. Updates asking for less than one unit are
// routed to removal; the store never sees a non-positive quantity.
func (s *Service) UpdateLines(ctx context.Context, cartID string, updates []models.LineUpdate) (models.CartSnapshot, error) {
	const op = "UpdateLines"
	if len(updates) == 0 {
		return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgItemsRequired)
	}
	var keep []models.LineUpdate
	var drop []models.LineTarget
	for _, u := range updates {
		if u.LineID == "" && u.MerchandiseID == "" {
			return models.CartSnapshot{}, models.NewValidationError(op, "line id or merchandise id is required")
		}
		if u.Quantity < 1 {
			drop = append(drop, models.LineTarget{LineID: u.LineID, MerchandiseID: u.MerchandiseID})
			continue
		}
		keep = append(keep, u)
	}

	kind := models.MutationUpdateQuantity
	if len(keep) == 0 {
		kind = models.MutationRemove
	}
	m := &models.PendingMutation{
		Kind:      kind,
		Reference: NewCartReference(cartID),
		Updates:   keep,
		Targets:   drop,
		StartedAt: s.now(),
	}
	return s.run(ctx, op, cartID, m, func(ctx context.Context, id string) (models.CartSnapshot, error) {
		// Every removal target resolves before anything is sent, so a missing
		// line fails the whole call with the remote cart untouched.
		ids, err := s.resolveTargets(ctx, id, drop)
		if err != nil {
			return models.CartSnapshot{}, err
		}
		if len(keep) == 0 {
			return s.store.RemoveLines(ctx, id, ids)
		}
		updated, err := s.store.UpdateLines(ctx, id, keep)
		if err != nil || len(ids) == 0 {
			return updated, err
		}
		return s.store.RemoveLines(ctx, id, ids)
	})
}

// RemoveLines removes lines named by line id or merchandise id.
func (s *Service) RemoveLines(ctx context.Context, cartID string, targets []models.LineTarget) (models.CartSnapshot, error) {
	const op = "RemoveLines"
	if len(targets) == 0 {
		return models.CartSnapshot{}, models.NewValidationError(op, models.ErrMsgItemsRequired)
	}
	for _, t := range targets {
		if t.LineID == "" && t.MerchandiseID == "" {
			return models.CartSnapshot{}, models.NewValidationError(op, "line id or merchandise id is required")
		}
	}
	m := &models.PendingMutation{
		Kind:      models.MutationRemove,
		Reference: NewCartReference(cartID),
		Targets:   targets,
		StartedAt: s.now(),
	}
	return s.run(ctx, op, cartID, m, func(ctx context.Context, id string) (models.CartSnapshot, error) {
		return s.removeTargets(ctx, id, targets)
	})
}

// removeTargets resolves targets and removes them.
func (s *Service) removeTargets(ctx context.Context, cartID string, targets []models.LineTarget) (models.CartSnapshot, error) {
	ids, err := s.resolveTargets(ctx, cartID, targets)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	return s.store.RemoveLines(ctx, cartID, ids)
}

// resolveTargets maps merchandise targets to line ids against a fresh read,
// taken only when some target lacks a line id. A target with no matching line
// is a line not-found.
func (s *Service) resolveTargets(ctx context.Context, cartID string, targets []models.LineTarget) ([]string, error) {
	var current *models.CartSnapshot
	ids := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		id := t.LineID
		if id == "" {
			if current == nil {
				snap, err := s.store.FetchCart(ctx, cartID)
				if err != nil {
					return nil, err
				}
				current = &snap
			}
			line, ok := current.LineByMerchandise(t.MerchandiseID)
			if !ok {
				return nil, models.NewNotFoundError("RemoveLines", models.ResourceLine, models.ErrMsgItemNotFound)
			}
			id = line.ID
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ClearCart removes every line of the referenced cart.
func (s *Service) ClearCart(ctx context.Context, cartID string) (models.CartSnapshot, error) {
	m := &models.PendingMutation{
		Kind:      models.MutationClear,
		Reference: NewCartReference(cartID),
		StartedAt: s.now(),
	}
	return s.run(ctx, "ClearCart", cartID, m, s.store.ClearCart)
}

// Checkout returns the hosted checkout hand-off for a non-empty cart.
func (s *Service) Checkout(ctx context.Context, cartID string) (models.Checkout, models.CartSnapshot, error) {
	snap, err := s.GetCart(ctx, cartID)
	if err != nil {
		return models.Checkout{}, models.CartSnapshot{}, err
	}
	if snap.IsEmpty() {
		return models.Checkout{}, snap, models.NewValidationError("Checkout", models.ErrMsgCartEmpty)
	}
	if snap.CheckoutURL == "" {
		return models.Checkout{}, snap, models.NewUnknownError("Checkout", "cart has no checkout url", nil)
	}
	return models.Checkout{
		CartID:        snap.ID,
		CheckoutURL:   snap.CheckoutURL,
		TotalQuantity: snap.TotalQuantity,
		Total:         snap.Cost.TotalAmount,
	}, snap, nil
}

func (s *Service) ListProducts(ctx context.Context, first int) ([]models.Product, error) {
	return s.store.ListProducts(ctx, first)
}

func (s *Service) CollectionProducts(ctx context.Context, handle string, first int) (models.Collection, error) {
	return s.store.CollectionProducts(ctx, handle, first)
}

func validateLines(op string, lines []models.LineInput) error {
	if len(lines) == 0 {
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
