package store

import (
	"strings"

	"go.uber.org/zap"

	"storefront-cart/graphql"
	models "storefront-cart/model"
)

// --- remote shapes ---

type remoteMerchandise struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Image   *models.Image     `json:"image"`
	Product models.ProductRef `json:"product"`
}

type remoteLine struct {
	ID          string            `json:"id"`
	Quantity    int               `json:"quantity"`
	Cost        models.LineCost   `json:"cost"`
	Merchandise remoteMerchandise `json:"merchandise"`
}

type remoteCart struct {
	ID            string          `json:"id"`
	CheckoutURL   string          `json:"checkoutUrl"`
	TotalQuantity int             `json:"totalQuantity"`
	Cost          models.CartCost `json:"cost"`
	Lines         struct {
		PageInfo struct {
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pageInfo"`
		Edges []struct {
			Node remoteLine `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

type cartPayload struct {
	Cart       *remoteCart `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

// normalizeCart turns the remote cart into a snapshot. A nil cart is a cart
// not-found.
func normalizeCart(op string, rc *remoteCart, logger *zap.Logger) (models.CartSnapshot, error) {
	if rc == nil {
		return models.CartSnapshot{}, models.NewNotFoundError(op, models.ResourceCart, models.ErrMsgCartNotFound)
	}

	snap := models.CartSnapshot{
		ID:            rc.ID,
		CheckoutURL:   rc.CheckoutURL,
		TotalQuantity: rc.TotalQuantity,
		Cost:          rc.Cost,
		Lines:         make([]models.LineItem, 0, len(rc.Lines.Edges)),
		Truncated:     rc.Lines.PageInfo.HasNextPage,
	}
	for _, e := range rc.Lines.Edges {
		n := e.Node
		if n.Quantity < 1 {
			logger.Warn("dropping cart line with non-positive quantity",
				zap.String("cart_id", rc.ID), zap.String("line_id", n.ID), zap.Int("quantity", n.Quantity))
			continue
		}
		snap.Lines = append(snap.Lines, models.LineItem{
			ID:       n.ID,
			Quantity: n.Quantity,
			Cost:     n.Cost,
			Merchandise: models.Merchandise{
				ID:      n.Merchandise.ID,
				Title:   n.Merchandise.Title,
				Image:   n.Merchandise.Image,
				Product: n.Merchandise.Product,
			},
		})
	}

	if snap.Truncated {
		logger.Warn("cart has more lines than the page limit; snapshot is truncated",
			zap.String("cart_id", snap.ID), zap.Int("lines", len(snap.Lines)))
	}
	checkTotals(snap, logger)
	return snap, nil
}

// checkTotals only reports; amounts are owned by the remote service.
func checkTotals(snap models.CartSnapshot, logger *zap.Logger) {
	sub, err := snap.Cost.SubtotalAmount.Decimal()
	if err != nil {
		logger.Warn("unparseable cart subtotal", zap.String("cart_id", snap.ID), zap.Error(err))
		return
	}
	total, err := snap.Cost.TotalAmount.Decimal()
	if err != nil {
		logger.Warn("unparseable cart total", zap.String("cart_id", snap.ID), zap.Error(err))
		return
	}
	if total.LessThan(sub) {
		logger.Warn("cart total below subtotal",
			zap.String("cart_id", snap.ID),
			zap.String("subtotal", sub.String()),
			zap.String("total", total.String()))
	}
}

// classifyUserErrors maps mutation userErrors. Errors about the cart id mean
// the cart is gone; everything else is a validation error carrying the remote
// message.
func classifyUserErrors(op string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, ue := range errs {
		if cartMissing(ue) {
			return models.NewNotFoundError(op, models.ResourceCart, models.ErrMsgCartNotFound)
		}
		msgs = append(msgs, ue.Message)
	}
	return models.NewValidationError(op, strings.Join(msgs, "; "))
}

func cartMissing(ue userError) bool {
	if len(ue.Field) > 0 && ue.Field[0] == "cartId" {
		return true
	}
	return mentionsMissing(ue.Message)
}

func mentionsMissing(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "cart does not exist") ||
		strings.Contains(m, "cart not found") ||
		strings.Contains(m, "invalid global id")
}

// classifyTopLevel maps top-level GraphQL errors. cartScoped marks documents
// that address a cart by id, where an unresolvable id means not-found.
func classifyTopLevel(op string, resp *graphql.Response, cartScoped bool) error {
	for _, e := range resp.Errors {
		switch e.Code() {
		case "THROTTLED", "INTERNAL_SERVER_ERROR", "SERVICE_UNAVAILABLE":
			return models.NewTransportError(op, &remoteError{msg: resp.Messages()})
		case "ACCESS_DENIED", "UNAUTHORIZED":
			return models.NewConfigurationError(op, resp.Messages())
		}
		if cartScoped && (mentionsMissing(e.Message) || strings.Contains(strings.ToLower(e.Message), "does not exist")) {
			return models.NewNotFoundError(op, models.ResourceCart, models.ErrMsgCartNotFound)
		}
	}
	return models.NewUnknownError(op, "graphql error", &remoteError{msg: resp.Messages()})
}

type remoteError struct{ msg string }

func (e *remoteError) Error() string { return e.msg }
