package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount as reported by the commerce platform.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// Decimal parses Amount. An empty amount is zero.
func (m Money) Decimal() (decimal.Decimal, error) {
	if m.Amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", m.Amount, err)
	}
	return d, nil
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

type ProductRef struct {
	Handle string `json:"handle"`
	Title  string `json:"title"`
}

// Merchandise is the purchasable variant a line points at. Everything but ID is
// denormalized display data.
type Merchandise struct {
	ID      string     `json:"id"`
	Title   string     `json:"title,omitempty"`
	Image   *Image     `json:"image,omitempty"`
	Product ProductRef `json:"product"`
}

type LineCost struct {
	AmountPerQuantity Money `json:"amountPerQuantity"`
	TotalAmount       Money `json:"totalAmount"`
}

// LineItem is one merchandise entry of a cart. Quantity is always >= 1.
type LineItem struct {
	ID          string      `json:"id"`
	Quantity    int         `json:"quantity"`
	Merchandise Merchandise `json:"merchandise"`
	Cost        LineCost    `json:"cost"`
}

// MerchandiseID returns the variant id of the line.
func (l LineItem) MerchandiseID() string { return l.Merchandise.ID }

type CartCost struct {
	SubtotalAmount Money `json:"subtotalAmount"`
	TotalAmount    Money `json:"totalAmount"`
}

// CartSnapshot is the authoritative state of a remote cart at a point in time.
// It is replaced wholesale after every mutation, never patched.
type CartSnapshot struct {
	ID            string     `json:"id"`
	CheckoutURL   string     `json:"checkoutUrl"`
	TotalQuantity int        `json:"totalQuantity"`
	Lines         []LineItem `json:"lines"`
	Cost          CartCost   `json:"cost"`

	// Truncated is set when the remote cart has more lines than one page holds.
	Truncated bool `json:"truncated,omitempty"`
}

// LineByMerchandise returns the first line holding the given variant.
func (c CartSnapshot) LineByMerchandise(merchandiseID string) (LineItem, bool) {
	for _, l := range c.Lines {
		if l.Merchandise.ID == merchandiseID {
			return l, true
		}
	}
	return LineItem{}, false
}

// LineByID returns the line with the given remote line id.
func (c CartSnapshot) LineByID(lineID string) (LineItem, bool) {
	for _, l := range c.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return LineItem{}, false
}

// LineIDs lists the line ids in cart order.
func (c CartSnapshot) LineIDs() []string {
	out := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, l.ID)
	}
	return out
}

// IsEmpty reports whether the cart holds no lines.
func (c CartSnapshot) IsEmpty() bool { return len(c.Lines) == 0 }

// CartReference is the client-visible handle of a cart. Normalized is Raw up to
// the first '?', or Raw itself when there is no suffix.
type CartReference struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}

// HasSuffix reports whether the raw identifier carries an access-key suffix.
func (r CartReference) HasSuffix() bool { return r.Raw != r.Normalized }

// LineInput is a line to add or to create a cart with.
type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// LineUpdate changes the quantity of a line. When LineID is empty the line is
// looked up by MerchandiseID; when both are set MerchandiseID swaps the variant.
type LineUpdate struct {
	LineID        string `json:"lineId,omitempty"`
	MerchandiseID string `json:"merchandiseId,omitempty"`
	Quantity      int    `json:"quantity"`
}

// LineTarget names a line either by its line id or by its variant id.
type LineTarget struct {
	LineID        string `json:"lineId,omitempty"`
	MerchandiseID string `json:"merchandiseId,omitempty"`
}

func (t LineTarget) String() string {
	if t.LineID != "" {
		return t.LineID
	}
	return t.MerchandiseID
}
