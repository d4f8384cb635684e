package models

// Product is a catalogue entry as shown on listing pages.
type Product struct {
	ID               string `json:"id"`
	Handle           string `json:"handle"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	FeaturedImage    *Image `json:"featuredImage,omitempty"`
	Price            Money  `json:"price"`
	DefaultVariantID string `json:"defaultVariantId,omitempty"`
	AvailableForSale bool   `json:"availableForSale"`
}

type Collection struct {
	ID       string    `json:"id"`
	Handle   string    `json:"handle"`
	Title    string    `json:"title"`
	Products []Product `json:"products"`
}

// Checkout is the hand-off to the platform's hosted checkout for one cart.
type Checkout struct {
	CartID        string `json:"cartId"`
	CheckoutURL   string `json:"checkoutUrl"`
	TotalQuantity int    `json:"totalQuantity"`
	Total         Money  `json:"total"`
}
