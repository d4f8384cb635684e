package main

// storefront serve        – HTTP surface over the remote cart API
//   GET    /cart                           – read a cart
//   POST   /cart                           – create a cart or add lines
//   PUT    /cart                           – change quantities or variants
//   DELETE /cart                           – remove a line or clear the cart
//   GET    /products                       – catalogue page
//   GET    /collections/{handle}/products  – collection page
//   POST   /checkout                       – hosted checkout hand-off
//   POST   /checkout/complete              – forget the cart
// storefront cart ...     – shopper session from the terminal

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
