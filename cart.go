package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storefront-cart/cartstate"
	models "storefront-cart/model"
)

// cartOptions holds flags for the cart command.
type cartOptions struct {
	*rootOptions
	Session string
	JSON    bool
}

func newCartCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &cartOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Drive a shopper cart from the terminal",
		Long: `Drive a shopper cart from the terminal.

The session's cart reference is kept in the configured reference store
(references.driver), so a postgres-backed session survives between runs.

Example:
  storefront cart add gid://shopify/ProductVariant/1 2 --session s-1
  storefront cart show --session s-1`,
	}

	cmd.PersistentFlags().StringVar(&opts.Session, "session", "", "session id (a new one is generated when empty)")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print the cart as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the session's cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(s *cartstate.Store) error { return nil })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <variant-id> [quantity]",
		Short: "Add a variant to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				qty = n
			}
			return withCart(cmd, opts, func(s *cartstate.Store) error {
				return s.AddItem(cmd.Context(), cartstate.Item{MerchandiseID: args[0]}, qty)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update <line-or-variant-id> <quantity>",
		Short: "Set a line's quantity (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return withCart(cmd, opts, func(s *cartstate.Store) error {
				return s.UpdateItemQuantity(cmd.Context(), args[0], n)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <line-or-variant-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(s *cartstate.Store) error {
				return s.RemoveItem(cmd.Context(), args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(s *cartstate.Store) error {
				return s.Clear(cmd.Context())
			})
		},
	})

	return cmd
}

func parseQuantity(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid quantity %q: must be a positive integer", v)
	}
	return n, nil
}

// withCart loads the session's cart, runs fn and prints the result.
func withCart(cmd *cobra.Command, opts *cartOptions, fn func(*cartstate.Store) error) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	orch, err := opts.newCart(opts.rootOptions)
	if err != nil {
		return err
	}
	refs, err := opts.openRefs(ctx, opts.cfg.References)
	if err != nil {
		return err
	}
	defer refs.Close()

	session := opts.Session
	if session == "" {
		session = uuid.NewString()
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", session)
	}

	s := cartstate.New(orch, refs, session, opts.logger)
	if err := s.Load(ctx); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return fmt.Errorf("%s", models.UserMessage(err))
	}
	return printCart(out, s, opts.JSON)
}

func printCart(w io.Writer, s *cartstate.Store, asJSON bool) error {
	snap := s.Snapshot()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	if s.CartID() == "" {
		fmt.Fprintln(w, "no cart")
		return nil
	}
	fmt.Fprintf(w, "cart %s\n", snap.ID)
	for _, l := range snap.Lines {
		fmt.Fprintf(w, "  %-40s x%-3d %s %s\n", l.MerchandiseID(), l.Quantity,
			l.Cost.TotalAmount.Amount, l.Cost.TotalAmount.CurrencyCode)
	}
	fmt.Fprintf(w, "total quantity %d", snap.TotalQuantity)
	if snap.Cost.TotalAmount.Amount != "" {
		fmt.Fprintf(w, ", total %s %s", snap.Cost.TotalAmount.Amount, snap.Cost.TotalAmount.CurrencyCode)
	}
	fmt.Fprintln(w)
	if snap.CheckoutURL != "" {
		fmt.Fprintf(w, "checkout %s\n", snap.CheckoutURL)
	}
	return nil
}
