package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/meli-harvester/internal/api/client"
)

func productsCmd() *cobra.Command {
	var params apiclient.ListProductsParams

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Query products from the latest extraction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().ListProducts(cmd.Context(), &params)
			if apiclient.IsStatus(err, http.StatusNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No extraction result available yet.")
				return err
			}
			if err != nil {
				return fmt.Errorf("listing products: %w", err)
			}

			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Products) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No products found.")
				return err
			}
			if err := printProductsTable(cmd.OutOrStdout(), resp.Products); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"\nShowing %d of %d products\n", len(resp.Products), resp.Total)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.Status, "status", "", "filter by listing status (active, paused, closed)")
	f.StringVar(&params.Condition, "condition", "", "filter by condition (new, used)")
	f.Float64Var(&params.MinPrice, "min-price", 0, "minimum price")
	f.Float64Var(&params.MaxPrice, "max-price", 0, "maximum price")
	f.StringVarP(&params.Search, "search", "q", "", "substring match on title")
	f.IntVar(&params.Limit, "limit", 50, "max results")
	f.IntVar(&params.Offset, "offset", 0, "result offset")
	f.StringVar(&params.OrderBy, "order-by", "", "sort order (position, price, title)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newClient().GetProduct(cmd.Context(), args[0])
			if apiclient.IsStatus(err, http.StatusNotFound) {
				return fmt.Errorf("product %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("getting product: %w", err)
			}

			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), p)
			}
			return printProductDetail(cmd.OutOrStdout(), p)
		},
	})

	return cmd
}
