// File: cmd/query.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domtree/internal/dom"
)

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query FILE XPATH",
		Short: "Print the geometry of nodes matching an XPath expression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, expr := args[0], args[1]
			tree, _, err := a.loadDocument(cmd.Context(), file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ids, err := dom.Query(tree, expr)
			if err != nil {
				return err
			}

			matches := make([]boxJSON, 0, len(ids))
			for _, id := range ids {
				b, err := absoluteBox(tree, id)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				matches = append(matches, b)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		},
	}
}
