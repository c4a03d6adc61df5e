package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every catalog entry ordered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				entries, err := repository.New(st, repository.Options{}).Catalog.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printEntries(out io.Writer, entries []domain.CatalogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Catalog is empty")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		year := "-"
		if e.ReleaseYear != nil {
			year = strconv.Itoa(*e.ReleaseYear)
		}
		rows = append(rows, []string{
			e.Title,
			year,
			valueOr(e.Director, "-"),
			valueOr(e.Brand, "-"),
			e.Barcode,
			e.ID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Title", "Year", "Director", "Brand", "Barcode", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	fmt.Fprintf(out, "%d entries\n", len(entries))
}
