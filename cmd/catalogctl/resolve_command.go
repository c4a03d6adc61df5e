package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/disc-catalog/internal/app"
	"github.com/Clark-Hu/disc-catalog/internal/catalog"
	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/store"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve <barcode>",
		Short: "Look up a barcode and list metadata candidates without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				products, err := app.NewProductClient(cfg, nil, logger)
				if err != nil {
					return err
				}
				movies, err := app.NewMovieClient(cfg, logger)
				if err != nil {
					return err
				}
				repo := repository.New(st, repository.Options{UniqueTitle: cfg.UniqueTitle})
				resolver := catalog.NewResolver(repo.Catalog, products, movies, logger)

				candidates, err := resolver.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, candidates)
				}
				printCandidates(cmd.OutOrStdout(), candidates)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printCandidates(out io.Writer, candidates []domain.Candidate) {
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(c.ExternalID, 10),
			c.Title,
			valueOr(c.ReleaseYear, "-"),
			valueOr(c.ImageURL, "-"),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "External ID", "Title", "Year", "Poster"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	))
}
