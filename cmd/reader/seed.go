package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Import containers, rows, reader configs, modules, filters, pages and files from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.store.SeedFromFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("seed %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Seeded %d containers (%d rows), %d reader configs (%d elements), %d modules, %d filters, %d pages, %d files\n",
				res.Containers, res.Rows, res.ReaderConfigs, res.Elements, res.Modules, res.Filters, res.Pages, res.Files)
			return nil
		},
	}
}
