package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aforo/internal/translate"
)

var catalogCols = translate.DefaultCatalogColumns

var catalogCmd = &cobra.Command{
	Use:   "catalog CATALOG.xlsx OUT.yaml",
	Short: "Convert a tariff catalog spreadsheet into a vocabulary file",
	Long:  "Reads descriptions and posiciones arancelarias from an xlsx catalog and writes a vocabulary file for AFORO_VOCABULARY_PATH.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer func() { _ = in.Close() }()

		entries, err := translate.ReadCatalog(in, catalogCols)
		if err != nil {
			return err
		}

		out, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[1], err)
		}
		if err := translate.WriteVocabulary(out, entries); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close %s: %w", args[1], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s\n", len(entries), args[1])
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogCols.Sheet, "sheet", "", "sheet name (default: first sheet)")
	catalogCmd.Flags().StringVar(&catalogCols.Term, "term-col", catalogCols.Term, "header of the description column")
	catalogCmd.Flags().StringVar(&catalogCols.Tariff, "tariff-col", catalogCols.Tariff, "header of the tariff code column")
	catalogCmd.Flags().StringVar(&catalogCols.Aliases, "alias-col", catalogCols.Aliases, "header of the alias column")
	rootCmd.AddCommand(catalogCmd)
}
