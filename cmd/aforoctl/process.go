package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aforo/internal/app"
	"aforo/internal/csvexport"
	"aforo/internal/domain"
	"aforo/internal/service"
	"aforo/internal/xlsxexport"
)

var (
	processName    string
	processOut     string
	processFreight []string
	processInsure  []string
)

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Run a batch end to end and write the customs workbook",
	Long: "Ingests the files into an in-memory batch, extracts every document and, when no record " +
		"needs review, consolidates and writes the report. The output format follows the --out extension (.xlsx or .csv).",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		costs, err := parseCosts(processFreight, processInsure)
		if err != nil {
			return err
		}

		cfg.Store.Driver = "memory"
		cfg.Store.Storage = "memory"
		a, err := app.New(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		batch, err := a.Pipeline.CreateBatch(ctx, processName)
		if err != nil {
			return err
		}
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			doc, err := a.Pipeline.AddDocument(ctx, &service.AddDocumentInput{
				BatchID:     batch.ID,
				FileName:    filepath.Base(path),
				ContentType: contentTypeOf(path),
				Data:        data,
			})
			if err != nil {
				return fmt.Errorf("add %s: %w", path, err)
			}
			if doc.Type == domain.DocumentTypeUnknown {
				zap.L().Warn("classifier could not label file; it will be skipped", zap.String("file", path))
			}
		}

		summary, err := a.Pipeline.Process(ctx, batch.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d: %d validated, %d under review, %d rejected, %d untyped\n",
			summary.Processed, summary.Validated, summary.UnderReview, summary.Rejected, summary.AwaitType)

		stats, err := a.Pipeline.Stats(ctx, batch.ID)
		if err != nil {
			return err
		}
		if !stats.ReadyToConsolidate {
			records, err := a.Pipeline.ListRecords(ctx, batch.ID)
			if err != nil {
				return err
			}
			for i := range records {
				if records[i].State != domain.RecordStateUnderReview {
					continue
				}
				view, err := a.Pipeline.GetReview(ctx, records[i].ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "  needs review: document %s (%s, band %s, %d flags)\n",
					records[i].DocumentID, records[i].DocumentType, view.Band, len(view.Flags))
			}
			return fmt.Errorf("%w: %d records need review, %d documents untyped",
				domain.ErrBatchNotReady, stats.ByState[domain.RecordStateUnderReview], stats.UnknownType)
		}

		rep, err := a.Pipeline.Consolidate(ctx, batch.ID, costs)
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}

		out := processOut
		if out == "" {
			out = csvexport.BuildFilename(batch.Name, "xlsx")
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer func() { _ = f.Close() }()

		if strings.EqualFold(filepath.Ext(out), ".csv") {
			if _, err := f.Write(csvexport.BOM); err != nil {
				return err
			}
			w := csvexport.NewWriter(f)
			if err := w.WriteHeader(); err != nil {
				return err
			}
			if err := w.WriteReport(rep); err != nil {
				return err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
		} else if err := xlsxexport.Write(f, rep); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d shipments, %d warnings -> %s\n", len(rep.Shipments), len(rep.Warnings), out)
		for _, w := range rep.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", w.Kind, w.Message)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processName, "name", "", "batch name used in the output file name")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "output file (.xlsx or .csv)")
	processCmd.Flags().StringArrayVar(&processFreight, "freight", nil, "freight override as BL=amount, repeatable")
	processCmd.Flags().StringArrayVar(&processInsure, "insurance", nil, "insurance override as BL=amount, repeatable")
	rootCmd.AddCommand(processCmd)
}

// parseCosts turns BL=amount flags into per-shipment cost overrides.
func parseCosts(freight, insurance []string) (map[string]domain.ShipmentCosts, error) {
	costs := make(map[string]domain.ShipmentCosts)
	apply := func(flag string, values []string, set func(*domain.ShipmentCosts, float64)) error {
		for _, v := range values {
			bl, amount, ok := strings.Cut(v, "=")
			if !ok || strings.TrimSpace(bl) == "" {
				return fmt.Errorf("--%s %q: want BL=amount", flag, v)
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
			if err != nil || n < 0 {
				return fmt.Errorf("--%s %q: amount must be a non-negative number", flag, v)
			}
			c := costs[strings.TrimSpace(bl)]
			set(&c, n)
			costs[strings.TrimSpace(bl)] = c
		}
		return nil
	}
	if err := apply("freight", freight, func(c *domain.ShipmentCosts, n float64) { c.Freight = &n }); err != nil {
		return nil, err
	}
	if err := apply("insurance", insurance, func(c *domain.ShipmentCosts, n float64) { c.Insurance = &n }); err != nil {
		return nil, err
	}
	return costs, nil
}
