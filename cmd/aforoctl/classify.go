package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aforo/internal/classifier"
	"aforo/internal/domain"
	"aforo/internal/pdftext"
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Label files as bl, invoice or unknown without calling a model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := classifier.New(cfg.Pipeline.ClassifierThreshold)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tTYPE\tCONFIDENCE\tPAGES")
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			layer, err := pdftext.Read(data, contentTypeOf(path))
			if err != nil {
				layer = pdftext.Layer{PageCount: 1}
			}
			res := c.Classify(filepath.Base(path), layer)
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", filepath.Base(path), res.Type, res.Confidence, res.PageCount)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// contentTypeOf guesses from the extension; unknown extensions are left to the pipeline to reject.
func contentTypeOf(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 1 {
		if ft, ok := domain.AllowedExtensions[strings.ToLower(ext[1:])]; ok {
			return domain.AllowedFileTypes[ft]
		}
	}
	return "application/octet-stream"
}
