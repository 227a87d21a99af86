package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entrypoint"
)

func newImportBooksCommand(cfg func() *config.Config) *cobra.Command {
	var (
		path   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import-books",
		Short: "Import catalog entries from a delimited text file",
		Long: "Import books from a file with one book per line:\n" +
			"  book_no, category, title, publisher, year, author, price, quantity\n\n" +
			"Rows whose book number already exists are skipped as duplicates.",
		Example: "  librarian import-books --file books.txt --dry-run",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			return withServices(cfg(), func(svc *entrypoint.Services) error {
				var report *catalog.ImportReport
				if dryRun {
					report, err = svc.Catalog.ValidateImport(cmd.Context(), f)
				} else {
					report, err = svc.Catalog.ImportBooks(cmd.Context(), "cli", f)
				}
				if report != nil {
					printImportReport(cmd.OutOrStdout(), report)
					if !dryRun {
						saved, archiveErr := svc.Auditor.SaveNamedJSON(report.BatchID, report)
						if archiveErr != nil {
							log.Printf("Failed to archive import report %s: %v", report.BatchID, archiveErr)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", filepath.Join(svc.Auditor.AuditDir, saved))
						}
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Path to the import file (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate rows without importing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printImportReport(w io.Writer, report *catalog.ImportReport) {
	if report.DryRun {
		fmt.Fprintln(w, "DRY RUN MODE - No changes were made")
	}
	fmt.Fprintln(w, report.Summary())
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if hidden := report.TotalErrors - len(report.Errors); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
}

func newExportBooksCommand(cfg func() *config.Config) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "export-books",
		Short: "Export the catalog as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cfg(), func(svc *entrypoint.Services) error {
				out := cmd.OutOrStdout()
				if path != "" {
					f, err := os.Create(path)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					out = f
				}

				n, err := svc.Catalog.ExportBooks(cmd.Context(), out)
				if err != nil {
					return err
				}
				if path != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d books to %s\n", n, path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Write to this file instead of stdout")
	return cmd
}

func newRankingCommand(cfg func() *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Show the most borrowed books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cfg(), func(svc *entrypoint.Services) error {
				ranking, err := svc.Circulation.Ranking(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(ranking) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No loans recorded yet")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tBOOK\tTITLE\tAUTHOR\tLOANS")
				for i, b := range ranking {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", i+1, b.BookNo, b.Title, b.Author, b.Loans)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of books to show (default RANKING_LIMIT)")
	return cmd
}
