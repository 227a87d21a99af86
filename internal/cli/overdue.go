package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entrypoint"
	"github.com/mrlokans/librarian/internal/tasks"
)

func newOverdueCommand(cfg func() *config.Config) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Run an overdue scan now and list the loans it finds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cfg(), func(svc *entrypoint.Services) error {
				result, err := tasks.RunOverdueScan(cmd.Context(), svc.Circulation, svc.Settings, svc.Audit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if save {
					name, err := svc.Auditor.SaveJSON(result)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Report saved to %s\n", filepath.Join(svc.Auditor.AuditDir, name))
				}
				if result.Count == 0 {
					fmt.Fprintln(out, "No overdue loans")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CARD\tNAME\tDEPARTMENT\tBOOK\tTITLE\tDAYS")
				for _, l := range result.Loans {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", l.CardNo, l.CardName, l.Department, l.BookNo, l.Title, l.DaysElapsed)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "%d overdue loans\n", result.Count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Archive the scan result as JSON under AUDIT_DIR")
	return cmd
}
