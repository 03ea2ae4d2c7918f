package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/export"
)

var (
	exportXLSX            string
	exportNotion          bool
	exportSalesforce      bool
	exportMinScore        int
	exportLimit           int
	exportIncludeRejected bool
)

var exportCmd = &cobra.Command{
	Use:   "export <pool-id>",
	Short: "Export a pool's candidates and contacts",
	Long:  "Writes a pool's candidates, best first, to any combination of an xlsx workbook, the configured Notion database, and Salesforce Accounts and Contacts.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var sinks []export.Exporter
		if exportXLSX != "" {
			sinks = append(sinks, export.XLSX{Path: exportXLSX})
		}
		if exportNotion {
			nc, err := initNotion()
			if err != nil {
				return err
			}
			sinks = append(sinks, export.Notion{Client: nc, DatabaseID: cfg.Notion.DatabaseID})
		}
		if exportSalesforce {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			sinks = append(sinks, export.Salesforce{Client: sf})
		}
		if len(sinks) == 0 {
			return eris.New("no export target: pass --xlsx, --notion, or --salesforce")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := export.Collect(ctx, st, args[0], export.Filter{
			MinScore:        exportMinScore,
			Limit:           exportLimit,
			IncludeRejected: exportIncludeRejected,
		})
		if err != nil {
			return err
		}

		results, err := export.Run(ctx, leads, sinks...)
		if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "write an xlsx workbook to this path")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "upsert pages into the configured Notion database")
	exportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "create Salesforce Accounts and Contacts")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "skip candidates scoring below this")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max candidates to export (0 = all)")
	exportCmd.Flags().BoolVar(&exportIncludeRejected, "include-rejected", false, "include REJECTED candidates")
	rootCmd.AddCommand(exportCmd)
}
