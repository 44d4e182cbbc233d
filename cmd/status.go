package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List subscribed collections and their sync cursors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		rows, err := a.store.Collections()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no subscribed collections")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOLLECTION\tLAST UPDATE\tFIRST IMPORT\tSUBDECKS")
		for _, row := range rows {
			latest := "never"
			if !row.LatestUpdate.IsZero() {
				latest = row.LatestUpdate.Format("2006-01-02 15:04:05")
			}
			firstImport := "pending"
			if row.FirstImportDone {
				firstImport = "done"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				row.Name, row.CollectionID, latest, firstImport, row.SubdecksEnabled)
		}
		return w.Flush()
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
