package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the shadow database structure",
	Long: `Verifies that the shadow database carries every table and column the
sync engine depends on. A non-empty report usually means the database
file was created by an incompatible version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		problems, err := a.store.VerifyTables()
		if err != nil {
			return err
		}
		if len(problems) == 0 {
			fmt.Println("shadow database ok")
			return nil
		}
		for _, p := range problems {
			fmt.Println(p)
		}
		return fmt.Errorf("shadow database has %d problem(s)", len(problems))
	},
}

func init() {
	RootCmd.AddCommand(verifyCmd)
}
