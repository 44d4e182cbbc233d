package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var removeCmd = &cobra.Command{
	Use:   "remove <collection-id>",
	Short: "Remove a subscription and its shadow data",
	Long: `Drops the subscription together with its shadow rows, cached schemas
and media manifest. Host-side records are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collectionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.RemoveCollection(cmd.Context(), collectionID); err != nil {
			return err
		}
		a.log.Info("Removed collection", zap.String("collection_id", collectionID.String()))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(removeCmd)
}
