package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <collection-id>",
	Short: "Show collections claiming the same local records",
	Long: `Two subscribed collections conflict when they claim the same local
record ids. Conflicting collections cannot sync until one of them is
removed.`,
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
		others, err := a.store.ConflictingCollections(collectionID)
		if err != nil {
			return err
		}
		if len(others) == 0 {
			fmt.Println("no conflicts")
			return nil
		}

		other, localIDs, ok, err := a.store.NextConflict(collectionID)
		if err != nil {
			return err
		}
		fmt.Printf("conflicting collections: %d\n", len(others))
		for _, id := range others {
			fmt.Printf("  %s\n", id)
		}
		if ok {
			fmt.Printf("next conflict: %s over %d local record(s)\n", other, len(localIDs))
			for _, id := range localIDs {
				fmt.Printf("  local id %d\n", id)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(conflictsCmd)
}
