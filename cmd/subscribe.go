package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notehub-sync/core/index"
)

var (
	subscribeName            string
	subscribeSubdecks        bool
	subscribeSuspendNew      bool
	subscribeSuspendExisting string
	subscribeDeletePolicy    string
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <collection-id>",
	Short: "Subscribe to a remote collection",
	Long: `Registers a remote collection for syncing. The first sync after
subscribing performs a full import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collectionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}
		suspendExisting, err := parseSuspendExisting(subscribeSuspendExisting)
		if err != nil {
			return err
		}
		deletePolicy, err := parseDeletePolicy(subscribeDeletePolicy)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		row := &index.CollectionRow{
			CollectionID:    collectionID.String(),
			Name:            subscribeName,
			SubdecksEnabled: subscribeSubdecks,
			SuspendNewNotes: subscribeSuspendNew,
			SuspendExisting: suspendExisting,
			DeletePolicy:    deletePolicy,
		}
		if existing, ok, err := a.store.Collection(collectionID); err != nil {
			return err
		} else if ok {
			// Re-subscribing updates the configuration but keeps the
			// sync cursor and container binding.
			row.ContainerID = existing.ContainerID
			row.LatestUpdate = existing.LatestUpdate
			row.FirstImportDone = existing.FirstImportDone
		}
		if err := a.store.SaveCollection(cmd.Context(), row); err != nil {
			return err
		}

		a.log.Info("Subscribed to collection",
			zap.String("collection_id", row.CollectionID),
			zap.String("name", row.Name))
		return nil
	},
}

func parseSuspendExisting(value string) (index.SuspendExistingPolicy, error) {
	switch p := index.SuspendExistingPolicy(value); p {
	case index.SuspendNever, index.SuspendAlways, index.SuspendIfSiblingsSuspended:
		return p, nil
	default:
		return "", fmt.Errorf("invalid suspend-existing policy %q", value)
	}
}

func parseDeletePolicy(value string) (index.DeletePolicy, error) {
	switch p := index.DeletePolicy(value); p {
	case index.DeleteIfNoReviews, index.NeverDelete:
		return p, nil
	default:
		return "", fmt.Errorf("invalid delete policy %q", value)
	}
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeName, "name", "", "display name used for the collection's container")
	subscribeCmd.Flags().BoolVar(&subscribeSubdecks, "subdecks", false, "map subdeck tags to nested containers")
	subscribeCmd.Flags().BoolVar(&subscribeSuspendNew, "suspend-new", false, "suspend cards of newly imported records")
	subscribeCmd.Flags().StringVar(&subscribeSuspendExisting, "suspend-existing", string(index.SuspendNever),
		"suspension of new cards on updated records: never, always or if_siblings_suspended")
	subscribeCmd.Flags().StringVar(&subscribeDeletePolicy, "delete-policy", string(index.DeleteIfNoReviews),
		"handling of remotely deleted records: delete_if_no_reviews or never_delete")
	_ = subscribeCmd.MarkFlagRequired("name")
	RootCmd.AddCommand(subscribeCmd)
}
