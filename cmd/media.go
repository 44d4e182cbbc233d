package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notehub-sync/feature/media"
)

var mediaDownloadDir string

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Sync media files for a collection",
}

var mediaRefreshCmd = &cobra.Command{
	Use:   "refresh <collection-id>",
	Short: "Refresh the collection's media manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, collectionID, err := newMediaManager(args[0])
		if err != nil {
			return err
		}
		tracked, err := m.Refresh(cmd.Context(), collectionID)
		if err != nil {
			return err
		}
		fmt.Printf("tracking %d media file(s)\n", tracked)
		return nil
	},
}

var mediaDownloadCmd = &cobra.Command{
	Use:   "download <collection-id>",
	Short: "Download tracked media files missing locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, collectionID, err := newMediaManager(args[0])
		if err != nil {
			return err
		}
		report, err := m.DownloadMissing(cmd.Context(), collectionID, mediaDownloadDir)
		if err != nil {
			return err
		}
		fmt.Printf("downloaded %d, up to date %d, failed %d\n",
			report.Downloaded, report.UpToDate, len(report.Failed))
		return nil
	},
}

func newMediaManager(arg string) (*media.Manager, uuid.UUID, error) {
	collectionID, err := uuid.Parse(arg)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid collection id %q: %w", arg, err)
	}
	a, err := newApp()
	if err != nil {
		return nil, uuid.Nil, err
	}
	objects, err := a.storageClient()
	if err != nil {
		return nil, uuid.Nil, err
	}
	a.log.Debug("Wired media manager", zap.String("collection_id", collectionID.String()))
	return media.New(a.store, objects, a.remote, a.cfg.Storage.Bucket, a.log), collectionID, nil
}

func init() {
	mediaDownloadCmd.Flags().StringVar(&mediaDownloadDir, "dir", ".", "local media folder")
	mediaCmd.AddCommand(mediaRefreshCmd)
	mediaCmd.AddCommand(mediaDownloadCmd)
	RootCmd.AddCommand(mediaCmd)
}
