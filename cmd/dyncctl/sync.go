package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newSyncOnceCmd runs exactly one push-pull-persist cycle (spec §4.5),
// grounded on the shape of cmd/gosynctasks/sync.go's "sync" command
// (enable, run, print a result) but scoped to requestSyncOnce's single
// cycle rather than the teacher's full/dry-run SyncManager.Sync.
func newSyncOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once",
		Short: "Run a single sync cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildController()
			if err != nil {
				return err
			}
			c.Enable(true)
			defer c.Shutdown(10 * time.Second)

			fmt.Println("syncing...")
			if err := c.RequestSyncOnce().Wait(); err != nil {
				return fmt.Errorf("dyncctl: sync failed: %w", err)
			}

			snap, err := c.State()
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}
}
