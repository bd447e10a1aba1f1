package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dync/firstload"
)

// newFirstLoadCmd drives the cursor-paged bulk ingestion protocol (spec
// §4.6) to completion for every configured table, printing one line per
// page so a long first load gives visible progress — grounded on the
// teacher's sync command printing incremental status during a long
// operation (cmd/gosynctasks/sync.go's "Syncing..." line).
func newFirstLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "first-load",
		Short: "Run the one-time bulk ingestion for every configured table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildController()
			if err != nil {
				return err
			}
			c.Enable(true)
			defer c.Shutdown(10 * time.Second)

			progress := func(p firstload.Progress) {
				fmt.Printf("  %s: +%d records (cursor %v)\n", p.Table, p.Received, p.Cursor)
			}

			if err := c.StartFirstLoad(progress).Wait(); err != nil {
				return fmt.Errorf("dyncctl: first load failed: %w", err)
			}
			fmt.Println("first load complete")
			return nil
		},
	}
}
