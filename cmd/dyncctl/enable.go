package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// newEnableCmd runs the engine in the foreground: enabled status and the
// periodic tick persist only for the lifetime of this process (spec
// §4.5's enabled/disabled flag is in-process, not itself durable), so
// "enabling" the engine means running it until interrupted. Grounded on
// background_sync.go's log-and-run shape, adapted from a spawned
// background process to a foreground one a host supervises directly.
func newEnableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Run the engine with its periodic sync tick until interrupted",
		Long: `Enables the controller, starting its periodic tick (spec §4.5), and
blocks until interrupted (SIGINT/SIGTERM), at which point the engine is
disabled cooperatively: an in-flight cycle is allowed to finish before
the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildController()
			if err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			c.Enable(true)
			fmt.Printf("sync enabled, tick every %dms (Ctrl+C to stop)\n", flags.syncIntervalMs)

			<-stop
			fmt.Println("\nshutting down...")
			if err := c.Shutdown(10 * time.Second); err != nil {
				return fmt.Errorf("dyncctl: shutdown: %w", err)
			}
			return nil
		},
	}
	return cmd
}
