package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/energydash/internal/browser"
	"github.com/spf13/cobra"
)

var (
	snapshotURL     string
	snapshotOut     string
	snapshotWait    time.Duration
	snapshotVisible bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save a PNG screenshot of a running dashboard",
	Long:  `Opens the dashboard in headless Chrome, waits for every chart to render and writes a full-page screenshot.`,
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "http://localhost:8050/", "Dashboard URL")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "dashboard.png", "Output PNG file")
	snapshotCmd.Flags().DurationVar(&snapshotWait, "wait", 2*time.Second, "Extra time to let the charts settle")
	snapshotCmd.Flags().BoolVar(&snapshotVisible, "visible", false, "Show browser window (for debugging)")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	fmt.Printf("Capturing %s...\n", snapshotURL)

	png, err := browser.Snapshot(context.Background(), browser.SnapshotOptions{
		URL:      snapshotURL,
		Wait:     snapshotWait,
		Headless: !snapshotVisible,
	})
	if err != nil && png == nil {
		return fmt.Errorf("capturing dashboard: %w", err)
	}
	if err != nil {
		// page rendered but some widgets failed; keep the picture
		fmt.Printf("Warning: %v\n", err)
	}

	if err := os.WriteFile(snapshotOut, png, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", snapshotOut, err)
	}
	fmt.Printf("✓ Saved %s (%s)\n", snapshotOut, humanize.Bytes(uint64(len(png))))
	return nil
}
