package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/energydash/internal/config"
	"github.com/jgoulah/energydash/internal/publisher"
	"github.com/jgoulah/energydash/pkg/models"
	"github.com/spf13/cobra"
)

var (
	publishSince string
	publishUntil string
	publishAll   bool
	publishLimit int
	publishStats bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish daily energy data to Home Assistant",
	Long:  `Reads imported energy consumption records from the database and backfills them into Home Assistant via the AppDaemon HTTP API.`,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	publishCmd.Flags().BoolVar(&publishStats, "generate-stats", false, "Compile Home Assistant statistics after publishing")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	// backfill only goes over HTTP, the broker is for live ticks
	pub, err := publisher.New(config.MQTTConfig{}, cfg.HomeAssistant, log)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	since, until, err := parseBounds(publishSince, publishUntil)
	if err != nil {
		return err
	}

	var data []models.EnergyRecord
	if publishAll {
		data, err = db.ListEnergy()
	} else {
		data, err = db.ListUnpublishedEnergy()
	}
	if err != nil {
		return fmt.Errorf("listing energy records: %w", err)
	}

	if len(data) == 0 {
		if publishAll {
			fmt.Println("No energy data found")
		} else {
			fmt.Println("No unpublished energy data found")
		}
		return nil
	}

	filtered := filterEnergy(data, since, until)
	if len(filtered) == 0 {
		fmt.Println("No data in date range")
		return nil
	}

	if publishLimit > 0 && len(filtered) > publishLimit {
		filtered = filtered[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %s records...\n", humanize.Comma(int64(len(filtered))))
	published := 0
	for i, record := range filtered {
		fmt.Printf("[%d/%d] Publishing %s (%.2f kWh)... ", i+1, len(filtered), record.Date.Format("2006-01-02"), record.KWh)
		if err := pub.Publish(record); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := db.MarkPublished(record.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nSuccessfully published %d/%d records\n", published, len(filtered))

	if publishStats && published > 0 {
		fmt.Printf("Generating statistics for %s...\n", cfg.HomeAssistant.EntityID)
		result, err := pub.GenerateStatistics()
		if err != nil {
			return fmt.Errorf("generating statistics: %w", err)
		}
		fmt.Printf("✓ Statistics generated successfully\n")
		fmt.Printf("  - Inserted: %d new statistics records\n", result.Inserted)
		fmt.Printf("  - Updated: %d existing statistics records\n", result.Updated)
		fmt.Printf("  - Total hours: %d\n", result.TotalHours)
	}
	return nil
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(dateStr[:len(dateStr)-1], "%d", &days); err == nil {
			return time.Now().AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
